package detection

import "strings"

// DefaultTrustedDomains is the built-in bank and payment-provider list
var DefaultTrustedDomains = []string{
	"onlinesbi.sbi",
	"sbi.co.in",
	"hdfcbank.com",
	"icicibank.com",
	"axisbank.com",
	"kotak.com",
	"pnbindia.in",
	"bankofbaroda.in",
	"yesbank.in",
	"idfcfirstbank.com",
	"paytm.com",
	"phonepe.com",
	"npci.org.in",
	"bhimupi.org.in",
	"razorpay.com",
	"paypal.com",
	"amazon.in",
	"google.com",
}

// TrustedDomainSet is the read-only list of legitimate financial domains.
// Order is preserved so lookalike matching is deterministic.
type TrustedDomainSet struct {
	domains []string
	index   map[string]struct{}
}

// NewTrustedDomainSet normalizes and de-duplicates the given domains
func NewTrustedDomainSet(domains []string) *TrustedDomainSet {
	set := &TrustedDomainSet{
		domains: make([]string, 0, len(domains)),
		index:   make(map[string]struct{}, len(domains)),
	}
	for _, d := range domains {
		d = cleanDomain(d)
		if d == "" {
			continue
		}
		if _, seen := set.index[d]; seen {
			continue
		}
		set.index[d] = struct{}{}
		set.domains = append(set.domains, d)
	}
	return set
}

// Domains returns a copy of the trusted domains in configuration order
func (s *TrustedDomainSet) Domains() []string {
	out := make([]string, len(s.domains))
	copy(out, s.domains)
	return out
}

// Len returns the number of trusted domains
func (s *TrustedDomainSet) Len() int {
	return len(s.domains)
}

// IsTrustedHost reports whether host is a trusted domain or one of its subdomains
func (s *TrustedDomainSet) IsTrustedHost(host string) bool {
	host = cleanDomain(host)
	if host == "" {
		return false
	}
	if _, ok := s.index[host]; ok {
		return true
	}
	for _, d := range s.domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
