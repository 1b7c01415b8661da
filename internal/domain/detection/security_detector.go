package detection

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/scamshield/scam-detector/internal/domain"
)

// suspiciousTLDs are free or abuse-heavy top-level domains
var suspiciousTLDs = []string{
	"tk", "ml", "ga", "cf", "gq", "pw", "cc", "top",
	"work", "click", "loan", "racing", "men", "download",
}

// domainAgeBudget bounds the registration lookup inside a single detection
const domainAgeBudget = 1500 * time.Millisecond

// WebsiteSecurityDetector scores how trustworthy the site itself looks
//
// The score is a trust score: 1.0 is a fully trusted site, 0.0 is no trust at all.
// The aggregator inverts it into a risk contribution.
type WebsiteSecurityDetector struct{}

// NewWebsiteSecurityDetector creates a new website security detector
func NewWebsiteSecurityDetector() *WebsiteSecurityDetector {
	return &WebsiteSecurityDetector{}
}

// Name returns the signal name
func (d *WebsiteSecurityDetector) Name() domain.SignalName {
	return domain.SignalWebsiteSecurity
}

// Detect checks transport security, host shape and lookalike domains
func (d *WebsiteSecurityDetector) Detect(ctx context.Context, page domain.PageContext, dc *DetectionContext) (domain.SignalResult, error) {
	host := pageHost(page)
	if host == "" {
		// Nothing to judge; the aggregator treats this like a missing signal
		return domain.SignalResult{Reasons: []string{}, Failed: true}, nil
	}

	trust := 1.0
	reasons := make([]string, 0)
	tags := make([]string, 0)
	details := map[string]any{"host": host}
	trusted := dc.trusted().IsTrustedHost(host)
	details["trusted"] = trusted

	// Lookalike domains are the most specific evidence, so their reason goes first
	if !trusted {
		match := MatchLookalike(registrableDomain(host), dc.trusted().Domains())
		if !match.IsLookalike {
			match = MatchLookalike(host, dc.trusted().Domains())
		}
		if match.IsLookalike {
			trust -= 0.6
			tags = append(tags, domain.TagLookalikeDomain)
			reasons = append(reasons, fmt.Sprintf("Domain '%s' imitates trusted domain '%s' (%s)", host, match.MatchedDomain, match.Reason))
			details["lookalike"] = match
		}
	}

	sensitive := hasSensitiveFields(page.Fields)
	if !isSecure(page) {
		if sensitive {
			trust -= 0.5
			tags = append(tags, domain.TagInsecureForm)
			reasons = append(reasons, "Sensitive form served over an unencrypted connection (HTTP)")
		} else {
			trust -= 0.2
			reasons = append(reasons, "Connection is not encrypted (HTTP)")
		}
	}

	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		trust -= 0.3
		reasons = append(reasons, "Site is addressed by a raw IP address")
	}

	if strings.Contains(host, "xn--") {
		trust -= 0.3
		reasons = append(reasons, "Punycode domain (possible homograph attack)")
	}

	if tld := host[strings.LastIndex(host, ".")+1:]; containsExact(suspiciousTLDs, tld) {
		trust -= 0.15
		reasons = append(reasons, fmt.Sprintf("Suspicious domain extension: .%s", tld))
	}

	if sensitive {
		if target := crossDomainFormTarget(host, page.Fields); target != "" {
			trust -= 0.2
			reasons = append(reasons, fmt.Sprintf("Form submits data to another domain: %s", target))
		}
	}

	if ages := dc.domainAges(); ages != nil && !trusted && net.ParseIP(strings.Trim(host, "[]")) == nil {
		if age, ok := lookupDomainAge(ctx, ages, registrableDomain(host)); ok && age.IsNew {
			trust -= 0.2
			tags = append(tags, domain.TagNewDomain)
			reasons = append(reasons, fmt.Sprintf("Domain was registered only %d days ago", age.AgeDays))
			details["domain_age_days"] = age.AgeDays
		}
	}

	trust = clamp01(trust)
	return domain.SignalResult{
		Score:    trust,
		Detected: trust < 0.5,
		Severity: trustSeverity(trust),
		Reasons:  reasons,
		Tags:     tags,
		Details:  details,
	}, nil
}

// lookupDomainAge asks the source for a domain's age; failures and unknown ages count as no evidence
func lookupDomainAge(ctx context.Context, src DomainAgeSource, name string) (domain.DomainAge, bool) {
	ctx, cancel := context.WithTimeout(ctx, domainAgeBudget)
	defer cancel()
	age, err := src.DomainAge(ctx, name)
	if err != nil || !age.Known() {
		return domain.DomainAge{}, false
	}
	return age, true
}

// crossDomainFormTarget returns the first form action host outside the page's registrable domain
func crossDomainFormTarget(host string, fields []domain.InputField) string {
	own := registrableDomain(host)
	for _, f := range fields {
		if f.FormAction == "" {
			continue
		}
		target := hostFromURL(f.FormAction)
		if target == "" {
			continue // relative action, same origin
		}
		if registrableDomain(target) != own {
			return target
		}
	}
	return ""
}

func trustSeverity(trust float64) domain.Severity {
	switch {
	case trust < 0.3:
		return domain.SeverityHigh
	case trust < 0.5:
		return domain.SeverityMedium
	case trust < 0.8:
		return domain.SeverityLow
	default:
		return domain.SeverityNone
	}
}

func containsExact(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
