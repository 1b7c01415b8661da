package domaininfo

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/ports"
)

// Compile-time interface check.
var _ ports.DNSChecker = (*DNSChecker)(nil)

const (
	DefaultDNSTimeout = 2 * time.Second
	fallbackResolver  = "1.1.1.1:53"
	resolvConfPath    = "/etc/resolv.conf"
)

// DNSChecker resolves A and AAAA records against a single upstream resolver
type DNSChecker struct {
	resolver string
	client   *dns.Client
}

// NewDNSChecker creates a checker for resolver ("host" or "host:port").
// An empty resolver selects the first nameserver from /etc/resolv.conf.
func NewDNSChecker(resolver string, timeout time.Duration) *DNSChecker {
	if timeout <= 0 {
		timeout = DefaultDNSTimeout
	}
	return &DNSChecker{
		resolver: resolverAddr(resolver),
		client:   &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// Resolver returns the upstream address queries go to
func (c *DNSChecker) Resolver() string {
	return c.resolver
}

// CheckDNS looks up the IPv4 and IPv6 addresses of name
//
// NXDOMAIN and empty answers mean the domain does not resolve. Transport errors
// and other failure codes are returned as errors.
func (c *DNSChecker) CheckDNS(ctx context.Context, name string) (domain.DNSResult, error) {
	host := normalizeDomain(name)
	if host == "" || net.ParseIP(host) != nil {
		return domain.DNSResult{}, fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}

	result := domain.DNSResult{Domain: host, IPAddresses: make([]string, 0)}
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addrs, err := c.query(ctx, host, qtype)
		if err != nil {
			return domain.DNSResult{}, err
		}
		result.IPAddresses = append(result.IPAddresses, addrs...)
	}
	result.Resolves = len(result.IPAddresses) > 0
	return result, nil
}

func (c *DNSChecker) query(ctx context.Context, host string, qtype uint16) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	r, _, err := c.client.ExchangeContext(ctx, msg, c.resolver)
	if err != nil {
		return nil, fmt.Errorf("dns %s %s: %w", dns.TypeToString[qtype], host, err)
	}
	switch r.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("dns %s %s: %s", dns.TypeToString[qtype], host, dns.RcodeToString[r.Rcode])
	}

	addrs := make([]string, 0, len(r.Answer))
	for _, rr := range r.Answer {
		switch v := rr.(type) {
		case *dns.A:
			addrs = append(addrs, v.A.String())
		case *dns.AAAA:
			addrs = append(addrs, v.AAAA.String())
		}
	}
	return addrs, nil
}

// resolverAddr adds the default port, or picks the system resolver when addr is empty
func resolverAddr(addr string) string {
	if addr == "" {
		cfg, err := dns.ClientConfigFromFile(resolvConfPath)
		if err != nil || len(cfg.Servers) == 0 {
			return fallbackResolver
		}
		return net.JoinHostPort(cfg.Servers[0], cfg.Port)
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, "53")
}
