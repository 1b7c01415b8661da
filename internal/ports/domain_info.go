package ports

import (
	"context"
	"errors"

	"github.com/scamshield/scam-detector/internal/domain"
)

// ErrInvalidDomain is returned for names that cannot be looked up (IPs, bare suffixes)
var ErrInvalidDomain = errors.New("invalid domain name")

// DomainAgeChecker looks up when a domain was registered
type DomainAgeChecker interface {
	DomainAge(ctx context.Context, name string) (domain.DomainAge, error)
}

// DNSChecker resolves a domain to its addresses
type DNSChecker interface {
	CheckDNS(ctx context.Context, name string) (domain.DNSResult, error)
}
