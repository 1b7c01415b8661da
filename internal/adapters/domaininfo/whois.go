package domaininfo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/ports"
)

// Compile-time interface check.
var _ ports.DomainAgeChecker = (*WhoisChecker)(nil)

const (
	DefaultWhoisTimeout = 5 * time.Second
	DefaultCacheTTL     = 24 * time.Hour
)

var ErrInvalidDomain = ports.ErrInvalidDomain

// createdLayouts are the creation date formats seen across registries
var createdLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006.01.02 15:04:05",
	"2006.01.02",
	"2006/01/02",
	"02-Jan-2006",
	"02.01.2006",
	"January 2 2006",
}

// LookupFunc returns the raw WHOIS record for a domain
type LookupFunc func(ctx context.Context, name string) (string, error)

type cachedAge struct {
	age     domain.DomainAge
	expires time.Time
}

// WhoisChecker resolves domain registration age through WHOIS
//
// Results are cached per registrable domain and concurrent lookups for the same
// name share a single WHOIS query.
type WhoisChecker struct {
	lookup  LookupFunc
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedAge
	group singleflight.Group
}

// WhoisOption customizes a WhoisChecker
type WhoisOption func(*WhoisChecker)

// WithLookup replaces the WHOIS transport
func WithLookup(fn LookupFunc) WhoisOption {
	return func(c *WhoisChecker) { c.lookup = fn }
}

// WithClock replaces the time source used to compute ages
func WithClock(now func() time.Time) WhoisOption {
	return func(c *WhoisChecker) { c.now = now }
}

// WithCacheTTL sets how long answers are kept
func WithCacheTTL(ttl time.Duration) WhoisOption {
	return func(c *WhoisChecker) { c.ttl = ttl }
}

// NewWhoisChecker creates a checker. A zero timeout selects DefaultWhoisTimeout.
func NewWhoisChecker(timeout time.Duration, logger *slog.Logger, opts ...WhoisOption) *WhoisChecker {
	if timeout <= 0 {
		timeout = DefaultWhoisTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &WhoisChecker{
		timeout: timeout,
		ttl:     DefaultCacheTTL,
		now:     time.Now,
		logger:  logger,
		cache:   make(map[string]cachedAge),
	}
	c.lookup = c.queryWhois
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DomainAge returns when the registrable domain of name was registered
//
// A record without a usable creation date, or a registry answering "no match",
// yields an unknown age rather than an error. Transport failures are errors.
func (c *WhoisChecker) DomainAge(ctx context.Context, name string) (domain.DomainAge, error) {
	name, err := registrable(name)
	if err != nil {
		return domain.DomainAge{}, err
	}

	if age, ok := c.cached(name); ok {
		return age, nil
	}

	ch := c.group.DoChan(name, func() (any, error) {
		// Shared by every waiter, so no single caller's cancellation applies
		callCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		age, err := c.resolve(callCtx, name)
		if err != nil {
			return nil, err
		}
		c.store(name, age)
		return age, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.DomainAge{}, res.Err
		}
		return res.Val.(domain.DomainAge), nil
	case <-ctx.Done():
		return domain.DomainAge{}, fmt.Errorf("whois %s: %w", name, ctx.Err())
	}
}

func (c *WhoisChecker) resolve(ctx context.Context, name string) (domain.DomainAge, error) {
	raw, err := c.lookup(ctx, name)
	if err != nil {
		return domain.DomainAge{}, fmt.Errorf("whois %s: %w", name, err)
	}

	info, err := whoisparser.Parse(raw)
	if err != nil {
		if !errors.Is(err, whoisparser.ErrNotFoundDomain) {
			c.logger.Debug("Unparseable WHOIS record", "domain", name, "error", err)
		}
		return domain.UnknownDomainAge(name), nil
	}
	if info.Domain == nil {
		return domain.UnknownDomainAge(name), nil
	}

	created, ok := parseCreated(info.Domain.CreatedDate)
	if !ok {
		c.logger.Debug("WHOIS record has no usable creation date", "domain", name, "created", info.Domain.CreatedDate)
		return domain.UnknownDomainAge(name), nil
	}

	registrar := ""
	if info.Registrar != nil {
		registrar = info.Registrar.Name
	}
	return domain.NewDomainAge(name, created.UTC(), registrar, c.now().UTC()), nil
}

// queryWhois is the default transport. The WHOIS client has no context support,
// so the query runs aside and is abandoned when ctx ends.
func (c *WhoisChecker) queryWhois(ctx context.Context, name string) (string, error) {
	type answer struct {
		raw string
		err error
	}
	done := make(chan answer, 1)
	go func() {
		raw, err := whois.NewClient().SetTimeout(c.timeout).Whois(name)
		done <- answer{raw: raw, err: err}
	}()

	select {
	case a := <-done:
		return a.raw, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *WhoisChecker) cached(name string) (domain.DomainAge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[name]
	if !ok {
		return domain.DomainAge{}, false
	}
	if c.now().After(entry.expires) {
		delete(c.cache, name)
		return domain.DomainAge{}, false
	}
	return entry.age, true
}

func (c *WhoisChecker) store(name string, age domain.DomainAge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[name] = cachedAge{age: age, expires: c.now().Add(c.ttl)}
}

// parseCreated reads a registry creation date in any of the known layouts
func parseCreated(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// registrable reduces a host to its eTLD+1, rejecting IPs and bare suffixes
func registrable(raw string) (string, error) {
	host := normalizeDomain(raw)
	if host == "" || net.ParseIP(host) != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	return etld1, nil
}

// normalizeDomain lowercases a host and drops scheme, path, port and "www."
func normalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#:"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}
