package detection

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/scamshield/scam-detector/internal/domain"
)

// ipv4Pattern matches a dotted-quad anywhere in a host
var ipv4Pattern = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

const (
	longURLLength       = 75
	maxSubdomains       = 3
	maxHyphens          = 3
	randomDomainEntropy = 4.5
	phishingThreshold   = 0.6
)

// URLPhishingDetector scores the structure of the page URL
type URLPhishingDetector struct{}

// NewURLPhishingDetector creates a new URL phishing detector
func NewURLPhishingDetector() *URLPhishingDetector {
	return &URLPhishingDetector{}
}

// Name returns the signal name
func (d *URLPhishingDetector) Name() domain.SignalName {
	return domain.SignalURLPhishing
}

// URLFeatures are the structural properties extracted from a URL
type URLFeatures struct {
	Length        int     `json:"length"`
	DomainLength  int     `json:"domain_length"`
	PathLength    int     `json:"path_length"`
	NumDots       int     `json:"num_dots"`
	NumHyphens    int     `json:"num_hyphens"`
	NumAt         int     `json:"num_at"`
	NumSubdomains int     `json:"num_subdomains"`
	HasIP         bool    `json:"has_ip"`
	HasPort       bool    `json:"has_port"`
	HasPunycode   bool    `json:"has_punycode"`
	TLD           string  `json:"tld"`
	SuspiciousTLD bool    `json:"suspicious_tld"`
	Entropy       float64 `json:"domain_entropy"`
}

// ExtractURLFeatures parses a URL into features. Malformed URLs return ok=false.
func ExtractURLFeatures(raw string) (URLFeatures, bool) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return URLFeatures{}, false
	}

	host := strings.ToLower(u.Hostname())
	f := URLFeatures{
		Length:       len(raw),
		DomainLength: len(host),
		PathLength:   len(u.Path),
		NumDots:      strings.Count(raw, "."),
		NumHyphens:   strings.Count(raw, "-"),
		NumAt:        strings.Count(raw, "@"),
		HasIP:        ipv4Pattern.MatchString(host) || net.ParseIP(host) != nil,
		HasPort:      u.Port() != "",
		HasPunycode:  strings.Contains(host, "xn--"),
		Entropy:      shannonEntropy(host),
	}

	if i := strings.LastIndex(host, "."); i >= 0 {
		f.TLD = host[i+1:]
	}
	f.SuspiciousTLD = containsExact(suspiciousTLDs, f.TLD)

	if !f.HasIP {
		base := registrableDomain(host)
		if base != host {
			f.NumSubdomains = strings.Count(strings.TrimSuffix(host, base), ".")
		}
	}

	return f, true
}

// Detect applies rule-based scoring to the URL's features
func (d *URLPhishingDetector) Detect(ctx context.Context, page domain.PageContext, dc *DetectionContext) (domain.SignalResult, error) {
	features, ok := ExtractURLFeatures(page.URL)
	if !ok {
		// Malformed input is a zero score, not an error
		return domain.SignalResult{
			Reasons: []string{},
			Details: map[string]any{"malformed": true},
		}, nil
	}

	score := 0.0
	reasons := make([]string, 0)

	// Ordered most specific first
	if features.HasIP {
		score += 0.3
		reasons = append(reasons, "URL contains IP address")
	}
	if features.HasPunycode {
		score += 0.25
		reasons = append(reasons, "Punycode detected (possible homograph attack)")
	}
	if features.NumAt > 0 {
		score += 0.25
		reasons = append(reasons, "URL contains @ symbol (redirect)")
	}
	if features.NumSubdomains > maxSubdomains {
		score += 0.25
		reasons = append(reasons, fmt.Sprintf("Too many subdomains (%d)", features.NumSubdomains))
	}
	if features.SuspiciousTLD {
		score += 0.2
		reasons = append(reasons, fmt.Sprintf("Suspicious domain extension: .%s", features.TLD))
	}
	if features.Entropy > randomDomainEntropy {
		score += 0.2
		reasons = append(reasons, "Domain appears randomly generated")
	}
	if features.Length > longURLLength {
		score += 0.2
		reasons = append(reasons, "Unusually long URL")
	}
	if features.NumHyphens > maxHyphens {
		score += 0.15
		reasons = append(reasons, "Excessive hyphens in URL")
	}

	score = clamp01(score)
	return domain.SignalResult{
		Score:    score,
		Detected: score > phishingThreshold,
		Reasons:  reasons,
		Details:  map[string]any{"features": features},
	}, nil
}
