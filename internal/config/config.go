package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/domain/detection"
	"github.com/scamshield/scam-detector/internal/domain/scoring"
)

// Config is the process configuration, read once at startup
type Config struct {
	ListenAddr         string
	DatabaseURL        string // empty keeps history in memory
	RemoteScorerURL    string // empty disables remote blending
	RemoteTimeout      time.Duration
	DetectorTimeout    time.Duration
	ReanalysisDebounce time.Duration
	TrustedDomainsFile string
	KafkaBrokers       []string
	AlertTopic         string
	RateLimitRPS       float64
	RateLimitBurst     int
	HistoryLimit       int
	DomainAgeLookup    bool   // WHOIS lookups for /api/domain-age and the new-domain check
	WhoisTimeout       time.Duration
	DNSResolver        string // empty uses /etc/resolv.conf
	DNSTimeout         time.Duration
	LogLevel           string
	LogFormat          string
}

// Load reads the configuration from environment variables
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RemoteScorerURL:    os.Getenv("REMOTE_SCORER_URL"),
		RemoteTimeout:      getEnvDuration("REMOTE_SCORER_TIMEOUT", 3*time.Second),
		DetectorTimeout:    getEnvDuration("DETECTOR_TIMEOUT", 2*time.Second),
		ReanalysisDebounce: getEnvDuration("REANALYSIS_DEBOUNCE", time.Second),
		TrustedDomainsFile: os.Getenv("TRUSTED_DOMAINS_FILE"),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		AlertTopic:         getEnv("ALERT_TOPIC", "scam-alerts"),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 1000),
		DomainAgeLookup:    getEnvBool("DOMAIN_AGE_LOOKUP", true),
		WhoisTimeout:       getEnvDuration("WHOIS_TIMEOUT", 5*time.Second),
		DNSResolver:        os.Getenv("DNS_RESOLVER"),
		DNSTimeout:         getEnvDuration("DNS_TIMEOUT", 2*time.Second),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
	}

	if cfg.DetectorTimeout <= 0 {
		return cfg, fmt.Errorf("DETECTOR_TIMEOUT must be positive, got %s", cfg.DetectorTimeout)
	}
	if cfg.RemoteTimeout <= 0 {
		return cfg, fmt.Errorf("REMOTE_SCORER_TIMEOUT must be positive, got %s", cfg.RemoteTimeout)
	}
	if cfg.WhoisTimeout <= 0 || cfg.DNSTimeout <= 0 {
		return cfg, fmt.Errorf("WHOIS_TIMEOUT and DNS_TIMEOUT must be positive, got %s and %s", cfg.WhoisTimeout, cfg.DNSTimeout)
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return cfg, fmt.Errorf("rate limit must be positive, got %v rps burst %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	return cfg, nil
}

// Rules is the optional YAML file tuning detection and scoring
type Rules struct {
	TrustedDomains []string           `yaml:"trusted_domains"`
	Weights        map[string]float64 `yaml:"weights"`
}

// LoadRules reads a rules file. An empty path yields empty rules, which
// resolve to the built-in trusted domains and weights.
func LoadRules(path string) (Rules, error) {
	var rules Rules
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return rules, nil
}

// TrustedSet builds the trusted domain set, falling back to the built-in list
func (r Rules) TrustedSet() *detection.TrustedDomainSet {
	if len(r.TrustedDomains) == 0 {
		return detection.NewTrustedDomainSet(detection.DefaultTrustedDomains)
	}
	return detection.NewTrustedDomainSet(r.TrustedDomains)
}

// ScoringWeights applies the configured overrides to the default weights
func (r Rules) ScoringWeights() (scoring.Weights, error) {
	overrides := make(map[domain.SignalName]float64, len(r.Weights))
	for name, w := range r.Weights {
		overrides[domain.SignalName(name)] = w
	}
	weights, err := scoring.DefaultWeights().Merge(overrides)
	if err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return weights, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
