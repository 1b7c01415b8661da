package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/scamshield/scam-detector/internal/adapters/alerts"
	"github.com/scamshield/scam-detector/internal/adapters/domaininfo"
	httpadapter "github.com/scamshield/scam-detector/internal/adapters/http"
	"github.com/scamshield/scam-detector/internal/adapters/page"
	"github.com/scamshield/scam-detector/internal/adapters/remote"
	"github.com/scamshield/scam-detector/internal/adapters/storage"
	"github.com/scamshield/scam-detector/internal/application"
	"github.com/scamshield/scam-detector/internal/config"
	"github.com/scamshield/scam-detector/internal/domain/detection"
	"github.com/scamshield/scam-detector/internal/domain/scoring"
	"github.com/scamshield/scam-detector/internal/observability"
	"github.com/scamshield/scam-detector/internal/ports"
)

func main() {
	cfg, err := config.Load()
	logger := observability.InitLogger(observability.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fatal(logger, "Invalid configuration", err)
	}

	logger.Info("Starting scam detection service", "addr", cfg.ListenAddr)

	rules, err := config.LoadRules(cfg.TrustedDomainsFile)
	if err != nil {
		fatal(logger, "Failed to load rules", err)
	}
	weights, err := rules.ScoringWeights()
	if err != nil {
		fatal(logger, "Failed to load rules", err)
	}
	trusted := rules.TrustedSet()
	logger.Info("Detection rules loaded", "trusted_domains", trusted.Len())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components := map[string]string{"trusted_domains": strconv.Itoa(trusted.Len())}

	// History store: Postgres when configured, in-memory otherwise
	var store ports.AssessmentStore
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			fatal(logger, "Failed to connect to database", err)
		}
		if err := pg.InitSchema(ctx); err != nil {
			fatal(logger, "Failed to initialize schema", err)
		}
		store = pg
		components["store"] = "postgres"
		logger.Info("Connected to PostgreSQL")
	} else {
		store = storage.NewMemoryStore(cfg.HistoryLimit)
		components["store"] = "memory"
	}
	defer store.Close()

	var scorer ports.RemoteRiskScorer
	components["remote_scorer"] = "disabled"
	if cfg.RemoteScorerURL != "" {
		scorer = remote.NewClient(cfg.RemoteScorerURL, cfg.RemoteTimeout)
		components["remote_scorer"] = "enabled"
	}

	publishers := []ports.AlertPublisher{alerts.NewLogPublisher(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		kafka := alerts.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AlertTopic)
		defer kafka.Close()
		publishers = append(publishers, kafka)
		components["alerts"] = "log,kafka"
	} else {
		components["alerts"] = "log"
	}

	dc := detection.NewDetectionContext(trusted)
	var ages ports.DomainAgeChecker
	components["domain_age"] = "disabled"
	if cfg.DomainAgeLookup {
		whois := domaininfo.NewWhoisChecker(cfg.WhoisTimeout, logger)
		ages = whois
		dc.DomainAges = whois
		components["domain_age"] = "whois"
	}
	dns := domaininfo.NewDNSChecker(cfg.DNSResolver, cfg.DNSTimeout)
	components["dns_resolver"] = dns.Resolver()

	aggregator := scoring.NewAggregator(weights)
	logger.Info("Scoring weights", "weights", aggregator.Weights())

	metrics := observability.NewMetrics()

	orch := application.NewOrchestrator(
		detection.NewSuiteWithContext(dc),
		aggregator,
		application.Options{
			DetectorTimeout: cfg.DetectorTimeout,
			Debounce:        cfg.ReanalysisDebounce,
			Remote:          scorer,
			DomainAges:      ages,
			DNS:             dns,
			Store:           store,
			Publishers:      publishers,
			Metrics:         metrics,
			Logger:          logger,
		},
	)
	defer orch.Close()

	api := httpadapter.New(orch, page.NewExtractor(), httpadapter.Options{
		Metrics:    metrics,
		Logger:     logger,
		RateLimit:  rate.Limit(cfg.RateLimitRPS),
		RateBurst:  cfg.RateLimitBurst,
		Components: components,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("Listening", "addr", cfg.ListenAddr, "components", components)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Scam detection service stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
