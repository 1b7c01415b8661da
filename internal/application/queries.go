package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/domain/detection"
	"github.com/scamshield/scam-detector/internal/domain/scoring"
	"github.com/scamshield/scam-detector/internal/ports"
)

// ScoreSignals aggregates a raw score map supplied by a client, blending with the
// remote scorer when one is configured
func (o *Orchestrator) ScoreSignals(ctx context.Context, scores map[string]float64) domain.RiskAssessment {
	signals := scoring.SignalsFromScores(scores)
	financial := false
	if r, ok := signals[domain.SignalFinancialIntent]; ok {
		financial = r.Detected
	}

	assessment := o.aggregator.Aggregate(signals, financial)
	if o.remote != nil && !assessment.Incomplete {
		remote := o.remote.Score(ctx, scoring.RemoteSignals(signals))
		if !remote.OK() {
			o.metrics.RemoteFailed()
			o.logger.Warn("Remote scorer unavailable, keeping local score", "error", remote.Err)
		}
		assessment = o.aggregator.Blend(assessment, signals, financial, remote)
	}
	return assessment
}

// AnalyzeURL runs the URL phishing detector on its own
func (o *Orchestrator) AnalyzeURL(ctx context.Context, rawURL string) (domain.SignalResult, error) {
	d, ok := o.suite.Lookup(domain.SignalURLPhishing)
	if !ok {
		return domain.SignalResult{}, fmt.Errorf("no detector registered for %s", domain.SignalURLPhishing)
	}
	page := domain.PageContext{URL: rawURL}
	return o.runDetector(ctx, domain.AnalysisSession{URL: rawURL}, page, d), nil
}

// CheckLookalike matches a domain against the configured trusted set
func (o *Orchestrator) CheckLookalike(candidate string) detection.LookalikeMatch {
	return detection.MatchLookalike(candidate, o.suite.Context().TrustedDomains.Domains())
}

// ClassifyWebpage labels page text as financial and scores its phishing language
func (o *Orchestrator) ClassifyWebpage(rawURL, text string) detection.WebpageClassification {
	c := o.classifier.Classify(rawURL, text)
	if c.IsPhishing {
		o.logger.Info("Webpage text classified as phishing", "url", rawURL, "score", c.PhishingScore, "indicators", c.PhishingIndicators)
	}
	return c
}

// DomainAge reports when a domain was registered
func (o *Orchestrator) DomainAge(ctx context.Context, name string) (domain.DomainAge, error) {
	if o.domainAges == nil {
		return domain.DomainAge{}, fmt.Errorf("domain age: %w", ErrLookupUnavailable)
	}
	return o.domainAges.DomainAge(ctx, name)
}

// CheckDNS reports whether a domain resolves and to which addresses
func (o *Orchestrator) CheckDNS(ctx context.Context, name string) (domain.DNSResult, error) {
	if o.dns == nil {
		return domain.DNSResult{}, fmt.Errorf("dns: %w", ErrLookupUnavailable)
	}
	return o.dns.CheckDNS(ctx, name)
}

// AssessmentByID loads a stored assessment
func (o *Orchestrator) AssessmentByID(ctx context.Context, id uuid.UUID) (*domain.RiskAssessment, error) {
	if o.store == nil {
		return nil, ports.ErrNotFound
	}
	return o.store.GetAssessment(ctx, id)
}

// RecentHighRisk returns stored high-risk assessments, newest first
func (o *Orchestrator) RecentHighRisk(ctx context.Context, limit int) ([]domain.RiskAssessment, error) {
	if o.store == nil {
		return []domain.RiskAssessment{}, nil
	}
	return o.store.RecentHighRisk(ctx, limit)
}
