package detection

import (
	"context"

	"github.com/scamshield/scam-detector/internal/domain"
)

// Detector defines the contract every page detector must implement
//
// Detectors are independent of each other and of the pipeline that runs them:
//   - Each one inspects the page context and reports a bounded score with reasons
//   - None of them mutate the page context or any shared state
//   - Errors are returned, never panicked, but callers must still tolerate both
type Detector interface {
	// Detect analyzes a page and returns the detector's signal
	Detect(ctx context.Context, page domain.PageContext, dc *DetectionContext) (domain.SignalResult, error)

	// Name returns the signal this detector produces
	Name() domain.SignalName
}

// DetectionContext provides shared read-only configuration needed by multiple detectors
type DetectionContext struct {
	// TrustedDomains are bank and payment-provider domains (e.g., "hdfcbank.com", "paytm.com")
	// Used for lookalike detection and to relax OTP checks on legitimate sites
	TrustedDomains *TrustedDomainSet

	// DomainAges looks up registration age; nil disables the new-domain check
	DomainAges DomainAgeSource
}

// DomainAgeSource reports when a domain was registered
type DomainAgeSource interface {
	DomainAge(ctx context.Context, name string) (domain.DomainAge, error)
}

// NewDetectionContext creates a new detection context with the provided configuration
func NewDetectionContext(trusted *TrustedDomainSet) *DetectionContext {
	if trusted == nil {
		trusted = NewTrustedDomainSet(nil)
	}
	return &DetectionContext{TrustedDomains: trusted}
}

// StandardDetectors returns one instance of every built-in detector in pipeline order
func StandardDetectors() []Detector {
	return []Detector{
		NewWebsiteSecurityDetector(),
		NewURLPhishingDetector(),
		NewFinancialIntentDetector(),
		NewOTPMisuseDetector(),
		NewUPIScamDetector(),
	}
}

// trusted returns the trusted set, tolerating a nil context
func (dc *DetectionContext) trusted() *TrustedDomainSet {
	if dc == nil || dc.TrustedDomains == nil {
		return NewTrustedDomainSet(nil)
	}
	return dc.TrustedDomains
}

func (dc *DetectionContext) domainAges() DomainAgeSource {
	if dc == nil {
		return nil
	}
	return dc.DomainAges
}
