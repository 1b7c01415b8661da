package detection

import (
	"github.com/scamshield/scam-detector/internal/domain"
)

// Suite groups the detectors a pipeline runs, split by stage
//
// The baseline stage always runs, in order. The financial stage only runs when
// the baseline financial-intent detector fires, so detectors that would be noisy
// on ordinary pages (OTP requests, UPI collect flows) stay quiet elsewhere.
//
// Detectors are injected rather than resolved globally:
//   - Tests can swap any stage for fakes
//   - A deployment can drop a detector without touching the pipeline
type Suite struct {
	baseline  []Detector
	financial []Detector
	context   *DetectionContext
}

// NewSuite creates a suite from explicit stage lists
func NewSuite(baseline, financial []Detector, dc *DetectionContext) *Suite {
	if dc == nil {
		dc = NewDetectionContext(nil)
	}
	return &Suite{
		baseline:  baseline,
		financial: financial,
		context:   dc,
	}
}

// NewStandardSuite creates a suite with all built-in detectors
//
// Detectors producing the OTP-misuse and UPI-scam signals go to the financial
// stage; everything else is baseline.
func NewStandardSuite(trusted *TrustedDomainSet) *Suite {
	return NewSuiteWithContext(NewDetectionContext(trusted))
}

// NewSuiteWithContext creates a standard suite sharing the given detection context
func NewSuiteWithContext(dc *DetectionContext) *Suite {
	baseline := make([]Detector, 0, 3)
	financial := make([]Detector, 0, 2)
	for _, d := range StandardDetectors() {
		switch d.Name() {
		case domain.SignalOTPMisuse, domain.SignalUPIScam:
			financial = append(financial, d)
		default:
			baseline = append(baseline, d)
		}
	}
	return NewSuite(baseline, financial, dc)
}

// Baseline returns the detectors that run on every page, in order
func (s *Suite) Baseline() []Detector {
	return s.baseline
}

// Financial returns the detectors gated on financial intent, in order
func (s *Suite) Financial() []Detector {
	return s.financial
}

// Context returns the shared detection context
func (s *Suite) Context() *DetectionContext {
	return s.context
}

// Lookup returns the detector producing the named signal, searching both stages
func (s *Suite) Lookup(name domain.SignalName) (Detector, bool) {
	for _, d := range s.baseline {
		if d.Name() == name {
			return d, true
		}
	}
	for _, d := range s.financial {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}
