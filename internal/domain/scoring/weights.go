package scoring

import (
	"fmt"

	"github.com/scamshield/scam-detector/internal/domain"
)

// Weights maps each canonical signal to its base weight
type Weights map[domain.SignalName]float64

// DefaultWeights returns the built-in weight table
func DefaultWeights() Weights {
	return Weights{
		domain.SignalWebsiteSecurity: 0.20,
		domain.SignalURLPhishing:     0.15,
		domain.SignalFinancialIntent: 0.25,
		domain.SignalOTPMisuse:       0.20,
		domain.SignalUPIScam:         0.20,
	}
}

// Merge returns a copy of w with the given overrides applied
func (w Weights) Merge(overrides map[domain.SignalName]float64) (Weights, error) {
	out := make(Weights, len(w))
	for name, weight := range w {
		out[name] = weight
	}
	for name, weight := range overrides {
		if _, known := w[name]; !known {
			return nil, fmt.Errorf("unknown signal %q", name)
		}
		if weight < 0 {
			return nil, fmt.Errorf("weight for %s must be non-negative, got %v", name, weight)
		}
		out[name] = weight
	}
	return out, nil
}

// SignalsFromScores converts a raw score map (as sent by clients that only know
// numbers) into signal results
//
// Keys are canonical signal names; "websiteTrust" is accepted as an alias for
// websiteSecurity. Unknown keys are ignored.
func SignalsFromScores(scores map[string]float64) map[domain.SignalName]domain.SignalResult {
	signals := make(map[domain.SignalName]domain.SignalResult, len(scores))
	for key, score := range scores {
		name := domain.SignalName(key)
		if key == "websiteTrust" {
			name = domain.SignalWebsiteSecurity
		}

		r := domain.SignalResult{Score: score, Reasons: []string{}}
		switch name {
		case domain.SignalWebsiteSecurity:
			r.Detected = score < 0.5
		case domain.SignalURLPhishing:
			r.Detected = score > 0.6
		case domain.SignalFinancialIntent:
			r.Detected = score > 0.5
		case domain.SignalOTPMisuse:
			r.Detected = score >= 0.5
			switch {
			case score >= 0.9:
				r.Severity = domain.SeverityHigh
			case score >= 0.5:
				r.Severity = domain.SeverityMedium
			case score > 0:
				r.Severity = domain.SeverityLow
			}
		case domain.SignalUPIScam:
			r.Detected = score >= 0.9
		default:
			continue
		}
		signals[name] = r
	}
	return signals
}
