package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scamshield/scam-detector/internal/domain"
)

const (
	// FinancialMultiplier escalates the weighted sum when financial intent is present
	FinancialMultiplier = 1.5

	// OTPFloor is the minimum score once OTP misuse is graded high
	OTPFloor = 0.9

	// UPIFloor is the minimum score once a UPI scam is detected
	UPIFloor = 0.85

	// LocalBlendWeight and RemoteBlendWeight split a blended score
	LocalBlendWeight  = 0.7
	RemoteBlendWeight = 0.3
)

// accumulated signals in processing order; financialIntent is the multiplier, not a term
var weightedSignals = []domain.SignalName{
	domain.SignalWebsiteSecurity,
	domain.SignalURLPhishing,
	domain.SignalOTPMisuse,
	domain.SignalUPIScam,
}

var signalFamilies = map[domain.SignalName]string{
	domain.SignalWebsiteSecurity: "website security",
	domain.SignalURLPhishing:     "suspicious URL",
	domain.SignalFinancialIntent: "financial activity",
	domain.SignalOTPMisuse:       "OTP request",
	domain.SignalUPIScam:         "UPI payment request",
}

// Aggregator combines detector signals into one risk assessment
//
// It is stateless apart from its weight table and safe for concurrent use.
type Aggregator struct {
	weights Weights
}

// NewAggregator creates an aggregator. A nil table uses DefaultWeights.
func NewAggregator(weights Weights) *Aggregator {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Aggregator{weights: weights}
}

// Weights returns the weight table in use
func (a *Aggregator) Weights() Weights {
	return a.weights
}

// Aggregate scores a set of signals for one session
//
// otpMisuse and upiScam only count when financial is true; otherwise they are left
// out of both the sum and the renormalisation. Failed signals are treated as absent.
func (a *Aggregator) Aggregate(signals map[domain.SignalName]domain.SignalResult, financial bool) domain.RiskAssessment {
	assessment := domain.RiskAssessment{
		ID:           uuid.New(),
		Reasons:      make([]string, 0),
		Contributing: make([]domain.SignalName, 0),
		Confidence:   confidence(signals),
		AssessedAt:   time.Now(),
	}

	if assessment.Confidence == 0 {
		return incomplete(assessment)
	}

	total, weightSum := 0.0, 0.0
	for _, name := range weightedSignals {
		r, ok := usable(signals, name)
		if !ok {
			continue
		}
		if gated(name) && !financial {
			continue
		}
		weight := a.weights[name]
		total += risk(name, r) * weight
		weightSum += weight
		assessment.Contributing = append(assessment.Contributing, name)
		assessment.Reasons = append(assessment.Reasons, r.Reasons...)
	}
	// financialIntent alone carries no weighted risk and cannot back a verdict
	if len(assessment.Contributing) == 0 {
		assessment.Reasons = make([]string, 0)
		return incomplete(assessment)
	}
	if weightSum > 0 {
		total /= weightSum
	}

	if financial {
		total *= FinancialMultiplier
		assessment.Contributing = append(assessment.Contributing, domain.SignalFinancialIntent)
		if r, ok := usable(signals, domain.SignalFinancialIntent); ok {
			assessment.Reasons = append(assessment.Reasons, r.Reasons...)
		}
	}

	assessment.RiskScore = clamp01(applyFloors(total, signals, financial))
	assessment.RiskLevel = domain.LevelForScore(assessment.RiskScore)
	assessment.Explanation = explain(assessment, signals, financial)
	return assessment
}

// incomplete marks an assessment that has no evidence to score
func incomplete(a domain.RiskAssessment) domain.RiskAssessment {
	a.RiskScore = 0
	a.RiskLevel = domain.RiskLow
	a.Incomplete = true
	a.Explanation = "Analysis incomplete: not enough checks could be completed for this page. " +
		"This is not a confirmation that the page is safe."
	return a
}

// Blend mixes a remote estimate into a local assessment
//
// A failed or out-of-range remote result returns the assessment unchanged, so the
// local score stands exactly. Floors are re-applied after blending so a forced
// high verdict cannot be diluted by the remote estimate.
func (a *Aggregator) Blend(assessment domain.RiskAssessment, signals map[domain.SignalName]domain.SignalResult, financial bool, remote domain.RemoteResult) domain.RiskAssessment {
	if assessment.Incomplete || !remote.OK() || !validScore(remote.Score) {
		return assessment
	}

	blended := LocalBlendWeight*assessment.RiskScore + RemoteBlendWeight*remote.Score
	assessment.RiskScore = clamp01(applyFloors(blended, signals, financial))
	assessment.RiskLevel = domain.LevelForScore(assessment.RiskScore)
	assessment.Blended = true
	assessment.Explanation = explain(assessment, signals, financial)
	return assessment
}

// RemoteSignals builds the payload sent to the remote scorer: raw scores of every
// usable signal keyed by canonical name
func RemoteSignals(signals map[domain.SignalName]domain.SignalResult) map[string]float64 {
	out := make(map[string]float64, len(signals))
	for _, name := range domain.CanonicalSignals {
		if r, ok := usable(signals, name); ok {
			out[string(name)] = r.Score
		}
	}
	return out
}

func applyFloors(total float64, signals map[domain.SignalName]domain.SignalResult, financial bool) float64 {
	if !financial {
		return total
	}
	if r, ok := usable(signals, domain.SignalOTPMisuse); ok && r.Severity == domain.SeverityHigh {
		total = math.Max(total, OTPFloor)
	}
	if r, ok := usable(signals, domain.SignalUPIScam); ok && r.Detected {
		total = math.Max(total, UPIFloor)
	}
	return total
}

// risk converts a signal score into a risk contribution in [0, 1]
func risk(name domain.SignalName, r domain.SignalResult) float64 {
	if name == domain.SignalWebsiteSecurity {
		// trust score
		return clamp01(1 - r.Score)
	}
	return clamp01(r.Score)
}

func gated(name domain.SignalName) bool {
	return name == domain.SignalOTPMisuse || name == domain.SignalUPIScam
}

func usable(signals map[domain.SignalName]domain.SignalResult, name domain.SignalName) (domain.SignalResult, bool) {
	r, ok := signals[name]
	if !ok || r.Failed || !validScore(r.Score) {
		return domain.SignalResult{}, false
	}
	return r, true
}

func confidence(signals map[domain.SignalName]domain.SignalResult) float64 {
	available := 0
	for _, name := range domain.CanonicalSignals {
		if _, ok := usable(signals, name); ok {
			available++
		}
	}
	return float64(available) / float64(len(domain.CanonicalSignals))
}

func explain(a domain.RiskAssessment, signals map[domain.SignalName]domain.SignalResult, financial bool) string {
	switch a.RiskLevel {
	case domain.RiskHigh:
		return "High risk. Do not proceed. " + mostSevere(signals, financial) + " We strongly recommend leaving this website."
	case domain.RiskMedium:
		families := make([]string, 0, len(a.Contributing))
		for _, name := range a.Contributing {
			if r, ok := usable(signals, name); ok && (name == domain.SignalFinancialIntent || risk(name, r) > 0) {
				families = append(families, signalFamilies[name])
			}
		}
		if len(families) == 0 {
			return "Caution advised. Verify the website before proceeding."
		}
		return fmt.Sprintf("Caution advised. Concerns found in: %s. Verify the website before proceeding.", strings.Join(families, ", "))
	default:
		return "This page appears safe. Verify the website before proceeding with any payment."
	}
}

// mostSevere picks the single finding a high-risk explanation should lead with
func mostSevere(signals map[domain.SignalName]domain.SignalResult, financial bool) string {
	if financial {
		if r, ok := usable(signals, domain.SignalUPIScam); ok && r.Detected {
			return "This appears to be a UPI scam. You never need to enter your UPI PIN to receive money."
		}
		if r, ok := usable(signals, domain.SignalOTPMisuse); ok && r.Severity == domain.SeverityHigh {
			return "This site is asking for your OTP but is not trustworthy."
		}
	}
	for _, name := range []domain.SignalName{domain.SignalWebsiteSecurity, domain.SignalURLPhishing} {
		if r, ok := usable(signals, name); ok && r.HasTag(domain.TagLookalikeDomain) {
			return "This domain imitates a trusted bank or payment site."
		}
	}
	return "Multiple issues were detected on this page."
}

func validScore(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
