package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/scamshield/scam-detector/internal/domain"
)

// Intent labels reported by the financial intent detector
const (
	IntentNone           = "none"
	IntentUPIPayment     = "upi-payment"
	IntentOTPVerify      = "otp-verification"
	IntentCardEntry      = "card-entry"
	IntentBankingLogin   = "banking-login"
	IntentPayment        = "payment"
	IntentGeneralFinance = "general-financial"
)

var financialKeywords = []string{
	"bank", "banking", "login", "password", "otp", "cvv", "pin",
	"upi", "payment", "transaction", "account", "netbanking",
	"debit", "credit", "card number", "transfer", "balance",
}

// financialKeywordThreshold is how many keywords make a page financial on text alone
const financialKeywordThreshold = 3

// FinancialIntentDetector decides whether a page exhibits banking, payment,
// OTP or card-entry behavior. Its verdict gates the stricter detectors.
type FinancialIntentDetector struct {
	keywords        []string
	paymentKeywords []string
	upiKeywords     []string
}

// NewFinancialIntentDetector creates a new financial intent detector
func NewFinancialIntentDetector() *FinancialIntentDetector {
	return &FinancialIntentDetector{
		keywords:        financialKeywords,
		paymentKeywords: []string{"pay now", "payment", "checkout", "amount", "transfer", "refund"},
		upiKeywords:     []string{"upi", "bhim", "vpa", "upi id", "scan and pay", "upi://"},
	}
}

// Name returns the signal name
func (d *FinancialIntentDetector) Name() domain.SignalName {
	return domain.SignalFinancialIntent
}

// Detect counts financial vocabulary and sensitive form fields
func (d *FinancialIntentDetector) Detect(ctx context.Context, page domain.PageContext, dc *DetectionContext) (domain.SignalResult, error) {
	text := pageText(page.Title, page.Text)
	matched := matchedKeywords(text, d.keywords)
	kinds := fieldKinds(page.Fields)

	reasons := make([]string, 0)
	for _, kind := range []FieldKind{FieldUPIPin, FieldOTP, FieldCVV, FieldCard, FieldPassword, FieldAccount} {
		if kinds[kind] > 0 {
			reasons = append(reasons, fmt.Sprintf("Page requests %s details", strings.ReplaceAll(string(kind), "_", " ")))
		}
	}
	if len(matched) > 0 {
		reasons = append(reasons, fmt.Sprintf("Financial keywords detected: %s", strings.Join(matched, ", ")))
	}

	intent := d.classify(text, kinds, matched)
	isFinancial := len(matched) >= financialKeywordThreshold || hasPaymentSecret(kinds) ||
		(kinds[FieldPassword] > 0 && len(matched) > 0)
	if !isFinancial {
		intent = IntentNone
	}

	score := clamp01(float64(len(matched))*0.1 + float64(len(kinds))*0.25)
	return domain.SignalResult{
		Score:    score,
		Detected: isFinancial,
		Reasons:  reasons,
		Details: map[string]any{
			"intent":       intent,
			"keywords":     matched,
			"field_kinds":  len(kinds),
			"is_financial": isFinancial,
		},
	}, nil
}

// classify picks the most specific intent label for the page
func (d *FinancialIntentDetector) classify(text string, kinds map[FieldKind]int, matched []string) string {
	switch {
	case kinds[FieldUPIPin] > 0 || containsAny(text, d.upiKeywords):
		return IntentUPIPayment
	case kinds[FieldOTP] > 0:
		return IntentOTPVerify
	case kinds[FieldCard] > 0 || kinds[FieldCVV] > 0:
		return IntentCardEntry
	case kinds[FieldPassword] > 0 && containsAny(text, []string{"bank", "netbanking", "account"}):
		return IntentBankingLogin
	case containsAny(text, d.paymentKeywords):
		return IntentPayment
	case len(matched) > 0:
		return IntentGeneralFinance
	default:
		return IntentNone
	}
}

// hasPaymentSecret reports whether the page collects an OTP, card or UPI secret
func hasPaymentSecret(kinds map[FieldKind]int) bool {
	return kinds[FieldOTP] > 0 || kinds[FieldCard] > 0 || kinds[FieldCVV] > 0 || kinds[FieldUPIPin] > 0
}
