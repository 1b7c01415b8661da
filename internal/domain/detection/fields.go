package detection

import (
	"strings"

	"github.com/scamshield/scam-detector/internal/domain"
)

// FieldKind classifies a form control by the kind of secret it collects
type FieldKind string

const (
	FieldOther    FieldKind = "other"
	FieldPassword FieldKind = "password"
	FieldOTP      FieldKind = "otp"
	FieldCard     FieldKind = "card"
	FieldCVV      FieldKind = "cvv"
	FieldUPIPin   FieldKind = "upi_pin"
	FieldAccount  FieldKind = "account"
)

var (
	otpFieldHints     = []string{"otp", "one-time", "onetime", "one time", "verification code", "passcode", "one-time-code"}
	cardFieldHints    = []string{"card number", "cardnumber", "card_number", "cc-number", "ccnum", "debit card", "credit card"}
	cvvFieldHints     = []string{"cvv", "cvc", "csc", "cc-csc", "security code"}
	upiPinFieldHints  = []string{"upi pin", "upipin", "upi_pin", "upi-pin", "mpin"}
	accountFieldHints = []string{"account number", "accountnumber", "account_no", "acc_no", "ifsc", "customer id", "user id", "netbanking"}
)

// classifyField decides what kind of secret a form control collects
func classifyField(f domain.InputField) FieldKind {
	hint := strings.ToLower(strings.Join([]string{f.Name, f.ID, f.Placeholder, f.Label, f.Autocomplete}, " "))
	switch {
	case containsAny(hint, upiPinFieldHints):
		return FieldUPIPin
	case containsAny(hint, otpFieldHints):
		return FieldOTP
	case containsAny(hint, cvvFieldHints):
		return FieldCVV
	case containsAny(hint, cardFieldHints):
		return FieldCard
	case strings.EqualFold(f.Type, "password"):
		return FieldPassword
	case containsAny(hint, accountFieldHints):
		return FieldAccount
	default:
		return FieldOther
	}
}

// fieldKinds counts the sensitive field kinds present on the page
func fieldKinds(fields []domain.InputField) map[FieldKind]int {
	kinds := make(map[FieldKind]int)
	for _, f := range fields {
		if k := classifyField(f); k != FieldOther {
			kinds[k]++
		}
	}
	return kinds
}

// hasSensitiveFields reports whether the page collects any credential or payment secret
func hasSensitiveFields(fields []domain.InputField) bool {
	return len(fieldKinds(fields)) > 0
}

// pageHost returns the cleaned host of a page, preferring the explicit domain
func pageHost(page domain.PageContext) string {
	if page.Domain != "" {
		return cleanDomain(page.Domain)
	}
	return cleanDomain(hostFromURL(page.URL))
}

// isSecure reports whether the page was served over TLS
func isSecure(page domain.PageContext) bool {
	proto := strings.TrimSuffix(strings.ToLower(page.Protocol), ":")
	if proto == "" {
		return strings.HasPrefix(strings.ToLower(page.URL), "https://")
	}
	return proto == "https"
}
