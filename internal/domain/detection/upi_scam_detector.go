package detection

import (
	"context"
	"regexp"

	"github.com/scamshield/scam-detector/internal/domain"
)

// vpaPattern matches a UPI virtual payment address such as name@okbank
var vpaPattern = regexp.MustCompile(`\b[a-z0-9._-]{2,}@(ok[a-z]+|ybl|ibl|axl|upi|paytm|apl|sbi|icici|hdfcbank)\b`)

// upiScamScoreFloor is the minimum score reported once a page is judged a UPI scam
const upiScamScoreFloor = 0.9

// UPIScamDetector looks for fake UPI collect requests, chiefly the
// "enter your PIN to receive money" pattern.
type UPIScamDetector struct {
	upiContext      []string
	receivePhrases  []string
	pressurePhrases []string
}

// NewUPIScamDetector creates a new UPI scam detector
func NewUPIScamDetector() *UPIScamDetector {
	return &UPIScamDetector{
		upiContext: []string{"upi", "bhim", "phonepe", "google pay", "gpay", "paytm", "vpa", "upi://"},
		receivePhrases: []string{
			"to receive", "receive money", "receive payment", "claim your", "cashback",
			"refund", "prize", "reward", "you have won", "credited to your",
		},
		pressurePhrases: []string{"scan the qr", "scan qr", "approve the request", "accept the request", "collect request", "expires in", "immediately"},
	}
}

// Name returns the signal name
func (d *UPIScamDetector) Name() domain.SignalName {
	return domain.SignalUPIScam
}

// Detect combines UPI indicators into an isScam verdict
func (d *UPIScamDetector) Detect(ctx context.Context, page domain.PageContext, dc *DetectionContext) (domain.SignalResult, error) {
	text := pageText(page.Title, page.Text)
	pinFields := fieldKinds(page.Fields)[FieldUPIPin]
	upiContext := pinFields > 0 || containsAny(text, d.upiContext) || vpaPattern.MatchString(text)

	reasons := make([]string, 0)
	tags := make([]string, 0)
	indicators := 0

	receiving := containsAny(text, d.receivePhrases)
	pinToReceive := upiContext && receiving && (pinFields > 0 || containsAny(text, []string{"upi pin", "enter pin", "enter your pin"}))
	if pinToReceive {
		indicators++
		tags = append(tags, domain.TagUPIPinToReceive)
		reasons = append(reasons, "Asks for your UPI PIN to receive money. A PIN is never needed to receive a payment")
	}

	host := pageHost(page)
	untrustedPin := pinFields > 0 && !dc.trusted().IsTrustedHost(host)
	if untrustedPin {
		indicators++
		reasons = append(reasons, "UPI PIN entry on a site that is not a recognised payment provider")
	}

	if receiving && !pinToReceive {
		indicators++
		reasons = append(reasons, "Promises money, cashback or a refund")
	}
	if containsAny(text, d.pressurePhrases) {
		indicators++
		reasons = append(reasons, "Pressures you to approve a payment request")
	}
	if vpaPattern.MatchString(text) {
		indicators++
		reasons = append(reasons, "Displays a UPI ID to pay to")
	}

	isScam := pinToReceive || untrustedPin || (upiContext && indicators >= 2)
	score := clamp01(float64(indicators) * 0.25)
	if !upiContext {
		score = 0
		reasons = reasons[:0]
	}
	if isScam {
		score = max(score, upiScamScoreFloor)
	}

	severity := domain.SeverityNone
	if isScam {
		severity = domain.SeverityHigh
	} else if score > 0 {
		severity = domain.SeverityLow
	}

	return domain.SignalResult{
		Score:    score,
		Detected: isScam,
		Severity: severity,
		Reasons:  reasons,
		Tags:     tags,
		Details: map[string]any{
			"is_scam":     isScam,
			"upi_context": upiContext,
			"indicators":  indicators,
		},
	}, nil
}
