package detection

import (
	"context"
	"fmt"

	"github.com/scamshield/scam-detector/internal/domain"
)

// OTPMisuseDetector flags pages that request one-time passcodes in a context
// where a legitimate service would not.
type OTPMisuseDetector struct {
	requestPhrases []string
	sharePhrases   []string
	safePhrases    []string
}

// NewOTPMisuseDetector creates a new OTP misuse detector
func NewOTPMisuseDetector() *OTPMisuseDetector {
	return &OTPMisuseDetector{
		requestPhrases: []string{"enter otp", "enter the otp", "one time password", "one-time password", "verification code", "otp sent", "enter code"},
		sharePhrases: []string{
			"share the otp", "share otp", "tell us the otp", "provide the otp",
			"send the otp", "read out the otp", "otp to our executive", "otp to receive",
			"share the code", "send us the code",
		},
		safePhrases: []string{"never share", "do not share", "don't share", "not share your otp"},
	}
}

// Name returns the signal name
func (d *OTPMisuseDetector) Name() domain.SignalName {
	return domain.SignalOTPMisuse
}

// Detect grades an OTP request by who is asking and how
func (d *OTPMisuseDetector) Detect(ctx context.Context, page domain.PageContext, dc *DetectionContext) (domain.SignalResult, error) {
	text := pageText(page.Title, page.Text)
	otpFields := fieldKinds(page.Fields)[FieldOTP]
	requested := otpFields > 0 || containsAny(text, d.requestPhrases) || containsAny(text, d.sharePhrases)
	if !requested {
		return domain.SignalResult{Reasons: []string{}, Details: map[string]any{"otp_requested": false}}, nil
	}

	host := pageHost(page)
	trusted := host != "" && dc.trusted().IsTrustedHost(host)
	secure := isSecure(page)
	asksToShare := containsAny(text, d.sharePhrases) && !containsAny(text, d.safePhrases)

	var lookalike LookalikeMatch
	if !trusted && host != "" {
		lookalike = MatchLookalike(registrableDomain(host), dc.trusted().Domains())
	}

	reasons := make([]string, 0)
	tags := []string{domain.TagOTPRequest}
	details := map[string]any{
		"otp_requested": true,
		"otp_fields":    otpFields,
		"trusted_host":  trusted,
	}

	switch {
	case asksToShare:
		reasons = append(reasons, "Page asks you to share an OTP with someone else")
	case lookalike.IsLookalike:
		reasons = append(reasons, fmt.Sprintf("OTP requested by a site imitating %s", lookalike.MatchedDomain))
		tags = append(tags, domain.TagLookalikeDomain)
	case !secure:
		reasons = append(reasons, "OTP requested over an unencrypted connection")
	}

	if trusted && secure && !asksToShare {
		reasons = append(reasons, "OTP requested by a recognised financial site")
		return domain.SignalResult{
			Score:    0.1,
			Detected: false,
			Severity: domain.SeverityLow,
			Reasons:  reasons,
			Tags:     tags,
			Details:  details,
		}, nil
	}

	if len(reasons) > 0 {
		return domain.SignalResult{
			Score:    0.95,
			Detected: true,
			Severity: domain.SeverityHigh,
			Reasons:  reasons,
			Tags:     tags,
			Details:  details,
		}, nil
	}

	reasons = append(reasons, "OTP requested by a site that is not a recognised bank or payment provider")
	return domain.SignalResult{
		Score:    0.5,
		Detected: true,
		Severity: domain.SeverityMedium,
		Reasons:  reasons,
		Tags:     tags,
		Details:  details,
	}, nil
}
