package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the discrete verdict attached to a session
type RiskLevel string

const (
	RiskUnknown RiskLevel = "unknown"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

// Level thresholds, inclusive lower bounds
const (
	HighRiskThreshold   = 0.7
	MediumRiskThreshold = 0.4
)

// LevelForScore converts a risk score to a categorical level
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// AlertWorthy reports whether the presentation layer should be notified for this level
func (l RiskLevel) AlertWorthy() bool {
	return l == RiskMedium || l == RiskHigh
}

// SignalName identifies one of the canonical detector outputs
type SignalName string

const (
	SignalWebsiteSecurity SignalName = "websiteSecurity"
	SignalURLPhishing     SignalName = "urlPhishing"
	SignalFinancialIntent SignalName = "financialIntent"
	SignalOTPMisuse       SignalName = "otpMisuse"
	SignalUPIScam         SignalName = "upiScam"
)

// CanonicalSignals lists the five signals in processing order
var CanonicalSignals = []SignalName{
	SignalWebsiteSecurity,
	SignalURLPhishing,
	SignalFinancialIntent,
	SignalOTPMisuse,
	SignalUPIScam,
}

// Severity grades how serious a detector considers its finding
type Severity string

const (
	SeverityNone   Severity = ""
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Evidence tags detectors attach so the aggregator can rank explanations
// without reading detector-specific details.
const (
	TagLookalikeDomain = "lookalike_domain"
	TagInsecureForm    = "insecure_form"
	TagOTPRequest      = "otp_request"
	TagUPIPinToReceive = "upi_pin_to_receive"
	TagNewDomain       = "new_domain"
)

// SignalResult is the output of one detector. Treat it as immutable once returned.
type SignalResult struct {
	Score    float64        `json:"score"` // 0.0 to 1.0
	Detected bool           `json:"detected"`
	Severity Severity       `json:"severity,omitempty"`
	Reasons  []string       `json:"reasons"` // most specific first
	Tags     []string       `json:"tags,omitempty"`
	Details  map[string]any `json:"details,omitempty"` // detector specific, opaque to scoring

	// Failed marks the default result substituted for a detector that errored,
	// panicked, timed out or returned malformed data.
	Failed bool `json:"failed,omitempty"`
}

// FailedSignal returns the default result used in place of a failing detector
func FailedSignal() SignalResult {
	return SignalResult{Score: 0, Detected: false, Reasons: []string{}, Failed: true}
}

// HasTag reports whether the detector attached the given evidence tag
func (r SignalResult) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Intent returns the financial intent label reported by the financial-intent detector
func (r SignalResult) Intent() string {
	if r.Details == nil {
		return ""
	}
	intent, _ := r.Details["intent"].(string)
	return intent
}

// PageContext is everything a detector may inspect about one page load
type PageContext struct {
	URL      string       `json:"url"`
	Domain   string       `json:"domain"`
	Protocol string       `json:"protocol"`
	Title    string       `json:"title,omitempty"`
	Text     string       `json:"text,omitempty"`
	Fields   []InputField `json:"fields,omitempty"`
	Links    []string     `json:"links,omitempty"`
}

// InputField describes one form control found on the page
type InputField struct {
	Type         string `json:"type"`
	Name         string `json:"name,omitempty"`
	ID           string `json:"id,omitempty"`
	Placeholder  string `json:"placeholder,omitempty"`
	Label        string `json:"label,omitempty"`
	Autocomplete string `json:"autocomplete,omitempty"`
	MaxLength    int    `json:"max_length,omitempty"`
	FormAction   string `json:"form_action,omitempty"`
}

// Mutation summarises a burst of DOM changes reported by the page
type Mutation struct {
	AddedNodes  int `json:"added_nodes"`
	AddedFields int `json:"added_fields"`
}

// SignificantNodeCount is the number of added nodes that counts as a significant change
const SignificantNodeCount = 10

// Significant reports whether the mutation is worth re-analysing the page for
func (m Mutation) Significant() bool {
	return m.AddedFields > 0 || m.AddedNodes >= SignificantNodeCount
}

// AnalysisSession is one page load in one tab. Each pipeline stage produces
// a new value instead of mutating the previous one.
type AnalysisSession struct {
	ID        uuid.UUID                   `json:"id"`
	TabID     string                      `json:"tab_id"`
	URL       string                      `json:"url"`
	Domain    string                      `json:"domain"`
	Protocol  string                      `json:"protocol"`
	Signals   map[SignalName]SignalResult `json:"signals"`
	RiskLevel RiskLevel                   `json:"risk_level"`
	Busy      bool                        `json:"busy"`
	StartedAt time.Time                   `json:"started_at"`
}

// NewAnalysisSession creates an idle session for a page
func NewAnalysisSession(tabID string, page PageContext) AnalysisSession {
	return AnalysisSession{
		ID:        uuid.New(),
		TabID:     tabID,
		URL:       page.URL,
		Domain:    page.Domain,
		Protocol:  page.Protocol,
		Signals:   make(map[SignalName]SignalResult),
		RiskLevel: RiskUnknown,
		StartedAt: time.Now(),
	}
}

// WithSignals returns a copy of the session with the given results merged in
func (s AnalysisSession) WithSignals(results map[SignalName]SignalResult) AnalysisSession {
	merged := make(map[SignalName]SignalResult, len(s.Signals)+len(results))
	for name, r := range s.Signals {
		merged[name] = r
	}
	for name, r := range results {
		merged[name] = r
	}
	s.Signals = merged
	return s
}

// WithBusy returns a copy of the session with the busy flag set
func (s AnalysisSession) WithBusy(busy bool) AnalysisSession {
	s.Busy = busy
	return s
}

// WithRiskLevel returns a copy of the session carrying the scored level
func (s AnalysisSession) WithRiskLevel(level RiskLevel) AnalysisSession {
	s.RiskLevel = level
	return s
}

// FinancialIntent reports whether the baseline financial-intent signal fired
func (s AnalysisSession) FinancialIntent() bool {
	r, ok := s.Signals[SignalFinancialIntent]
	return ok && !r.Failed && r.Detected
}

// RiskAssessment is the single verdict produced for a completed pipeline run
type RiskAssessment struct {
	ID           uuid.UUID    `json:"id"`
	SessionID    uuid.UUID    `json:"session_id"`
	URL          string       `json:"url,omitempty"`
	RiskScore    float64      `json:"risk_score"` // 0.0 to 1.0
	RiskLevel    RiskLevel    `json:"risk_level"`
	Explanation  string       `json:"explanation"`
	Reasons      []string     `json:"reasons"`
	Contributing []SignalName `json:"contributing_signals"`
	Confidence   float64      `json:"confidence"`
	Blended      bool         `json:"remote_blended"`
	Incomplete   bool         `json:"incomplete,omitempty"`
	AssessedAt   time.Time    `json:"assessed_at"`
}

// RemoteResult is either a remote risk score or the reason none is available
type RemoteResult struct {
	Score float64
	Err   error
}

// RemoteScore wraps a successful remote estimate
func RemoteScore(score float64) RemoteResult {
	return RemoteResult{Score: score}
}

// RemoteFailure wraps a remote failure
func RemoteFailure(err error) RemoteResult {
	return RemoteResult{Err: err}
}

// OK reports whether the remote service produced a usable score
func (r RemoteResult) OK() bool {
	return r.Err == nil
}

// Alert is what the presentation layer receives for medium and high verdicts
type Alert struct {
	SessionID   uuid.UUID `json:"session_id"`
	TabID       string    `json:"tab_id"`
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	RiskLevel   RiskLevel `json:"risk_level"`
	RiskScore   float64   `json:"risk_score"`
	Explanation string    `json:"explanation"`
	Reasons     []string  `json:"reasons"`
	RaisedAt    time.Time `json:"raised_at"`
}

// NewAlert builds the alert for an assessed session
func NewAlert(session AnalysisSession, assessment RiskAssessment) Alert {
	return Alert{
		SessionID:   session.ID,
		TabID:       session.TabID,
		URL:         session.URL,
		Domain:      session.Domain,
		RiskLevel:   assessment.RiskLevel,
		RiskScore:   assessment.RiskScore,
		Explanation: assessment.Explanation,
		Reasons:     assessment.Reasons,
		RaisedAt:    time.Now(),
	}
}

// NewDomainAgeDays is the registration age under which a domain counts as new
const NewDomainAgeDays = 90

// DomainAge is the registration age of a domain as reported by WHOIS
type DomainAge struct {
	Domain           string     `json:"domain"`
	AgeDays          int        `json:"age_days"` // -1 when unknown
	IsNew            bool       `json:"is_new"`
	RegistrationDate *time.Time `json:"registration_date,omitempty"`
	Registrar        string     `json:"registrar,omitempty"`
}

// NewDomainAge computes the age of a domain registered at created
func NewDomainAge(name string, created time.Time, registrar string, now time.Time) DomainAge {
	days := int(now.Sub(created).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return DomainAge{
		Domain:           name,
		AgeDays:          days,
		IsNew:            days < NewDomainAgeDays,
		RegistrationDate: &created,
		Registrar:        registrar,
	}
}

// UnknownDomainAge is the result when no creation date is available
func UnknownDomainAge(name string) DomainAge {
	return DomainAge{Domain: name, AgeDays: -1}
}

// Known reports whether a creation date was found
func (a DomainAge) Known() bool {
	return a.AgeDays >= 0
}

// DNSResult reports whether a domain resolves and to which addresses
type DNSResult struct {
	Domain      string   `json:"domain"`
	Resolves    bool     `json:"resolves"`
	IPAddresses []string `json:"ip_addresses"`
}
