package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/domain/detection"
	"github.com/scamshield/scam-detector/internal/domain/scoring"
	"github.com/scamshield/scam-detector/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStandardOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	suite := detection.NewStandardSuite(detection.NewTrustedDomainSet(detection.DefaultTrustedDomains))
	o := NewOrchestrator(suite, scoring.NewAggregator(nil), opts)
	t.Cleanup(o.Close)
	return o
}

func TestOrchestrator_ScoreSignals(t *testing.T) {
	o := newStandardOrchestrator(t, Options{})

	a := o.ScoreSignals(context.Background(), map[string]float64{
		"websiteTrust":    0.1,
		"financialIntent": 0.9,
		"otpMisuse":       0.95,
	})
	assert.Equal(t, domain.RiskHigh, a.RiskLevel)
	assert.GreaterOrEqual(t, a.RiskScore, 0.9)

	empty := o.ScoreSignals(context.Background(), map[string]float64{})
	assert.True(t, empty.Incomplete)
}

func TestOrchestrator_ScoreSignalsWithRemote(t *testing.T) {
	remote := &fakeRemote{result: domain.RemoteScore(1)}
	o := newStandardOrchestrator(t, Options{Remote: remote})

	a := o.ScoreSignals(context.Background(), map[string]float64{"urlPhishing": 0.0})
	assert.True(t, a.Blended)
	assert.InDelta(t, 0.3, a.RiskScore, 1e-9)
}

func TestOrchestrator_AnalyzeURL(t *testing.T) {
	o := newStandardOrchestrator(t, Options{})

	r, err := o.AnalyzeURL(context.Background(), "http://192.168.1.1/login")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, r.Score, 1e-9)
	assert.False(t, r.Detected)
}

func TestOrchestrator_CheckLookalike(t *testing.T) {
	o := newStandardOrchestrator(t, Options{})

	assert.True(t, o.CheckLookalike("paypa1.com").IsLookalike)
	assert.False(t, o.CheckLookalike("hdfcbank.com").IsLookalike)
}

func TestOrchestrator_EndToEndWithStandardDetectors(t *testing.T) {
	pub := &fakePublisher{}
	o := newStandardOrchestrator(t, Options{Publishers: nil, Store: &fakeStore{}})
	o.publishers = append(o.publishers, pub)

	page := domain.PageContext{
		URL:      "http://hdfc8ank.com/verify",
		Protocol: "http:",
		Title:    "HDFC Bank - Verify",
		Text:     "Your netbanking account is blocked. Enter OTP sent to your mobile to verify your bank account.",
		Fields: []domain.InputField{
			{Type: "password", Name: "password"},
			{Type: "text", Name: "otp", MaxLength: 6},
		},
	}

	a, err := o.PageReady(context.Background(), "tab-9", page)
	require.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, a.RiskLevel)
	assert.GreaterOrEqual(t, a.RiskScore, 0.9)
	assert.Contains(t, a.Contributing, domain.SignalOTPMisuse)
	assert.Len(t, pub.get(), 1)
}

type fakeAges struct {
	age domain.DomainAge
	err error
}

func (f *fakeAges) DomainAge(ctx context.Context, name string) (domain.DomainAge, error) {
	if f.err != nil {
		return domain.DomainAge{}, f.err
	}
	a := f.age
	a.Domain = name
	return a, nil
}

type fakeDNS struct {
	result domain.DNSResult
}

func (f *fakeDNS) CheckDNS(ctx context.Context, name string) (domain.DNSResult, error) {
	r := f.result
	r.Domain = name
	return r, nil
}

func TestOrchestrator_ClassifyWebpage(t *testing.T) {
	o := newStandardOrchestrator(t, Options{})

	c := o.ClassifyWebpage("http://hdfc8ank.com", "Urgent action required! Verify your account and enter your password for net banking.")
	assert.True(t, c.IsPhishing)
	assert.True(t, c.IsFinancial)
	assert.Equal(t, detection.CategoryFinancial, c.Category)
	assert.Equal(t, "http://hdfc8ank.com", c.URL)
}

func TestOrchestrator_DomainLookups(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lookupErr := errors.New("whois timeout")

	tests := []struct {
		name    string
		opts    Options
		wantErr error
		wantAge int
		wantIPs []string
	}{
		{name: "Not configured", wantErr: ErrLookupUnavailable},
		{
			name: "Configured",
			opts: Options{
				DomainAges: &fakeAges{age: domain.NewDomainAge("", now.AddDate(0, 0, -30), "NameCheap", now)},
				DNS:        &fakeDNS{result: domain.DNSResult{Resolves: true, IPAddresses: []string{"203.0.113.7"}}},
			},
			wantAge: 30,
			wantIPs: []string{"203.0.113.7"},
		},
		{
			name:    "Lookup failure surfaces",
			opts:    Options{DomainAges: &fakeAges{err: lookupErr}, DNS: &fakeDNS{}},
			wantErr: lookupErr,
			wantIPs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newStandardOrchestrator(t, tt.opts)

			age, err := o.DomainAge(context.Background(), "fresh-offers.com")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantAge, age.AgeDays)
				assert.True(t, age.IsNew)
				assert.Equal(t, "fresh-offers.com", age.Domain)
			}

			res, err := o.CheckDNS(context.Background(), "fresh-offers.com")
			if tt.opts.DNS == nil {
				assert.ErrorIs(t, err, ErrLookupUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIPs, res.IPAddresses)
		})
	}
}

func TestOrchestrator_AssessmentByID(t *testing.T) {
	t.Run("without a store", func(t *testing.T) {
		o := newStandardOrchestrator(t, Options{})
		_, err := o.AssessmentByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("stored run", func(t *testing.T) {
		store := &fakeStore{}
		o := newStandardOrchestrator(t, Options{Store: store})
		page := domain.PageContext{URL: "https://paypa1.com/signin", Protocol: "https:"}
		a, err := o.PageReady(context.Background(), "tab-1", page)
		require.NoError(t, err)

		got, err := o.AssessmentByID(context.Background(), a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, a.RiskLevel, got.RiskLevel)

		_, err = o.AssessmentByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}
