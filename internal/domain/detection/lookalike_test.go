package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchLookalike(t *testing.T) {
	tests := []struct {
		name          string
		candidate     string
		trusted       []string
		wantLookalike bool
		wantRule      MatchRule
		wantMatched   string
	}{
		{
			name:        "Exact match is legitimate",
			candidate:   "paypal.com",
			trusted:     []string{"paypal.com"},
			wantRule:    RuleExact,
			wantMatched: "paypal.com",
		},
		{
			name:        "Exact match ignores case",
			candidate:   "PayPal.COM",
			trusted:     []string{"paypal.com"},
			wantRule:    RuleExact,
			wantMatched: "paypal.com",
		},
		{
			name:        "Exact match wins over substitution against another trusted domain",
			candidate:   "g00gle.com",
			trusted:     []string{"google.com", "g00gle.com"},
			wantRule:    RuleExact,
			wantMatched: "g00gle.com",
		},
		{
			name:          "Typosquatting - paypa1.com",
			candidate:     "paypa1.com",
			trusted:       []string{"paypal.com"},
			wantLookalike: true,
			wantRule:      RuleTyposquat,
			wantMatched:   "paypal.com",
		},
		{
			name:          "Contains trusted domain",
			candidate:     "hdfcbank.com.secure-verify.in",
			trusted:       []string{"hdfcbank.com"},
			wantLookalike: true,
			wantRule:      RuleContains,
			wantMatched:   "hdfcbank.com",
		},
		{
			// similarity is exactly 0.8, which the edit-distance rule excludes
			name:          "Substitution - g00gle.com",
			candidate:     "g00gle.com",
			trusted:       []string{"google.com"},
			wantLookalike: true,
			wantRule:      RuleSubstitution,
			wantMatched:   "google.com",
		},
		{
			name:      "Hyphenated brand name is not over-triggered",
			candidate: "hdfc-bank-login.com",
			trusted:   []string{"hdfcbank.com"},
			wantRule:  RuleNone,
		},
		{
			name:      "Unrelated domain",
			candidate: "example.org",
			trusted:   DefaultTrustedDomains,
			wantRule:  RuleNone,
		},
		{
			name:      "Empty candidate",
			candidate: "",
			trusted:   []string{"paypal.com"},
			wantRule:  RuleNone,
		},
		{
			name:      "Empty trusted set",
			candidate: "paypa1.com",
			trusted:   nil,
			wantRule:  RuleNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchLookalike(tt.candidate, tt.trusted)
			assert.Equal(t, tt.wantLookalike, got.IsLookalike)
			assert.Equal(t, tt.wantRule, got.Rule)
			assert.Equal(t, tt.wantMatched, got.MatchedDomain)
		})
	}
}

func TestMatchLookalike_Details(t *testing.T) {
	typo := MatchLookalike("paypa1.com", []string{"paypal.com"})
	assert.Equal(t, "typosquatting", typo.Reason)
	assert.InDelta(t, 0.9, typo.Similarity, 1e-9)

	sub := MatchLookalike("g00gle.com", []string{"google.com"})
	assert.Equal(t, "character substitution (2 characters replaced)", sub.Reason)

	contains := MatchLookalike("login-paytm.com", []string{"paytm.com"})
	assert.Equal(t, "contains legitimate domain name", contains.Reason)
}

func TestMatchLookalike_Idempotent(t *testing.T) {
	for _, candidate := range []string{"paypa1.com", "g00gle.com", "hdfc-bank-login.com", "hdfcbank.com", ""} {
		first := MatchLookalike(candidate, DefaultTrustedDomains)
		second := MatchLookalike(candidate, DefaultTrustedDomains)
		assert.Equal(t, first, second, candidate)
	}
}

func TestMatchLookalike_FirstTrustedDomainWins(t *testing.T) {
	// Both trusted domains are one edit away; order decides
	got := MatchLookalike("paytn.com", []string{"paytm.com", "payto.com"})
	assert.True(t, got.IsLookalike)
	assert.Equal(t, "paytm.com", got.MatchedDomain)
}

func TestTrustedDomainSet(t *testing.T) {
	set := NewTrustedDomainSet([]string{"https://www.HDFCBank.com/", "hdfcbank.com", "paytm.com", ""})

	assert.Equal(t, []string{"hdfcbank.com", "paytm.com"}, set.Domains())
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.IsTrustedHost("netbanking.hdfcbank.com"))
	assert.True(t, set.IsTrustedHost("PAYTM.com"))
	assert.False(t, set.IsTrustedHost("evilhdfcbank.com"))
	assert.False(t, set.IsTrustedHost(""))

	domains := set.Domains()
	domains[0] = "mutated.com"
	assert.Equal(t, "hdfcbank.com", set.Domains()[0], "Domains must return a copy")
}
