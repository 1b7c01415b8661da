package detection

import (
	"math"
	"strings"
)

const (
	// classifierSampleRunes is how much of the page text the classifier reads
	classifierSampleRunes = 1000
	// phishingVerdictThreshold is the score above which a page is called phishing
	phishingVerdictThreshold = 0.5
)

const (
	CategoryFinancial = "financial"
	CategoryUnknown   = "unknown"
)

var phishingIndicators = []string{
	"verify your account",
	"confirm your identity",
	"urgent action",
	"suspended account",
	"unusual activity",
	"click here immediately",
	"enter your password",
	"update your information",
}

// WebpageClassification is the text-only verdict for a page
type WebpageClassification struct {
	URL                string   `json:"url,omitempty"`
	Category           string   `json:"category"`
	IsFinancial        bool     `json:"is_financial"`
	IsPhishing         bool     `json:"is_phishing"`
	PhishingScore      float64  `json:"phishing_score"`
	FinancialKeywords  []string `json:"financial_keywords"`
	PhishingIndicators []string `json:"phishing_indicators"`
}

// WebpageClassifier labels a page as financial and scores phishing language
// from the opening part of its visible text. It needs no DOM and no session.
type WebpageClassifier struct {
	keywords   []string
	indicators []string
}

// NewWebpageClassifier creates a classifier with the built-in keyword lists
func NewWebpageClassifier() *WebpageClassifier {
	return &WebpageClassifier{keywords: financialKeywords, indicators: phishingIndicators}
}

// Classify scores the text of the page at url
//
// Each phishing phrase adds 0.15, capped at 0.4. Phishing phrases on a page that
// also talks about money add a further 0.3.
func (c *WebpageClassifier) Classify(url, text string) WebpageClassification {
	sample := strings.ToLower(truncateRunes(text, classifierSampleRunes))
	keywords := matchedKeywords(sample, c.keywords)
	indicators := matchedKeywords(sample, c.indicators)

	score := 0.0
	if len(indicators) > 0 {
		score += math.Min(float64(len(indicators))*0.15, 0.4)
		if len(keywords) > 0 {
			score += 0.3
		}
	}
	score = math.Min(score, 1)

	financial := len(keywords) >= financialKeywordThreshold
	category := CategoryUnknown
	if financial {
		category = CategoryFinancial
	}
	return WebpageClassification{
		URL:                url,
		Category:           category,
		IsFinancial:        financial,
		IsPhishing:         score > phishingVerdictThreshold,
		PhishingScore:      score,
		FinancialKeywords:  keywords,
		PhishingIndicators: indicators,
	}
}

// truncateRunes returns at most n runes of s
func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
