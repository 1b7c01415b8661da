package page

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/scamshield/scam-detector/internal/domain"
)

// ErrEmptyDocument is returned when there is no markup to analyse
var ErrEmptyDocument = errors.New("empty html document")

// MaxTextLength caps the visible text handed to detectors, in bytes
const MaxTextLength = 20000

// Extractor turns an HTML snapshot of a page into a domain.PageContext
type Extractor struct {
	maxText int
}

// NewExtractor creates an extractor with the default text cap
func NewExtractor() *Extractor {
	return &Extractor{maxText: MaxTextLength}
}

// Extract parses html and collects the title, visible text, form controls
// and outbound links. Domain and protocol come from rawURL.
func (e *Extractor) Extract(rawURL, html string) (domain.PageContext, error) {
	if strings.TrimSpace(html) == "" {
		return domain.PageContext{}, ErrEmptyDocument
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.PageContext{}, fmt.Errorf("failed to parse html: %w", err)
	}

	pc := Locate(rawURL)
	pc.Title = collapse(doc.Find("title").First().Text())
	pc.Fields = extractFields(doc)
	pc.Links = extractLinks(doc)

	doc.Find("script, style, noscript, template").Remove()
	text := collapse(doc.Find("body").Text())
	if text == "" {
		text = collapse(doc.Text())
	}
	pc.Text = truncateUTF8(text, e.maxText)

	return pc, nil
}

// Locate fills the URL, domain and protocol of a page context.
// A URL that cannot be parsed leaves domain and protocol empty.
func Locate(rawURL string) domain.PageContext {
	pc := domain.PageContext{URL: rawURL}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return pc
	}
	pc.Domain = strings.ToLower(u.Hostname())
	if u.Scheme != "" {
		pc.Protocol = strings.ToLower(u.Scheme) + ":"
	}
	return pc
}

func extractFields(doc *goquery.Document) []domain.InputField {
	labels := make(map[string]string)
	doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("for"); ok && id != "" {
			labels[id] = collapse(s.Text())
		}
	})

	var fields []domain.InputField
	doc.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		kind := strings.ToLower(s.AttrOr("type", ""))
		if kind == "" {
			kind = goquery.NodeName(s)
			if kind == "input" {
				kind = "text"
			}
		}
		switch kind {
		case "hidden", "submit", "button", "reset", "image":
			return
		}

		field := domain.InputField{
			Type:         kind,
			Name:         s.AttrOr("name", ""),
			ID:           s.AttrOr("id", ""),
			Placeholder:  s.AttrOr("placeholder", ""),
			Autocomplete: s.AttrOr("autocomplete", ""),
			FormAction:   s.Closest("form").AttrOr("action", ""),
		}
		if field.ID != "" {
			field.Label = labels[field.ID]
		}
		if field.Label == "" {
			field.Label = collapse(s.Closest("label").Text())
		}
		if field.Label == "" {
			field.Label = s.AttrOr("aria-label", "")
		}
		if ml, err := strconv.Atoi(s.AttrOr("maxlength", "")); err == nil && ml > 0 {
			field.MaxLength = ml
		}
		fields = append(fields, field)
	})
	return fields
}

func extractLinks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links
}

// collapse folds runs of whitespace into single spaces
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
