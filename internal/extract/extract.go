// Package extract reduces rendered pages to the bounded Startup summary
// fed to the generation backend.
package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/roasting-id/roasting-service/internal/roast"
)

const (
	defaultMaxSummaryChars = 2000
	maxParagraphChars      = 500
	maxHeadings            = 10
	maxHeadingChars        = 200
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// injectionRe matches known prompt-injection phrases case-insensitively.
// Matching and replacement run over the same string, so case folding of
// multibyte runes can never desynchronize the replacement offsets.
var injectionRe = func() *regexp.Regexp {
	phrases := []string{
		"ignore previous", "ignore all", "disregard", "forget your",
		"new instructions", "system prompt", "you are now", "pretend to be",
		"jailbreak", "abaikan instruksi", "instruksi baru",
	}
	for i, p := range phrases {
		phrases[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("(?i)(?:" + strings.Join(phrases, "|") + ")")
}()

// Extractor implements roast.Extractor. It never fails: unparseable or
// empty markup degrades to a Startup synthesized from the URL alone.
type Extractor struct {
	maxSummaryChars int
}

// New creates an Extractor. A non-positive budget falls back to the
// default of 2000 characters.
func New(maxSummaryChars int) *Extractor {
	if maxSummaryChars <= 0 {
		maxSummaryChars = defaultMaxSummaryChars
	}
	return &Extractor{maxSummaryChars: maxSummaryChars}
}

// Extract parses the page and returns the sanitized summary.
func (e *Extractor) Extract(pageURL string, html []byte) roast.Startup {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Fallback(pageURL, "unparseable markup")
	}
	doc.Find("script, style, noscript").Remove()

	name := e.title(doc)
	description := e.metaDescription(doc)
	headings := e.headings(doc)
	summary := e.paragraphSummary(doc)

	if name == "" && description == "" && len(headings) == 0 && summary == "" {
		return Fallback(pageURL, "no extractable content")
	}
	if name == "" {
		name = hostName(pageURL)
	}

	return roast.Startup{
		URL:         pageURL,
		Name:        Sanitize(name, maxHeadingChars),
		Description: Sanitize(description, maxParagraphChars),
		Headings:    headings,
		Summary:     Sanitize(summary, e.maxSummaryChars),
	}
}

func (e *Extractor) title(doc *goquery.Document) string {
	title := clean(doc.Find("title").First().Text())
	if title != "" {
		return title
	}
	og, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	return clean(og)
}

func (e *Extractor) metaDescription(doc *goquery.Document) string {
	desc, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	return clean(desc)
}

func (e *Extractor) headings(doc *goquery.Document) []string {
	var headings []string
	for _, sel := range []string{"h1", "h2", "h3"} {
		doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= 3 {
				return false
			}
			text := clean(s.Text())
			if text != "" && len(text) < maxHeadingChars {
				headings = append(headings, Sanitize(text, maxHeadingChars))
			}
			return true
		})
	}
	if len(headings) > maxHeadings {
		headings = headings[:maxHeadings]
	}
	return headings
}

func (e *Extractor) paragraphSummary(doc *goquery.Document) string {
	var b strings.Builder
	doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 5 || b.Len() > maxParagraphChars {
			return false
		}
		text := clean(s.Text())
		if len(text) > 20 {
			b.WriteString(text)
			b.WriteByte(' ')
		}
		return true
	})
	summary := strings.TrimSpace(b.String())
	if len(summary) > maxParagraphChars {
		summary = summary[:maxParagraphChars] + "..."
	}
	return summary
}

// Sanitize strips control characters, filters prompt-injection phrases
// and truncates to limit runes.
func Sanitize(input string, limit int) string {
	var b strings.Builder
	for _, r := range input {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	out := injectionRe.ReplaceAllString(b.String(), "[FILTERED]")
	runes := []rune(out)
	if len(runes) > limit {
		out = string(runes[:limit])
	}
	return strings.TrimSpace(out)
}

func clean(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func hostName(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return pageURL
	}
	return u.Hostname()
}
