// Package detector decides when a probe fetch must be re-rendered with
// the headless browser.
package detector

import (
	"bytes"
	"strings"

	"github.com/roasting-id/roasting-service/internal/roast"
)

// Heuristic applies rule-based escalation to probe results.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a detector. A zero threshold falls back to 2048.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next_data__"),
	[]byte("__nuxt"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("ng-app"),
	[]byte("window.__apollo_state__"),
}

// challengeMarkers identify bot-protection interstitials whose markup
// carries no site content.
var challengeMarkers = []string{
	"cf-browser-verification",
	"cf-challenge",
	"cf-turnstile",
	"checking your browser",
	"just a moment",
	"enable javascript and cookies to continue",
	"challenge-platform",
	"verify you are human",
}

// ShouldEscalate reports whether the probe result needs a headless
// render to reach the real content.
func (h *Heuristic) ShouldEscalate(page roast.RenderedPage) bool {
	body := page.HTML
	if len(body) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return true
		}
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(lower) {
		return true
	}
	return false
}

// scriptDensityHigh reports whether script tags cover a quarter or more
// of the document.
func scriptDensityHigh(lower []byte) bool {
	doc := string(lower)
	total := len(doc)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0

	for {
		rel := strings.Index(doc[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagClose := strings.IndexByte(doc[start:], '>')
		if tagClose == -1 {
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relEnd := strings.Index(doc[contentStart:], closeTag)
		var next int
		if relEnd == -1 {
			next = total
		} else {
			next = contentStart + relEnd + len(closeTag)
		}

		coverage += next - start
		pos = next
	}

	if coverage == 0 {
		return false
	}
	return coverage*100/total >= 25
}
