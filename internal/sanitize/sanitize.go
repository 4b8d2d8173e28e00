// Package sanitize strips unsafe markup from user and admin supplied text
// before it is stored. Uses bluemonday: a strict policy for plain-text
// fields such as usernames and a UGC policy for article bodies.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy *bluemonday.Policy
	ugcPolicy    *bluemonday.Policy
	policyOnce   sync.Once
)

func initPolicies() {
	policyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()

		ugcPolicy = bluemonday.UGCPolicy()
		// Article bodies are authored in the admin editor, which emits
		// classes for alignment and code blocks.
		ugcPolicy.AllowAttrs("class").Globally()
		ugcPolicy.AllowAttrs("style").OnElements("span", "p", "div")
		ugcPolicy.AllowElements("table", "thead", "tbody", "tr", "td", "th", "caption")
		ugcPolicy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	})
}

// Text removes every tag from input and trims surrounding whitespace. The
// result is plain text with entities decoded, suitable for JSON storage.
func Text(input string) string {
	if input == "" {
		return ""
	}
	initPolicies()
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(input)))
}

// HTML sanitizes rich text, dropping scripts, event handlers and
// javascript: URLs while keeping formatting.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	initPolicies()
	return ugcPolicy.Sanitize(input)
}
