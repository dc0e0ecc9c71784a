// Package sanitize validates and neutralizes raw chat input. It is pure:
// the policy and patterns are built once at init and every function is safe
// to call from many connections concurrently.
package sanitize

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// MinLen and MaxLen bound the body length, counted in characters, after
	// trimming and cleaning.
	MinLen = 1
	MaxLen = 1000
)

var (
	ErrEmpty   = errors.New("message body is empty")
	ErrTooLong = errors.New("message body exceeds maximum length")
)

// strict strips all markup; script and style element contents are removed
// entirely, not escaped.
var strict = bluemonday.StrictPolicy()

var (
	// unsafe URI schemes and inline event handlers are removed before
	// escaping so they cannot survive as text either
	reUnsafeScheme = regexp.MustCompile(`(?i)(javascript|vbscript|livescript)\s*:`)
	reDataHTML     = regexp.MustCompile(`(?i)data\s*:\s*text/html[^"'\s>]*`)
	reEventAttr    = regexp.MustCompile(`(?i)\bon[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	reSpaces       = regexp.MustCompile(`[ \t]+`)
	reBlankLines   = regexp.MustCompile(`\n{3,}`)
	reURL          = regexp.MustCompile(`(?i)\bhttps?://[^\s]+`)
)

// Clean sanitizes raw input and returns the body safe to persist and fan
// out. It rejects empty and over-length input; markup is stripped, unsafe
// URI schemes and event-handler patterns are removed outright, and the
// remainder is HTML-escaped with whitespace runs collapsed.
func Clean(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmpty
	}

	s = reEventAttr.ReplaceAllString(s, "")
	s = reUnsafeScheme.ReplaceAllString(s, "")
	s = reDataHTML.ReplaceAllString(s, "")

	// strips tags, drops script/style contents, escapes entities
	s = strict.Sanitize(s)

	// bluemonday escapes entities already; normalize to plain text first so
	// whitespace collapsing and the length bound see the actual characters,
	// not entity spellings, then escape exactly once on the way out
	s = html.UnescapeString(s)

	s = reSpaces.ReplaceAllString(s, " ")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if s == "" {
		return "", ErrEmpty
	}
	if utf8.RuneCountInString(s) > MaxLen {
		return "", ErrTooLong
	}
	return html.EscapeString(s), nil
}

const (
	maxRepeatRun = 12
	maxURLs      = 4
)

// Spammy applies cheap heuristics callers may use to reject a message
// before persistence: excessive single-character repetition or excessive
// URL density.
func Spammy(s string) bool {
	run := 0
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
			if run >= maxRepeatRun {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	if len(reURL.FindAllStringIndex(s, maxURLs+1)) > maxURLs {
		return true
	}
	return false
}
