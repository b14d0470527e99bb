// Package sanitize provides text sanitization for user-provided fields.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML returns the text content of s with every tag removed and
// entities decoded. Whitespace runs collapse to a single space.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpaces(s)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseSpaces(b.String())
		case html.StartTagToken:
			if isRawTextTag(tokenizer) {
				skip++
			}
		case html.EndTagToken:
			if isRawTextTag(tokenizer) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// Text sanitizes a plain-text field such as a name or a note.
func Text(s string) string {
	return StripHTML(s)
}

// TextPtr is a helper for optional string pointers. Blank results become nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	if result == "" {
		return nil
	}
	return &result
}

func isRawTextTag(t *html.Tokenizer) bool {
	name, _ := t.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
