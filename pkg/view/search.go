package view

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// Highlight wraps every case-insensitive occurrence of query in text
// with mark tags, leaving the rest of the text unmodified. It reports
// whether at least one match was found. Matching is rune-by-rune so
// runes whose case mapping changes byte length never shift the slice
// offsets.
func Highlight(text, query string) (string, bool) {
	if text == "" || query == "" {
		return text, false
	}
	var b strings.Builder
	matched := false
	i := 0
	for i < len(text) {
		start, end := foldIndex(text[i:], query)
		if start < 0 {
			break
		}
		b.WriteString(text[i : i+start])
		b.WriteString(markOpen)
		b.WriteString(text[i+start : i+end])
		b.WriteString(markClose)
		matched = true
		i += end
	}
	if !matched {
		return text, false
	}
	b.WriteString(text[i:])
	return b.String(), true
}

// foldIndex returns the byte offsets in s of the first case-folded
// occurrence of query, or -1, -1.
func foldIndex(s, query string) (int, int) {
	for i := 0; i < len(s); {
		if n, ok := foldPrefix(s[i:], query); ok {
			return i, i + n
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

// foldPrefix reports whether s starts with a case-folded match of query
// and how many bytes of s that match spans.
func foldPrefix(s, query string) (int, bool) {
	n := 0
	for _, qr := range query {
		if n >= len(s) {
			return 0, false
		}
		sr, size := utf8.DecodeRuneInString(s[n:])
		if sr != qr && !foldEqual(sr, qr) {
			return 0, false
		}
		n += size
	}
	return n, true
}

func foldEqual(a, b rune) bool {
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

// SearchCursor pages forward and backward over the ids of matching
// messages with wraparound at both ends.
type SearchCursor struct {
	ids []string
	pos int
}

// NewSearchCursor starts a cursor positioned before the first match.
func NewSearchCursor(ids []string) *SearchCursor {
	return &SearchCursor{ids: ids, pos: -1}
}

// Len returns the number of matches.
func (s *SearchCursor) Len() int { return len(s.ids) }

// Next advances to the following match, wrapping to the first after the
// last. It returns the empty string when there are no matches.
func (s *SearchCursor) Next() string {
	if len(s.ids) == 0 {
		return ""
	}
	s.pos = (s.pos + 1) % len(s.ids)
	return s.ids[s.pos]
}

// Prev steps back to the preceding match, wrapping to the last before
// the first. It returns the empty string when there are no matches.
func (s *SearchCursor) Prev() string {
	if len(s.ids) == 0 {
		return ""
	}
	if s.pos <= 0 {
		s.pos = len(s.ids) - 1
	} else {
		s.pos--
	}
	return s.ids[s.pos]
}
