// Package headline derives a short headline and an optional link from an
// inbound channel message.
package headline

import (
	"strings"

	"tgrelay/internal/transport"
)

// MaxRunes bounds Headline.Text. Longer first lines are cut without an ellipsis.
const MaxRunes = 200

// Headline is what gets forwarded to the sink. URL is empty when absent.
type Headline struct {
	Text string
	URL  string
}

// Extract returns the headline for ev. The boolean is false when the
// message has no text; callers drop such events silently.
func Extract(ev transport.RawEvent) (Headline, bool) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return Headline{}, false
	}
	return Headline{Text: FirstLine(text, MaxRunes), URL: FindURL(ev.Text, ev.Entities)}, true
}

// FirstLine returns the first line of s cut to at most limit runes.
func FirstLine(s string, limit int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "\r")
	return cutRunes(s, limit)
}

// FindURL picks the link for a message: the first entity carrying an
// explicit URL wins over anything found by scanning the text.
func FindURL(text string, entities []transport.Entity) string {
	for _, e := range entities {
		if e.URL != "" {
			return e.URL
		}
	}
	for _, tok := range strings.Fields(text) {
		if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
			return tok
		}
	}
	return ""
}

func cutRunes(s string, limit int) string {
	if limit < 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
