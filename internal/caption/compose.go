package caption

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxRunes is Telegram's caption limit.
const MaxRunes = 1024

const ellipsis = " ..."

// ErrEmpty means neither the free text nor the record produced anything.
var ErrEmpty = errors.New("caption is empty: provide text or a record")

// Composer builds captions. The zero value uses MaxRunes and no escaping.
type Composer struct {
	// Limit overrides MaxRunes when > len(ellipsis).
	Limit int
	// EscapeHTML escapes the text after bounding, for callers that send it
	// with the HTML parse mode (Telegram measures the parsed length).
	EscapeHTML bool
}

// Compose joins the trimmed free text and the caption built from rec
// (either may be absent) with a blank line and bounds the result.
func Compose(text string, rec *RaceResult) (string, error) {
	return Composer{}.Compose(text, rec)
}

func (c Composer) Compose(text string, rec *RaceResult) (string, error) {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(text); t != "" {
		parts = append(parts, t)
	}
	if rec != nil {
		if r := c.FromRecord(rec); r != "" {
			parts = append(parts, r)
		}
	}
	out := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if out == "" {
		return "", ErrEmpty
	}
	out = Truncate(out, c.limit())
	if c.EscapeHTML {
		out = EscapeHTML(out)
	}
	return out, nil
}

// FromText is the pass-through mode: trim and bound.
func FromText(text string) string {
	return Truncate(strings.TrimSpace(text), MaxRunes)
}

// FromRecord builds the caption for a race result.
func FromRecord(rec *RaceResult) string { return Composer{}.FromRecord(rec) }

func (c Composer) FromRecord(rec *RaceResult) string {
	if rec == nil {
		return ""
	}
	return Truncate(strings.TrimSpace(strings.Join(Lines(rec), "\n")), c.limit())
}

func (c Composer) limit() int {
	if c.Limit > len(ellipsis) {
		return c.Limit
	}
	return MaxRunes
}

// Lines returns the caption lines for rec in display order:
// title, metadata, winner, personnel, payouts, results block, notes.
func Lines(rec *RaceResult) []string {
	var lines []string
	add := func(s string) {
		if s != "" {
			lines = append(lines, s)
		}
	}

	add(rec.Name)
	add(metaLine(rec))
	add(winnerLine(rec))
	add(personnelLine(rec))
	add(payoutLine(rec.Payouts))
	if len(rec.Results) > 0 {
		lines = append(lines, "Results:")
		for _, f := range rec.Results {
			add(finisherLine(f))
		}
	}
	if rec.Notes != "" {
		lines = append(lines, "Notes: "+rec.Notes)
	}
	return lines
}

func metaLine(rec *RaceResult) string {
	var parts []string
	if rec.Date != "" {
		parts = append(parts, "Date: "+rec.Date)
	}
	if rec.Track != "" {
		parts = append(parts, "Track: "+rec.Track)
	}
	if ds := joinPresent(" ", rec.Distance, rec.Surface); ds != "" {
		parts = append(parts, "Distance/Surface: "+ds)
	}
	return strings.Join(parts, " | ")
}

func winnerLine(rec *RaceResult) string {
	w := rec.Winner
	var parts []string
	switch {
	case w.Number != "" && w.Name != "":
		parts = append(parts, "Winner: #"+w.Number+" "+w.Name)
	case w.Name != "":
		parts = append(parts, "Winner: "+w.Name)
	case w.Number != "":
		parts = append(parts, "Winner: #"+w.Number)
	}
	if t := firstOf(w.Time, rec.Time); t != "" {
		parts = append(parts, "Time: "+t)
	}
	if o := firstOf(w.Odds, rec.Odds); o != "" {
		parts = append(parts, "Odds: "+o)
	}
	return strings.Join(parts, "  ")
}

func personnelLine(rec *RaceResult) string {
	w := rec.Winner
	var parts []string
	if v := firstOf(w.Jockey, rec.Jockey); v != "" {
		parts = append(parts, "Jockey: "+v)
	}
	if v := firstOf(w.Trainer, rec.Trainer); v != "" {
		parts = append(parts, "Trainer: "+v)
	}
	if v := firstOf(w.Owner, rec.Owner); v != "" {
		parts = append(parts, "Owner: "+v)
	}
	return strings.Join(parts, "  ")
}

func payoutLine(p Payouts) string {
	var parts []string
	for _, e := range []struct {
		label string
		m     Money
	}{{"W", p.Win}, {"P", p.Place}, {"S", p.Show}} {
		if e.m.Valid {
			parts = append(parts, e.label+" "+FormatMoney(e.m.Value))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "Payouts: " + strings.Join(parts, ", ")
}

func finisherLine(f Finisher) string {
	if f.Position == "" && f.Number == "" && f.Name == "" {
		return ""
	}
	var parts []string
	if f.Position != "" {
		parts = append(parts, f.Position+")")
	}
	if f.Number != "" {
		parts = append(parts, "#"+f.Number)
	}
	if f.Name != "" {
		parts = append(parts, f.Name)
	}
	if f.Odds != "" {
		parts = append(parts, "("+f.Odds+")")
	}
	return strings.Join(parts, " ")
}

// Truncate bounds s to limit runes. An over-long s is cut to leave room
// for " ...", trailing whitespace is trimmed, and the marker appended.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	i, n := 0, 0
	for i < len(s) && n < keep {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n++
	}
	return strings.TrimRightFunc(s[:i], unicode.IsSpace) + ellipsis
}

// EscapeHTML escapes the three characters Telegram's HTML mode reserves.
// Quotes are left alone.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinPresent(sep string, vals ...string) string {
	out := vals[:0:0]
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, sep)
}
