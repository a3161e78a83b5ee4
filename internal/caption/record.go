package caption

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// RaceResult is a race result record with every field optional.
// Zero values mean "absent".
type RaceResult struct {
	Name     string
	Date     string
	Track    string
	Distance string
	Surface  string

	// Time and Odds are race-level fallbacks for the winner's own values.
	Time string
	Odds string

	// Jockey, Trainer and Owner are fallbacks for the winner's personnel.
	Jockey  string
	Trainer string
	Owner   string

	Winner  Winner
	Payouts Payouts
	Results []Finisher
	Notes   string
}

type Winner struct {
	Name    string
	Number  string
	Odds    string
	Time    string
	Jockey  string
	Trainer string
	Owner   string
}

type Payouts struct {
	Win   Money
	Place Money
	Show  Money
}

// Money is an optional monetary amount.
type Money struct {
	Value float64
	Valid bool
}

// Amount returns a valid Money.
func Amount(v float64) Money { return Money{Value: v, Valid: true} }

// Finisher is one row of the finishing order. A row without position,
// number and name is not rendered.
type Finisher struct {
	Position string
	Number   string
	Name     string
	Odds     string
}

// Field aliases, most preferred first.
var (
	aliasName     = []string{"race_name", "name", "title"}
	aliasDate     = []string{"date", "datetime", "timestamp"}
	aliasTrack    = []string{"track", "venue"}
	aliasTime     = []string{"time", "final_time"}
	aliasNumber   = []string{"number", "no", "post"}
	aliasPosition = []string{"position", "pos", "rank"}
	aliasResults  = []string{"results", "order", "finishers"}
)

// FromMap resolves a decoded document into a RaceResult.
func FromMap(m map[string]any) *RaceResult {
	r := &RaceResult{
		Name:     pick(m, aliasName...),
		Date:     pick(m, aliasDate...),
		Track:    pick(m, aliasTrack...),
		Distance: pick(m, "distance"),
		Surface:  pick(m, "surface"),
		Time:     pick(m, aliasTime...),
		Odds:     pick(m, "odds"),
		Jockey:   pick(m, "jockey"),
		Trainer:  pick(m, "trainer"),
		Owner:    pick(m, "owner"),
		Notes:    pick(m, "notes"),
	}
	if w, ok := m["winner"].(map[string]any); ok {
		r.Winner = Winner{
			Name:    pick(w, "name"),
			Number:  pick(w, aliasNumber...),
			Odds:    pick(w, "odds"),
			Time:    pick(w, aliasTime...),
			Jockey:  pick(w, "jockey"),
			Trainer: pick(w, "trainer"),
			Owner:   pick(w, "owner"),
		}
	}
	if p, ok := m["payouts"].(map[string]any); ok {
		r.Payouts = Payouts{Win: parseMoney(p["win"]), Place: parseMoney(p["place"]), Show: parseMoney(p["show"])}
	}
	for _, k := range aliasResults {
		list, ok := m[k].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		r.Results = make([]Finisher, 0, len(list))
		for _, item := range list {
			// Non-object rows are kept as empty rows so the block header
			// still reflects a non-empty sequence.
			row, _ := item.(map[string]any)
			r.Results = append(r.Results, Finisher{
				Position: pick(row, aliasPosition...),
				Number:   pick(row, aliasNumber...),
				Name:     pick(row, "name"),
				Odds:     pick(row, "odds"),
			})
		}
		break
	}
	return r
}

// pick returns the first present alias rendered as text.
func pick(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := scalar(m[k]); ok {
			return s
		}
	}
	return ""
}

// scalar renders a present scalar. Nulls, empty strings, zero numbers,
// booleans and containers are absent.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case json.Number:
		f, err := x.Float64()
		if err == nil && f == 0 {
			return "", false
		}
		if err == nil && strings.ContainsAny(x.String(), ".eE") {
			return floatText(f), true
		}
		return x.String(), x.String() != ""
	case float64:
		if x == 0 || math.IsNaN(x) {
			return "", false
		}
		return floatText(x), true
	case int:
		return strconv.Itoa(x), x != 0
	case int64:
		return strconv.FormatInt(x, 10), x != 0
	case uint64:
		return strconv.FormatUint(x, 10), x != 0
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		if x.Equal(x.Truncate(24*time.Hour)) && x.Location() == time.UTC {
			return x.Format(time.DateOnly), true
		}
		return x.Format(time.RFC3339), true
	default:
		return "", false
	}
}

// parseMoney accepts numbers and numeric strings; anything else, and
// non-finite values, are absent.
func parseMoney(v any) Money {
	var f float64
	switch x := v.(type) {
	case json.Number:
		n, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return Money{}
		}
		f = n
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return Money{}
		}
		f = n
	default:
		return Money{}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}
	}
	return Amount(f)
}

// floatText renders a float in its shortest round-trip form, keeping ".0"
// on integral values: 3.50 -> "3.5", 1e3 -> "1000.0", 1e16 -> "1e+16".
func floatText(f float64) string {
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
