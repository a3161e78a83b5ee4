package caption

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, doc string) *RaceResult {
	t.Helper()
	r, err := Parse([]byte(doc), false)
	if err != nil {
		t.Fatalf("Parse(%s): %v", doc, err)
	}
	return r
}

func TestWinnerLine(t *testing.T) {
	t.Parallel()
	r := mustParse(t, `{"race_name":"Race 7","winner":{"name":"Thunderbolt","number":5,"odds":"3.5-1","time":"1:09.85"}}`)
	want := []string{"Race 7", "Winner: #5 Thunderbolt  Time: 1:09.85  Odds: 3.5-1"}
	if diff := cmp.Diff(want, Lines(r)); diff != "" {
		t.Fatalf("Lines mismatch (-want +got):\n%s", diff)
	}
	if got := FromRecord(r); got != strings.Join(want, "\n") {
		t.Fatalf("FromRecord = %q", got)
	}
}

func TestPayoutLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		doc  string
		want string
	}{
		{`{"payouts":{"win":12.4,"place":5,"show":null}}`, "Payouts: W $12.40, P $5.00"},
		{`{"payouts":{"show":"1234.5"}}`, "Payouts: S $1,234.50"},
		{`{"payouts":{"win":"n/a","place":true,"show":[1]}}`, ""},
		{`{"payouts":{"win":0}}`, "Payouts: W $0.00"},
		{`{"payouts":"lots"}`, ""},
	}
	for _, tt := range tests {
		got := payoutLine(mustParse(t, tt.doc).Payouts)
		if got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.doc, got, tt.want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	t.Parallel()
	tests := map[float64]string{
		0:         "$0.00",
		5:         "$5.00",
		12.4:      "$12.40",
		999.999:   "$1,000.00",
		12345.67:  "$12,345.67",
		1234567.8: "$1,234,567.80",
		-1234.5:   "$-1,234.50",
		100000:    "$100,000.00",
	}
	for in, want := range tests {
		if got := FormatMoney(in); got != want {
			t.Fatalf("FormatMoney(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFullRecord(t *testing.T) {
	t.Parallel()
	doc := `{
		"title": "Sprint Stakes",
		"datetime": "2025-05-03",
		"venue": "Churchill Downs",
		"distance": "6f",
		"surface": "Dirt",
		"final_time": "1:09.85",
		"odds": "7-2",
		"jockey": "Top Jockey",
		"winner": {"name": "Thunderbolt", "post": 5, "trainer": "T. Smith"},
		"payouts": {"win": 9, "place": 4.2, "show": 3.1},
		"order": [
			{"pos": 1, "no": 5, "name": "Thunderbolt", "odds": "7-2"},
			{"rank": 2, "name": "Lightning"},
			{"odds": "50-1"},
			"garbage",
			{"number": 8}
		],
		"notes": "Track fast"
	}`
	want := []string{
		"Sprint Stakes",
		"Date: 2025-05-03 | Track: Churchill Downs | Distance/Surface: 6f Dirt",
		"Winner: #5 Thunderbolt  Time: 1:09.85  Odds: 7-2",
		"Jockey: Top Jockey  Trainer: T. Smith",
		"Payouts: W $9.00, P $4.20, S $3.10",
		"Results:",
		"1) #5 Thunderbolt (7-2)",
		"2) Lightning",
		"#8",
		"Notes: Track fast",
	}
	if diff := cmp.Diff(want, Lines(mustParse(t, doc))); diff != "" {
		t.Fatalf("Lines mismatch (-want +got):\n%s", diff)
	}
}

func TestAliasPrecedence(t *testing.T) {
	t.Parallel()
	r := mustParse(t, `{"race_name":"","name":"Second","title":"Third","track":"T","venue":"V","date":null,"timestamp":"ts"}`)
	if r.Name != "Second" {
		t.Fatalf("Name = %q, want first present alias", r.Name)
	}
	if r.Track != "T" || r.Date != "ts" {
		t.Fatalf("Track = %q, Date = %q", r.Track, r.Date)
	}
}

func TestWinnerDegrades(t *testing.T) {
	t.Parallel()
	tests := []struct {
		doc  string
		want string
	}{
		{`{"winner":{"name":"Solo"}}`, "Winner: Solo"},
		{`{"winner":{"number":"7"}}`, "Winner: #7"},
		{`{"winner":{"number":0,"no":3}}`, "Winner: #3"},
		{`{"time":"1:10"}`, "Time: 1:10"},
		{`{"winner":{"time":"1:09"},"time":"1:10","odds":"2-1"}`, "Time: 1:09  Odds: 2-1"},
		{`{"winner":"Thunderbolt"}`, ""},
		{`{"winner":{"name":{"first":"x"}}}`, ""},
	}
	for _, tt := range tests {
		if got := winnerLine(mustParse(t, tt.doc)); got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.doc, got, tt.want)
		}
	}
}

func TestFloatFieldsRenderShortest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		doc  string
		yaml bool
		want string
	}{
		{`{"winner":{"name":"Ace","odds":3.50}}`, false, "Winner: Ace  Odds: 3.5"},
		{`{"winner":{"name":"Ace","odds":1e3}}`, false, "Winner: Ace  Odds: 1000.0"},
		{`{"winner":{"name":"Ace","odds":12}}`, false, "Winner: Ace  Odds: 12"},
		{"winner:\n  name: Ace\n  odds: 4.0", true, "Winner: Ace  Odds: 4.0"},
	}
	for _, tt := range tests {
		r, err := Parse([]byte(tt.doc), tt.yaml)
		if err != nil {
			t.Fatalf("Parse(%s): %v", tt.doc, err)
		}
		if got := winnerLine(r); got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.doc, got, tt.want)
		}
	}
}

func TestMetaLine(t *testing.T) {
	t.Parallel()
	if got := metaLine(&RaceResult{Surface: "Turf"}); got != "Distance/Surface: Turf" {
		t.Fatalf("got %q", got)
	}
	if got := metaLine(&RaceResult{}); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestEmptyResultsOmitted(t *testing.T) {
	t.Parallel()
	r := mustParse(t, `{"race_name":"R","results":[],"finishers":"x"}`)
	if diff := cmp.Diff([]string{"R"}, Lines(r)); diff != "" {
		t.Fatalf("Lines mismatch (-want +got):\n%s", diff)
	}
}

func TestComposeCombines(t *testing.T) {
	t.Parallel()
	got, err := Compose("  Tonight's winner!  ", &RaceResult{Name: "Race 7"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "Tonight's winner!\n\nRace 7"; got != want {
		t.Fatalf("Compose = %q, want %q", got, want)
	}

	got, err = Compose("", &RaceResult{Notes: "n"})
	if err != nil || got != "Notes: n" {
		t.Fatalf("record only: %q, %v", got, err)
	}
	got, err = Compose("text only", nil)
	if err != nil || got != "text only" {
		t.Fatalf("text only: %q, %v", got, err)
	}
}

func TestComposeEmpty(t *testing.T) {
	t.Parallel()
	for _, rec := range []*RaceResult{nil, {}, mustParse(t, `{"winner":{"name":false}}`)} {
		if _, err := Compose("  \n ", rec); !errors.Is(err, ErrEmpty) {
			t.Fatalf("err = %v, want ErrEmpty", err)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("ab", MaxRunes)
	got := FromText(long)
	if n := utf8.RuneCountInString(got); n != MaxRunes {
		t.Fatalf("len = %d, want %d", n, MaxRunes)
	}
	if !strings.HasSuffix(got, " ...") || !strings.HasPrefix(long, strings.TrimSuffix(got, " ...")) {
		t.Fatalf("bad truncation tail %q", got[len(got)-10:])
	}

	exact := strings.Repeat("é", MaxRunes)
	if FromText(exact) != exact {
		t.Fatal("text at the limit must not be truncated")
	}

	// Whitespace before the cut point is trimmed before the marker.
	spaced := strings.Repeat("x", MaxRunes-6) + "      tail"
	got = Truncate(spaced, MaxRunes)
	if want := strings.Repeat("x", MaxRunes-6) + " ..."; got != want {
		t.Fatalf("got tail %q", got[len(got)-8:])
	}
}

func TestComposeBoundsCombined(t *testing.T) {
	t.Parallel()
	rec := &RaceResult{Notes: strings.Repeat("n", 900)}
	got, err := Compose(strings.Repeat("t", 900), rec)
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(got); n != MaxRunes || !strings.HasSuffix(got, " ...") {
		t.Fatalf("len = %d, suffix %q", n, got[len(got)-4:])
	}
	if !strings.HasPrefix(got, strings.Repeat("t", 900)+"\n\nNotes: ") {
		t.Fatal("free text must come first")
	}
}

func TestComposeIdempotent(t *testing.T) {
	t.Parallel()
	r := mustParse(t, `{"race_name":"R","winner":{"name":"W","number":1},"payouts":{"win":2},"results":[{"position":1,"name":"W"}]}`)
	a, _ := Compose("x", r)
	_, _ = Compose("other", &RaceResult{Name: "noise"})
	b, _ := Compose("x", r)
	if a != b {
		t.Fatalf("not deterministic:\n%q\n%q", a, b)
	}
}

func TestComposerEscapeHTML(t *testing.T) {
	t.Parallel()
	got, err := Composer{EscapeHTML: true}.Compose(`<b>"Fish" & chips</b>`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := `&lt;b&gt;"Fish" &amp; chips&lt;/b&gt;`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestComposerLimit(t *testing.T) {
	t.Parallel()
	got, _ := Composer{Limit: 10}.Compose("abcdefghijklmnop", nil)
	if got != "abcdef ..." {
		t.Fatalf("got %q", got)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	doc := strings.Join([]string{
		"race_name: Race 3",
		"winner:",
		"  name: Comet",
		"  number: 2",
		"payouts:",
		"  win: 4.8",
		"results:",
		"  - position: 1",
		"    number: 2",
		"    name: Comet",
	}, "\n")
	r, err := Parse([]byte(doc), true)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Race 3", "Winner: #2 Comet", "Payouts: W $4.80", "Results:", "1) #2 Comet"}
	if diff := cmp.Diff(want, Lines(r)); diff != "" {
		t.Fatalf("Lines mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsNonObject(t *testing.T) {
	t.Parallel()
	if _, err := Parse([]byte(`[1,2]`), false); !errors.Is(err, ErrNotObject) {
		t.Fatalf("err = %v, want ErrNotObject", err)
	}
	if _, err := Parse([]byte(`{"a":`), false); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadByExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "r.json")
	yamlPath := filepath.Join(dir, "r.yml")
	if err := os.WriteFile(jsonPath, []byte(`{"notes":"json"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yamlPath, []byte("notes: yaml\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	for path, want := range map[string]string{jsonPath: "json", yamlPath: "yaml"} {
		r, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", path, err)
		}
		if r.Notes != want {
			t.Fatalf("Notes = %q, want %q", r.Notes, want)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestComposerEscapesAfterBounding(t *testing.T) {
	t.Parallel()
	got, _ := Composer{Limit: 10, EscapeHTML: true}.Compose("a&b&c&d&e&f&g", nil)
	if want := "a&amp;b&amp;c&amp; ..."; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
