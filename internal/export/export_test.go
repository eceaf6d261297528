package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/search"
)

func sampleSummary() *search.Summary {
	return &search.Summary{
		Kind:             search.KindExport,
		Query:            "foo bar",
		TargetUser:       "alice",
		ChannelsTotal:    3,
		ChannelsSearched: 3,
		MessagesScanned:  150,
		MatchesFound:     2,
		Elapsed:          4200 * time.Millisecond,
		Matches: []search.MatchRecord{
			{
				MessageID:   "m1",
				ChannelName: "general",
				SenderName:  "alice",
				Timestamp:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
				Content:     "some foo bar content",
				Permalink:   "https://chat.example/m1",
			},
			{
				MessageID:   "m2",
				ChannelName: "random",
				SenderName:  "alice",
				Timestamp:   time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
				Content:     "foo, bar",
				Terms:       []string{"foo"},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"", FormatText, true},
		{"txt", FormatText, true},
		{"TEXT", FormatText, true},
		{"csv", FormatCSV, true},
		{"JSON", FormatJSON, true},
		{"xml", "", false},
	}
	for _, c := range cases {
		got, err := ParseFormat(c.in)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Errorf("ParseFormat(%q) succeeded, want error", c.in)
		}
	}
}

func TestWriteText(t *testing.T) {
	e := New(t.TempDir())
	path, err := e.Write(sampleSummary(), FormatText)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`matching "foo bar" from alice`,
		"Searched 150 messages across 3 channels",
		"Found 2 matching messages",
		"Channel: #general",
		"some foo bar content",
		"Matched terms: foo",
		"End of export: 2 matches",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text artifact missing %q", want)
		}
	}
}

func TestWriteTextEmpty(t *testing.T) {
	e := New(t.TempDir())
	sum := sampleSummary()
	sum.Matches = nil
	sum.MatchesFound = 0

	path, err := e.Write(sum, FormatText)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "No matching messages found.") {
		t.Error("empty export should say so")
	}
}

func TestWriteCSV(t *testing.T) {
	e := New(t.TempDir())
	path, err := e.Write(sampleSummary(), FormatCSV)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// header + 2 matches + trailing summary row
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "message_id" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "general" || rows[1][4] != "some foo bar content" {
		t.Errorf("first row = %v", rows[1])
	}
	if rows[3][0] != "TOTAL" {
		t.Errorf("summary row = %v", rows[3])
	}
}

func TestWriteJSON(t *testing.T) {
	e := New(t.TempDir())
	path, err := e.Write(sampleSummary(), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var art jsonArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		t.Fatal(err)
	}
	if art.Query != "foo bar" || art.MessagesScanned != 150 || len(art.Matches) != 2 {
		t.Errorf("artifact = %+v", art)
	}
	if art.Matches[1].Terms[0] != "foo" {
		t.Errorf("terms lost: %+v", art.Matches[1])
	}
}

func TestFilenamesUniqueAndSanitized(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)
	sum := sampleSummary()
	sum.TargetUser = "al/ice:../.."
	sum.Query = "rm -rf / && echo"

	p1, err := e.Write(sum, FormatText)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := e.Write(sum, FormatText)
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Error("two exports produced the same path")
	}
	for _, p := range []string{p1, p2} {
		base := filepath.Base(p)
		if strings.ContainsAny(base, "/:& ") {
			t.Errorf("unsanitized filename %q", base)
		}
		if filepath.Dir(p) != dir {
			t.Errorf("artifact escaped export dir: %q", p)
		}
	}
}
