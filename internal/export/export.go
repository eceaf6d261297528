// Package export writes completed search results to durable artifact
// files (plain text, CSV or JSON) under the session export directory.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BENZOOgataga/DeepSearch/internal/search"
)

// Format selects the artifact encoding.
type Format string

const (
	FormatText Format = "txt"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format, defaulting to text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q: use txt, csv or json", s)
	}
}

// Exporter writes artifacts into a fixed directory.
type Exporter struct {
	dir string
	now func() time.Time
}

func New(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// Write serializes a completed job's summary and stored matches into one
// new artifact file and returns its path.
func (e *Exporter) Write(sum *search.Summary, format Format) (string, error) {
	if err := os.MkdirAll(e.dir, 0o700); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(e.dir, e.filename(sum, format))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		err = writeCSV(f, sum)
	case FormatJSON:
		err = writeJSON(f, sum, e.now())
	default:
		err = writeText(f, sum, e.now())
	}
	if err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// filename builds a unique sanitized name: user_query_YYYYMMDD_HHMMSS_xxxxxxxx.ext.
func (e *Exporter) filename(sum *search.Summary, format Format) string {
	parts := []string{}
	if sum.TargetUser != "" {
		parts = append(parts, sanitize(sum.TargetUser))
	}
	if q := sanitize(sum.Query); q != "" {
		parts = append(parts, q)
	}
	if len(parts) == 0 {
		parts = append(parts, string(sum.Kind))
	}
	parts = append(parts,
		e.now().Format("20060102_150405"),
		uuid.NewString()[:8],
	)
	return strings.Join(parts, "_") + "." + string(format)
}

// sanitize keeps a filename-safe prefix of s, capped at 20 characters.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= 20 {
			break
		}
	}
	return strings.Trim(b.String(), "_")
}

func writeText(f *os.File, sum *search.Summary, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Export of messages matching %q", sum.Query)
	if sum.TargetUser != "" {
		fmt.Fprintf(&b, " from %s", sum.TargetUser)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Searched %d messages across %d channels in %.1fs\n",
		sum.MessagesScanned, sum.ChannelsSearched, sum.Elapsed.Seconds())
	fmt.Fprintf(&b, "Found %d matching messages (%d stored)\n", sum.MatchesFound, len(sum.Matches))
	fmt.Fprintf(&b, "Export date: %s\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString(strings.Repeat("=", 80) + "\n\n")

	if len(sum.Matches) == 0 {
		b.WriteString("No matching messages found.\n")
	}
	for i, m := range sum.Matches {
		fmt.Fprintf(&b, "Message %d/%d\n", i+1, len(sum.Matches))
		fmt.Fprintf(&b, "Channel: #%s\n", m.ChannelName)
		fmt.Fprintf(&b, "From: %s\n", m.SenderName)
		fmt.Fprintf(&b, "Date: %s\n", time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04:05"))
		if m.Permalink != "" {
			fmt.Fprintf(&b, "Link: %s\n", m.Permalink)
		}
		fmt.Fprintf(&b, "Content: %s\n", m.Content)
		if len(m.Terms) > 0 {
			fmt.Fprintf(&b, "Matched terms: %s\n", strings.Join(m.Terms, ", "))
		}
		if len(m.Attachments) > 0 {
			b.WriteString("Attachments:\n")
			for _, a := range m.Attachments {
				fmt.Fprintf(&b, "  - %s: %s\n", a.Filename, a.URL)
			}
		}
		b.WriteString("\n" + strings.Repeat("-", 40) + "\n\n")
	}

	fmt.Fprintf(&b, "End of export: %d matches, %d messages scanned.\n",
		sum.MatchesFound, sum.MessagesScanned)
	_, err := f.WriteString(b.String())
	return err
}

func writeCSV(f *os.File, sum *search.Summary) error {
	w := csv.NewWriter(f)
	header := []string{"message_id", "channel", "sender", "timestamp", "content", "permalink", "terms"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, m := range sum.Matches {
		rec := []string{
			m.MessageID,
			m.ChannelName,
			m.SenderName,
			time.UnixMilli(m.Timestamp).Format(time.RFC3339),
			m.Content,
			m.Permalink,
			strings.Join(m.Terms, " "),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	// Trailing summary row so the artifact is self-describing.
	summary := []string{
		"TOTAL", sum.Query, "",
		strconv.Itoa(sum.MessagesScanned) + " scanned",
		strconv.Itoa(sum.MatchesFound) + " matched", "", "",
	}
	if err := w.Write(summary); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// jsonArtifact is the on-disk shape of a JSON export.
type jsonArtifact struct {
	Query            string               `json:"query"`
	TargetUser       string               `json:"target_user,omitempty"`
	ExportedAt       time.Time            `json:"exported_at"`
	ChannelsSearched int                  `json:"channels_searched"`
	MessagesScanned  int                  `json:"messages_scanned"`
	MatchesFound     int                  `json:"matches_found"`
	ElapsedSeconds   float64              `json:"elapsed_seconds"`
	Cancelled        bool                 `json:"cancelled"`
	Matches          []search.MatchRecord `json:"matches"`
}

func writeJSON(f *os.File, sum *search.Summary, now time.Time) error {
	art := jsonArtifact{
		Query:            sum.Query,
		TargetUser:       sum.TargetUser,
		ExportedAt:       now,
		ChannelsSearched: sum.ChannelsSearched,
		MessagesScanned:  sum.MessagesScanned,
		MatchesFound:     sum.MatchesFound,
		ElapsedSeconds:   sum.Elapsed.Seconds(),
		Cancelled:        sum.Cancelled,
		Matches:          sum.Matches,
	}
	if art.Matches == nil {
		art.Matches = []search.MatchRecord{}
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(art)
}
