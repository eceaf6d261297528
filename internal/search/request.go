// Package search implements the bulk history search engine: job kinds,
// the per-kind registry, the cooldown gate, channel resolution, the
// history cache, throttled progress reporting and the scan loop itself.
package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/BENZOOgataga/DeepSearch/internal/match"
)

// Kind identifies a command kind. At most one job per kind runs at a time;
// different kinds may run concurrently.
type Kind string

const (
	KindSearch  Kind = "search"
	KindRegex   Kind = "regex"
	KindExport  Kind = "export"
	KindBadscan Kind = "badscan"
	KindScan    Kind = "scan"
)

// Kinds lists every job kind the registry tracks.
var Kinds = []Kind{KindSearch, KindRegex, KindExport, KindBadscan, KindScan}

// ParseKind validates a user-supplied kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown job kind %q", s)
}

// NoLimit scans each channel's full history.
const NoLimit = -1

// Result caps: inline summaries keep a handful of matches for display,
// export jobs keep enough to be worth writing to a file.
const (
	InlineResultCap = 15
	ExportResultCap = 1000
)

// Request describes one search job. Exactly one of Keyword, Pattern or
// Lexicon drives the predicate, depending on Kind.
type Request struct {
	Kind      Kind
	Requester string

	// TargetUserID, when set, restricts matching to that author.
	TargetUserID   string
	TargetUserName string

	Keyword    string
	Pattern    *regexp.Regexp
	Lexicon    *match.Lexicon
	Strictness match.Strictness
	// Matcher, when set, matches against the configured keyword watch
	// list (scheduled scans).
	Matcher *match.KeywordMatcher

	// Limit is the per-channel message budget, NoLimit for unbounded.
	Limit int
	// Deep marks an explicitly requested deep search (--all).
	Deep bool
	// CustomLimit is true when the caller supplied --q explicitly.
	CustomLimit bool

	// Include and Exclude are channel specifiers. Include wins when both
	// are given.
	Include []string
	Exclude []string

	// ForceRefresh bypasses the history cache (deep and scheduled scans).
	ForceRefresh bool

	Workspace string
	ResultCap int
}

// Expensive reports whether this request is subject to the cooldown gate:
// an explicit deep flag or an explicit custom limit.
func (r *Request) Expensive() bool {
	return r.Deep || r.CustomLimit
}

// Query returns the human-readable match spec for summaries and stats.
func (r *Request) Query() string {
	switch {
	case r.Pattern != nil:
		return r.Pattern.String()
	case r.Lexicon != nil:
		return fmt.Sprintf("lexicon:%s/%s", r.Lexicon.Lang(), r.Strictness)
	case r.Matcher != nil:
		return "keywords"
	default:
		return r.Keyword
	}
}

// ParseLimit parses a per-channel message limit with optional k/m suffix
// (5k = 5000, 2m = 2000000). Fractional prefixes are allowed ("1.5k").
func ParseLimit(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty limit")
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult = 1_000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult = 1_000_000
		s = strings.TrimSuffix(s, "m")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: must be a number like 100, 5k or 1m", s)
	}
	n := int(v * mult)
	if n <= 0 {
		return 0, fmt.Errorf("limit must be positive, got %d", n)
	}
	return n, nil
}
