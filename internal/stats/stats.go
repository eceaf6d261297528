// Package stats maintains the durable search statistics aggregate. The
// aggregate is loaded once at startup, mutated after every job, and
// persisted by overwriting a flat JSON file, so counters survive restarts.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SearchRecord summarizes one search for last/largest bookkeeping.
type SearchRecord struct {
	User      string  `json:"user"`
	Workspace string  `json:"workspace"`
	Query     string  `json:"query"`
	Messages  int     `json:"messages"`
	Matches   int     `json:"matches"`
	Seconds   float64 `json:"seconds"`
	At        string  `json:"at"`
}

// Aggregate is the durable stats document. Counters only ever grow;
// LastSearch and LargestSearch are replaced wholesale.
type Aggregate struct {
	TotalSearches         int            `json:"total_searches"`
	TotalMessagesSearched int            `json:"total_messages_searched"`
	TotalMatchesFound     int            `json:"total_matches_found"`
	CancelledSearches     int            `json:"cancelled_searches"`
	DeepSearches          int            `json:"deep_searches"`
	SearchTimeTotal       float64        `json:"search_time_total"`
	SearchesByWorkspace   map[string]int `json:"searches_by_guild"`
	SearchesByUser        map[string]int `json:"searches_by_user"`
	LastSearch            *SearchRecord  `json:"last_search"`
	LargestSearch         SearchRecord   `json:"largest_search"`
}

func zeroAggregate() Aggregate {
	return Aggregate{
		SearchesByWorkspace: make(map[string]int),
		SearchesByUser:      make(map[string]int),
	}
}

// Outcome is what a finished (or cancelled) job reports.
type Outcome struct {
	Requester string
	Workspace string
	Query     string
	Messages  int
	Matches   int
	Elapsed   time.Duration
	Deep      bool
	Cancelled bool
}

// Store owns the aggregate and its backing file.
type Store struct {
	mu   sync.Mutex
	path string
	agg  Aggregate
}

// Load reads the stats file at path. A missing or corrupt file yields a
// zero-valued aggregate rather than a startup failure.
func Load(path string) *Store {
	s := &Store{path: path, agg: zeroAggregate()}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var agg Aggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		return s
	}
	if agg.SearchesByWorkspace == nil {
		agg.SearchesByWorkspace = make(map[string]int)
	}
	if agg.SearchesByUser == nil {
		agg.SearchesByUser = make(map[string]int)
	}
	s.agg = agg
	return s
}

// Record folds one job outcome into the aggregate and persists it.
// Called on every exit path, cancellation included.
func (s *Store) Record(o Outcome) error {
	s.mu.Lock()
	s.agg.TotalSearches++
	s.agg.TotalMessagesSearched += o.Messages
	s.agg.TotalMatchesFound += o.Matches
	s.agg.SearchTimeTotal += o.Elapsed.Seconds()
	if o.Deep {
		s.agg.DeepSearches++
	}
	if o.Cancelled {
		s.agg.CancelledSearches++
	}
	if o.Workspace != "" {
		s.agg.SearchesByWorkspace[o.Workspace]++
	}
	if o.Requester != "" {
		s.agg.SearchesByUser[o.Requester]++
	}

	rec := SearchRecord{
		User:      o.Requester,
		Workspace: o.Workspace,
		Query:     o.Query,
		Messages:  o.Messages,
		Matches:   o.Matches,
		Seconds:   o.Elapsed.Seconds(),
		At:        time.Now().UTC().Format(time.RFC3339),
	}
	s.agg.LastSearch = &rec
	if o.Messages > s.agg.LargestSearch.Messages {
		s.agg.LargestSearch = rec
	}
	s.mu.Unlock()

	observeOutcome(o)
	return s.Persist()
}

// Snapshot returns a copy of the aggregate (maps included).
func (s *Store) Snapshot() Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.agg
	out.SearchesByWorkspace = make(map[string]int, len(s.agg.SearchesByWorkspace))
	for k, v := range s.agg.SearchesByWorkspace {
		out.SearchesByWorkspace[k] = v
	}
	out.SearchesByUser = make(map[string]int, len(s.agg.SearchesByUser))
	for k, v := range s.agg.SearchesByUser {
		out.SearchesByUser[k] = v
	}
	if s.agg.LastSearch != nil {
		last := *s.agg.LastSearch
		out.LastSearch = &last
	}
	return out
}

// Persist overwrites the stats file with the current aggregate.
func (s *Store) Persist() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.agg, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}
