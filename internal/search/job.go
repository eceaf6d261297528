package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/BENZOOgataga/DeepSearch/internal/match"
	"github.com/BENZOOgataga/DeepSearch/internal/platform"
	"github.com/BENZOOgataga/DeepSearch/internal/stats"
	"go.uber.org/zap"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRunning    Status = "running"
	StatusCancelling Status = "cancelling"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

const (
	// pageSize is the history page pulled per fetch.
	pageSize = 100
	// cancelPollEvery bounds how many messages may be scanned between
	// two cancellation checks inside a page.
	cancelPollEvery = 64
	// contentBudget is the fixed character budget for stored match
	// content; longer bodies are cut with an ellipsis marker.
	contentBudget = 300
)

// MatchRecord is one stored match, ready for display or export.
type MatchRecord struct {
	MessageID   string                `json:"message_id"`
	ChannelID   string                `json:"channel_id"`
	ChannelName string                `json:"channel_name"`
	SenderID    string                `json:"sender_id"`
	SenderName  string                `json:"sender_name"`
	Timestamp   int64                 `json:"timestamp"`
	Content     string                `json:"content"`
	Permalink   string                `json:"permalink,omitempty"`
	Attachments []platform.Attachment `json:"attachments,omitempty"`
	// Terms holds the lexicon terms that caused the match, so results can
	// say why a message matched.
	Terms []string `json:"terms,omitempty"`
}

// Summary is the final result of a job.
type Summary struct {
	Kind             Kind          `json:"kind"`
	Query            string        `json:"query"`
	TargetUser       string        `json:"target_user,omitempty"`
	ChannelsTotal    int           `json:"channels_total"`
	ChannelsSearched int           `json:"channels_searched"`
	MessagesScanned  int           `json:"messages_scanned"`
	MatchesFound     int           `json:"matches_found"`
	Cancelled        bool          `json:"cancelled"`
	Elapsed          time.Duration `json:"elapsed"`
	// Matches holds up to the result cap, newest first.
	Matches []MatchRecord `json:"matches"`
}

// Text renders the one-line completion report.
func (s *Summary) Text() string {
	if s.Cancelled {
		return fmt.Sprintf("Search cancelled after %d/%d channels (%d messages scanned, %d matches kept).",
			s.ChannelsSearched, s.ChannelsTotal, s.MessagesScanned, s.MatchesFound)
	}
	return fmt.Sprintf("Search complete: %d matches for %q (%d messages across %d channels in %.1fs).",
		s.MatchesFound, s.Query, s.MessagesScanned, s.ChannelsSearched, s.Elapsed.Seconds())
}

// Job drives one scan: resolve channels, walk paginated history, apply the
// predicate, accumulate capped matches, report throttled progress, honor
// cooperative cancellation, and always clean up.
type Job struct {
	req      Request
	client   platform.Client
	history  *HistoryCache // nil disables the page cache
	registry *Registry
	reporter Reporter
	stats    *stats.Store
	logger   *zap.Logger

	mu       sync.Mutex
	status   Status
	started  time.Time
	progress Update
	summary  *Summary
	failure  string
}

// NewJob builds a job. The caller must already hold the registry slot for
// req.Kind; Run releases it on every exit path.
func NewJob(req Request, client platform.Client, history *HistoryCache, registry *Registry, reporter Reporter, st *stats.Store, logger *zap.Logger) *Job {
	if req.ResultCap <= 0 {
		req.ResultCap = InlineResultCap
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		req:      req,
		client:   client,
		history:  history,
		registry: registry,
		reporter: reporter,
		stats:    st,
		logger:   logger,
		status:   StatusIdle,
	}
}

// Snapshot returns the job's current status and progress counters.
func (j *Job) Snapshot() (Status, Update, *Summary) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.progress, j.summary
}

// Failure returns the error text of a failed run, empty otherwise.
func (j *Job) Failure() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failure
}

// Run executes the scan to completion or cancellation. The registry slot
// is released, the cancellation flag cleared, and the outcome forwarded to
// the stats store on every exit path, error included.
func (j *Job) Run(ctx context.Context) (sum *Summary, err error) {
	j.mu.Lock()
	j.status = StatusRunning
	j.started = time.Now()
	j.mu.Unlock()

	sum = &Summary{
		Kind:       j.req.Kind,
		Query:      j.req.Query(),
		TargetUser: j.req.TargetUserName,
	}

	defer func() {
		sum.Elapsed = time.Since(j.started)

		j.registry.Release(j.req.Kind)
		if j.stats != nil {
			if recErr := j.stats.Record(stats.Outcome{
				Requester: j.req.Requester,
				Workspace: j.req.Workspace,
				Query:     sum.Query,
				Messages:  sum.MessagesScanned,
				Matches:   sum.MatchesFound,
				Elapsed:   sum.Elapsed,
				Deep:      j.req.Expensive(),
				Cancelled: sum.Cancelled,
			}); recErr != nil {
				j.logger.Warn("failed to persist search stats", zap.Error(recErr))
			}
		}

		j.mu.Lock()
		switch {
		case err != nil:
			j.status = StatusFailed
			j.failure = err.Error()
		case sum.Cancelled:
			j.status = StatusCancelled
		default:
			j.status = StatusCompleted
		}
		j.summary = sum
		j.mu.Unlock()

		if err != nil {
			j.reporter.Final(ctx, fmt.Sprintf("Search failed: %v", err))
		} else {
			j.reporter.Final(ctx, sum.Text())
		}
	}()

	all, err := j.client.Channels(ctx)
	if err != nil {
		return sum, fmt.Errorf("list channels: %w", err)
	}
	channels, err := ResolveChannels(all, j.req.Include, j.req.Exclude)
	if err != nil {
		return sum, err
	}
	sum.ChannelsTotal = len(channels)
	if len(channels) == 0 {
		// Nothing readable: complete immediately with a zero summary.
		return sum, nil
	}

	for _, ch := range channels {
		if j.cancelRequested(ctx, sum) {
			break
		}

		sum.ChannelsSearched++
		capped, err := j.scanChannel(ctx, ch, sum)
		if err != nil {
			if errors.Is(err, platform.ErrForbidden) {
				// Unreadable mid-scan: skip, not fatal.
				continue
			}
			j.logger.Warn("channel scan failed",
				zap.String("channel", ch.Name), zap.Error(err))
			continue
		}
		if capped || sum.Cancelled {
			break
		}

		j.report(ctx, sum, false)
	}

	sort.Slice(sum.Matches, func(a, b int) bool {
		return sum.Matches[a].Timestamp > sum.Matches[b].Timestamp
	})
	return sum, nil
}

// scanChannel walks one channel's history newest-first, up to the request
// limit. Returns capped=true once the result cap ends the whole scan.
func (j *Job) scanChannel(ctx context.Context, ch platform.Channel, sum *Summary) (capped bool, err error) {
	remaining := j.req.Limit
	if remaining == 0 {
		remaining = pageSize
	}

	var before int64
	firstPage := true
	for {
		page := pageSize
		if remaining != NoLimit && remaining < page {
			page = remaining
		}
		if page <= 0 {
			return false, nil
		}

		var msgs []platform.Message
		if firstPage && j.history != nil && page <= pageSize {
			msgs, err = j.history.Page(ctx, ch.ID, page, j.req.ForceRefresh)
		} else {
			msgs, err = j.client.History(ctx, ch.ID, page, before)
		}
		if err != nil {
			return false, err
		}
		firstPage = false

		for i := range msgs {
			m := &msgs[i]
			sum.MessagesScanned++

			if sum.MessagesScanned%cancelPollEvery == 0 && j.cancelRequested(ctx, sum) {
				return false, nil
			}

			if m.FromMe {
				continue
			}
			if j.req.TargetUserID != "" && m.SenderID != j.req.TargetUserID {
				continue
			}

			ok, terms := j.evaluate(m.Content)
			if !ok {
				continue
			}
			sum.MatchesFound++
			if len(sum.Matches) < j.req.ResultCap {
				sum.Matches = append(sum.Matches, j.record(ch, m, terms))
			} else {
				capped = true
			}
		}

		j.report(ctx, sum, false)
		if capped {
			// Cap reached: overflow in this page was counted, the rest of
			// the scan is abandoned.
			return true, nil
		}

		if len(msgs) < page {
			return false, nil // channel exhausted
		}
		before = msgs[len(msgs)-1].Timestamp
		if remaining != NoLimit {
			remaining -= len(msgs)
			if remaining <= 0 {
				return false, nil
			}
		}
	}
}

// evaluate applies the request's predicate. Count-only jobs (no keyword,
// pattern, lexicon or matcher) never match.
func (j *Job) evaluate(content string) (bool, []string) {
	switch {
	case j.req.Pattern != nil:
		return j.req.Pattern.MatchString(content), nil
	case j.req.Lexicon != nil:
		terms := j.req.Lexicon.Match(content, j.req.Strictness)
		return len(terms) > 0, terms
	case j.req.Matcher != nil:
		return j.req.Matcher.Match(content), nil
	case j.req.Keyword != "":
		return match.Literal(content, j.req.Keyword), nil
	default:
		return false, nil
	}
}

func (j *Job) record(ch platform.Channel, m *platform.Message, terms []string) MatchRecord {
	return MatchRecord{
		MessageID:   m.ID,
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		Timestamp:   m.Timestamp,
		Content:     Truncate(m.Content, contentBudget),
		Permalink:   m.Permalink,
		Attachments: m.Attachments,
		Terms:       terms,
	}
}

// cancelRequested polls the registry flag; on the first observation it
// flips the job to Cancelling, marks the summary and reports the
// cancelling update.
func (j *Job) cancelRequested(ctx context.Context, sum *Summary) bool {
	if !j.registry.CancelRequested(j.req.Kind) {
		return false
	}
	if !sum.Cancelled {
		sum.Cancelled = true
		j.mu.Lock()
		j.status = StatusCancelling
		j.mu.Unlock()
		j.report(ctx, sum, true)
	}
	return true
}

func (j *Job) report(ctx context.Context, sum *Summary, cancelling bool) {
	u := Update{
		Kind:             j.req.Kind,
		Query:            sum.Query,
		ChannelsSearched: sum.ChannelsSearched,
		ChannelsTotal:    sum.ChannelsTotal,
		MessagesScanned:  sum.MessagesScanned,
		MatchesFound:     sum.MatchesFound,
		Elapsed:          time.Since(j.started),
		Cancelling:       cancelling,
	}
	j.mu.Lock()
	j.progress = u
	j.mu.Unlock()
	j.reporter.Report(ctx, u)
}

// Truncate cuts s to at most budget characters, appending an ellipsis
// marker when content was dropped.
func Truncate(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	cut := s[:budget]
	// Avoid splitting a multi-byte rune at the boundary.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Update) {}
func (nopReporter) Final(context.Context, string)  {}
