package search

import (
	"context"
	"fmt"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/bus"
	"github.com/BENZOOgataga/DeepSearch/internal/platform"
	"golang.org/x/time/rate"
)

// Update is a point-in-time view of a running job.
type Update struct {
	Kind             Kind
	Query            string
	ChannelsSearched int
	ChannelsTotal    int
	MessagesScanned  int
	MatchesFound     int
	Elapsed          time.Duration
	Cancelling       bool
}

// Text renders the update the way the status message shows it.
func (u Update) Text() string {
	if u.Cancelling {
		return "Search cancelled! Finalizing results..."
	}
	perSec := 0.0
	if u.Elapsed > 0 {
		perSec = float64(u.MessagesScanned) / u.Elapsed.Seconds()
	}
	return fmt.Sprintf("Searching: %d/%d channels, %d messages (%.1f/sec), %d matches... (send `%s cancel` to stop)",
		u.ChannelsSearched, u.ChannelsTotal, u.MessagesScanned, perSec, u.MatchesFound, u.Kind)
}

// Reporter receives progress updates from a running job. Implementations
// must be cheap; the job calls Report from its scan loop.
type Reporter interface {
	Report(ctx context.Context, u Update)
	// Final delivers the end-of-job text exactly once.
	Final(ctx context.Context, text string)
}

// BusReporter publishes progress on the event bus.
type BusReporter struct {
	Bus *bus.Bus
}

func (r *BusReporter) Report(_ context.Context, u Update) {
	r.Bus.Publish(bus.Event{Kind: bus.KindSearchProgress, Timestamp: time.Now(), Payload: u})
}

func (r *BusReporter) Final(_ context.Context, text string) {
	r.Bus.Publish(bus.Event{Kind: bus.KindSearchCompleted, Timestamp: time.Now(), Payload: text})
}

// MessageReporter maintains one platform status message per job, editing
// it in place. Edits are throttled through a token bucket so progress can
// never exceed the platform's edit-rate limit, no matter how fast the
// scan loop runs.
type MessageReporter struct {
	Client    platform.Client
	ChannelID string
	Limiter   *rate.Limiter // e.g. rate.Every(5*time.Second), burst 1

	msgID string
}

// NewMessageReporter creates a reporter that edits a status message in
// channelID at most once per interval.
func NewMessageReporter(client platform.Client, channelID string, interval time.Duration) *MessageReporter {
	return &MessageReporter{
		Client:    client,
		ChannelID: channelID,
		Limiter:   rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (r *MessageReporter) Report(ctx context.Context, u Update) {
	if !r.Limiter.Allow() {
		return
	}
	r.post(ctx, u.Text())
}

// Final always lands, without blocking job teardown: when the bucket is
// empty the closing edit is posted from a goroutine once a token frees
// up. No Report follows a Final, so the delayed post cannot race an edit.
func (r *MessageReporter) Final(ctx context.Context, text string) {
	if r.Limiter.Allow() {
		r.post(ctx, text)
		return
	}
	go func() {
		if err := r.Limiter.Wait(ctx); err != nil {
			return
		}
		r.post(ctx, text)
	}()
}

func (r *MessageReporter) post(ctx context.Context, text string) {
	if r.msgID == "" {
		id, err := r.Client.Send(ctx, r.ChannelID, text)
		if err == nil {
			r.msgID = id
		}
		return
	}
	// Edit failures are tolerated; the next tick retries.
	_ = r.Client.Edit(ctx, r.ChannelID, r.msgID, text)
}

// MultiReporter fans out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, u Update) {
	for _, r := range m {
		r.Report(ctx, u)
	}
}

func (m MultiReporter) Final(ctx context.Context, text string) {
	for _, r := range m {
		r.Final(ctx, text)
	}
}
