package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/BENZOOgataga/DeepSearch/internal/platform"
)

// fakeClient implements platform.Client over in-memory fixtures.
// Messages are stored newest-first per channel, mirroring the real
// history accessor.
type fakeClient struct {
	mu           sync.Mutex
	self         platform.User
	channels     []platform.Channel
	messages     map[string][]platform.Message
	forbidden    map[string]bool
	historyCalls int
	sent         []string
	edits        []string

	// onHistory, when set, runs on every History call (cancellation tests).
	onHistory func(calls int)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		self:      platform.User{ID: "bot", Name: "deepsearch"},
		messages:  make(map[string][]platform.Message),
		forbidden: make(map[string]bool),
	}
}

func (f *fakeClient) addChannel(id, name string, canRead bool) {
	f.channels = append(f.channels, platform.Channel{ID: id, Name: name, CanRead: canRead})
}

// fillChannel creates n messages authored by sender, newest first, with
// contents from the content func (called with the message index, 0 being
// the newest).
func (f *fakeClient) fillChannel(id, sender string, n int, content func(i int) string) {
	msgs := make([]platform.Message, n)
	for i := 0; i < n; i++ {
		msgs[i] = platform.Message{
			ID:         fmt.Sprintf("%s-%d", id, i),
			ChannelID:  id,
			SenderID:   sender,
			SenderName: sender,
			Content:    content(i),
			Timestamp:  int64(1_000_000 - i), // newest first
		}
	}
	f.messages[id] = msgs
}

func (f *fakeClient) Self() platform.User { return f.self }

func (f *fakeClient) Workspace(context.Context) (*platform.Workspace, error) {
	return &platform.Workspace{ID: "ws", Name: "workspace"}, nil
}

func (f *fakeClient) Channels(context.Context) ([]platform.Channel, error) {
	return f.channels, nil
}

func (f *fakeClient) Members(context.Context, string) ([]platform.User, error) {
	return nil, nil
}

func (f *fakeClient) History(_ context.Context, channelID string, limit int, beforeTS int64) ([]platform.Message, error) {
	f.mu.Lock()
	f.historyCalls++
	calls := f.historyCalls
	f.mu.Unlock()

	if f.onHistory != nil {
		f.onHistory(calls)
	}

	if f.forbidden[channelID] {
		return nil, platform.ErrForbidden
	}
	var out []platform.Message
	for _, m := range f.messages[channelID] {
		if beforeTS > 0 && m.Timestamp >= beforeTS {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeClient) FetchUser(_ context.Context, id string) (*platform.User, error) {
	return &platform.User{ID: id, Name: id}, nil
}

func (f *fakeClient) Send(_ context.Context, channelID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return fmt.Sprintf("status-%d", len(f.sent)), nil
}

func (f *fakeClient) Edit(_ context.Context, _, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeClient) SendFile(context.Context, string, string) error { return nil }
