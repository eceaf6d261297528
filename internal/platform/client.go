package platform

import (
	"context"
	"errors"
)

// ErrForbidden is returned by History when a channel cannot be read.
// Search jobs skip the channel and continue.
var ErrForbidden = errors.New("platform: channel not readable")

// ErrNotFound is returned when a user or channel does not exist.
var ErrNotFound = errors.New("platform: not found")

// Client is the chat platform collaborator. Implementations must be safe
// for concurrent use; jobs of different kinds run in parallel.
type Client interface {
	// Self returns the daemon's own account, used to skip self-authored
	// messages during scans.
	Self() User

	// Workspace returns the watched account workspace.
	Workspace(ctx context.Context) (*Workspace, error)

	// Channels lists the workspace's channels in stable order.
	Channels(ctx context.Context) ([]Channel, error)

	// Members lists the participants of a channel.
	Members(ctx context.Context, channelID string) ([]User, error)

	// History returns up to limit messages from the channel, newest first,
	// strictly older than beforeTS (0 means "now"). Returns ErrForbidden
	// when the channel cannot be read.
	History(ctx context.Context, channelID string, limit int, beforeTS int64) ([]Message, error)

	// FetchUser resolves a user by ID. Returns ErrNotFound when unknown.
	FetchUser(ctx context.Context, id string) (*User, error)

	// Send posts text to a channel and returns the new message ID.
	Send(ctx context.Context, channelID, text string) (string, error)

	// Edit replaces the text of a previously sent message. Progress
	// reporters call this; the caller is responsible for throttling.
	Edit(ctx context.Context, channelID, messageID, text string) error

	// SendFile uploads a local file to a channel as a document.
	SendFile(ctx context.Context, channelID, path string) error
}
