// Package platform defines the chat platform collaborator interface the
// search engine depends on, decoupled from the concrete WhatsApp adapter.
package platform

// User is a platform account.
type User struct {
	ID   string
	Name string
}

// Channel is a readable conversation inside the watched workspace.
type Channel struct {
	ID      string
	Name    string
	CanRead bool
}

// Attachment describes a non-text payload carried by a message.
type Attachment struct {
	Filename string
	URL      string
}

// Message is a normalized platform message.
type Message struct {
	ID          string
	ChannelID   string
	ChannelName string
	SenderID    string
	SenderName  string
	Content     string
	FromMe      bool
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp   int64
	Attachments []Attachment
	Permalink   string
}

// Workspace identifies the watched account. It plays the guild role for
// cooldown keying and statistics tallies.
type Workspace struct {
	ID   string
	Name string
}
