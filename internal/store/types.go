package store

// Channel represents an archived chat the account participates in.
type Channel struct {
	JID           string
	Name          string
	IsGroup       bool
	CanRead       bool
	LastMessageAt int64
}

// Message represents an archived message.
type Message struct {
	ID         int64
	ChannelJID string
	MsgID      string
	SenderJID  string
	SenderName string
	Body       string
	FromMe     bool
	Timestamp  int64
}

// Hit is a live-watch keyword hit.
type Hit struct {
	ID          int64
	ChannelJID  string
	ChannelName string
	MsgID       string
	SenderJID   string
	SenderName  string
	Keyword     string
	Body        string
	Timestamp   int64
}

// SearchResult holds a message with a full-text search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
