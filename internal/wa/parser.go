package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/BENZOOgataga/DeepSearch/internal/store"
)

// ParsedMessage is a normalized message ready for ingestion.
type ParsedMessage struct {
	ChannelJID string
	MsgID      string
	SenderJID  string
	SenderName string
	Body       string
	FromMe     bool
	Timestamp  int64
}

// NormalizeJID strips device/agent suffixes so live and history traffic
// produce the same JID for the same contact. Unparseable input is kept
// as-is.
func NormalizeJID(jid string) string {
	if jid == "" {
		return jid
	}
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return jid
	}
	return parsed.ToNonAD().String()
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	return &ParsedMessage{
		ChannelJID: evt.Info.Chat.ToNonAD().String(),
		MsgID:      evt.Info.ID,
		SenderJID:  evt.Info.Sender.ToNonAD().String(),
		SenderName: evt.Info.PushName,
		Body:       extractTextBody(evt.Message),
		FromMe:     evt.Info.IsFromMe,
		Timestamp:  evt.Info.Timestamp.UnixMilli(),
	}
}

// ParseHistoryMessage normalizes a history sync message.
func ParseHistoryMessage(msg *waE2E.Message, info types.MessageInfo) *ParsedMessage {
	return &ParsedMessage{
		ChannelJID: info.Chat.ToNonAD().String(),
		MsgID:      info.ID,
		SenderJID:  info.Sender.ToNonAD().String(),
		SenderName: info.PushName,
		Body:       extractTextBody(msg),
		FromMe:     info.IsFromMe,
		Timestamp:  info.Timestamp.UnixMilli(),
	}
}

// ToStoreMessage converts a ParsedMessage to a store.Message.
func (p *ParsedMessage) ToStoreMessage() *store.Message {
	return &store.Message{
		ChannelJID: p.ChannelJID,
		MsgID:      p.MsgID,
		SenderJID:  p.SenderJID,
		SenderName: p.SenderName,
		Body:       p.Body,
		FromMe:     p.FromMe,
		Timestamp:  p.Timestamp,
	}
}

// extractTextBody pulls the searchable text out of a message. Captioned
// media counts: the caption is the text the watch should see.
func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	return ""
}
