package wa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/BENZOOgataga/DeepSearch/internal/platform"
)

// Adapter satisfies platform.Client. Channel enumeration and history come
// from the local archive (populated by ingestion), sends and edits go
// over the wire.
var _ platform.Client = (*Adapter)(nil)

// Self returns the identity of the logged-in account.
func (a *Adapter) Self() platform.User {
	if a.client.Store.ID == nil {
		return platform.User{}
	}
	return platform.User{
		ID:   a.client.Store.ID.ToNonAD().String(),
		Name: a.client.Store.PushName,
	}
}

// Workspace describes the account this daemon serves.
func (a *Adapter) Workspace(context.Context) (*platform.Workspace, error) {
	if a.client.Store.ID == nil {
		return nil, fmt.Errorf("not logged in")
	}
	name := a.client.Store.PushName
	if name == "" {
		name = a.client.Store.ID.User
	}
	return &platform.Workspace{
		ID:   a.client.Store.ID.ToNonAD().String(),
		Name: name,
	}, nil
}

// Channels lists the archived channels, most recently active first.
func (a *Adapter) Channels(context.Context) ([]platform.Channel, error) {
	chans, err := a.db.ListChannels(0, 0)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	out := make([]platform.Channel, 0, len(chans))
	for _, c := range chans {
		out = append(out, platform.Channel{
			ID:      c.JID,
			Name:    c.Name,
			CanRead: c.CanRead,
		})
	}
	return out, nil
}

// Members lists the participants of a group channel.
func (a *Adapter) Members(ctx context.Context, channelID string) ([]platform.User, error) {
	jid, err := types.ParseJID(channelID)
	if err != nil {
		return nil, fmt.Errorf("parse JID: %w", err)
	}
	info, err := a.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("group info: %w", err)
	}
	out := make([]platform.User, 0, len(info.Participants))
	for _, p := range info.Participants {
		out = append(out, platform.User{
			ID:   p.JID.ToNonAD().String(),
			Name: p.DisplayName,
		})
	}
	return out, nil
}

// History serves one page from the archive, newest first, keyset-paginated
// by timestamp.
func (a *Adapter) History(ctx context.Context, channelID string, limit int, beforeTS int64) ([]platform.Message, error) {
	msgs, err := a.db.ListMessages(channelID, beforeTS, limit)
	if err != nil {
		return nil, fmt.Errorf("archive history: %w", err)
	}

	channelName := channelID
	if ch, err := a.db.GetChannel(channelID); err == nil && ch != nil {
		channelName = ch.Name
	}

	out := make([]platform.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, platform.Message{
			ID:          m.MsgID,
			ChannelID:   m.ChannelJID,
			ChannelName: channelName,
			SenderID:    m.SenderJID,
			SenderName:  m.SenderName,
			Content:     m.Body,
			FromMe:      m.FromMe,
			Timestamp:   m.Timestamp,
		})
	}
	return out, nil
}

// FetchUser resolves a user reference against the device contact store.
func (a *Adapter) FetchUser(ctx context.Context, id string) (*platform.User, error) {
	jid, err := types.ParseJID(id)
	if err != nil {
		return nil, fmt.Errorf("parse JID: %w", err)
	}
	info, err := a.client.Store.Contacts.GetContact(ctx, jid.ToNonAD())
	if err != nil {
		return nil, fmt.Errorf("contact lookup: %w", err)
	}
	if !info.Found {
		return nil, platform.ErrNotFound
	}
	name := info.FullName
	if name == "" {
		name = info.PushName
	}
	if name == "" {
		name = jid.User
	}
	return &platform.User{ID: jid.ToNonAD().String(), Name: name}, nil
}

// Send sends a text message to the given channel. Returns the server
// message ID, used later as the edit handle for progress updates.
func (a *Adapter) Send(ctx context.Context, channelID, text string) (string, error) {
	to, err := types.ParseJID(channelID)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// Edit replaces the text of a previously sent message.
func (a *Adapter) Edit(ctx context.Context, channelID, messageID, text string) error {
	to, err := types.ParseJID(channelID)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}
	edit := a.client.BuildEdit(to, messageID, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if _, err := a.client.SendMessage(ctx, to, edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// SendFile uploads a local file and sends it as a document message.
func (a *Adapter) SendFile(ctx context.Context, channelID, path string) error {
	to, err := types.ParseJID(channelID)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	uploaded, err := a.client.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}

	name := filepath.Base(path)
	msg := &waE2E.Message{
		DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Mimetype:      proto.String("application/octet-stream"),
			FileName:      proto.String(name),
			Title:         proto.String(name),
		},
	}
	if _, err := a.client.SendMessage(ctx, to, msg); err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	return nil
}
