package wa

import (
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestExtractTextBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil message", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("extended")}}, "extended"},
		{"image without caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
		{"image with caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("look at this")}}, "look at this"},
		{"video with caption", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{Caption: proto.String("clip")}}, "clip"},
		{"document with caption", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{Caption: proto.String("report")}}, "report"},
		{"empty conversation", &waE2E.Message{Conversation: proto.String("")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTextBody(tt.msg)
			if got != tt.want {
				t.Errorf("extractTextBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLiveMessage(t *testing.T) {
	ts := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	evt := &events.Message{
		Info: types.MessageInfo{
			PushName:  "Alice",
			Timestamp: ts,
			MessageSource: types.MessageSource{
				Chat:     types.JID{User: "chat", Server: "g.us"},
				Sender:   types.JID{User: "sender", Server: "s.whatsapp.net"},
				IsFromMe: true,
			},
			ID: "MSG123",
		},
		Message: &waE2E.Message{Conversation: proto.String("hello world")},
	}

	parsed := ParseLiveMessage(evt)

	if parsed.ChannelJID != "chat@g.us" {
		t.Errorf("ChannelJID = %q, want chat@g.us", parsed.ChannelJID)
	}
	if parsed.MsgID != "MSG123" {
		t.Errorf("MsgID = %q, want MSG123", parsed.MsgID)
	}
	if parsed.SenderJID != "sender@s.whatsapp.net" {
		t.Errorf("SenderJID = %q, want sender@s.whatsapp.net", parsed.SenderJID)
	}
	if parsed.SenderName != "Alice" {
		t.Errorf("SenderName = %q, want Alice", parsed.SenderName)
	}
	if parsed.Body != "hello world" {
		t.Errorf("Body = %q, want hello world", parsed.Body)
	}
	if !parsed.FromMe {
		t.Error("FromMe = false, want true")
	}
	if parsed.Timestamp != ts.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", parsed.Timestamp, ts.UnixMilli())
	}
}

func TestToStoreMessage(t *testing.T) {
	p := &ParsedMessage{
		ChannelJID: "chat@g.us",
		MsgID:      "m1",
		SenderJID:  "sender@s.whatsapp.net",
		SenderName: "Bob",
		Body:       "test",
		FromMe:     false,
		Timestamp:  42000,
	}

	sm := p.ToStoreMessage()

	if sm.ChannelJID != "chat@g.us" || sm.MsgID != "m1" || sm.Body != "test" {
		t.Errorf("store message = %+v", sm)
	}
	if sm.FromMe {
		t.Error("FromMe should be false")
	}
	if sm.Timestamp != 42000 {
		t.Errorf("Timestamp = %d", sm.Timestamp)
	}
}

// TestNormalizeJID verifies that device/agent suffixes are stripped.
// Regression: history sync and live messages produced different JIDs for
// the same contact (e.g. "558592403672:3@s.whatsapp.net" vs
// "558592403672@s.whatsapp.net"), creating duplicate channel rows.
func TestNormalizeJID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"558592403672@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"558592403672:0@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"558592403672:5@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"120363123456@g.us", "120363123456@g.us"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeJID(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeJID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestParseLiveMessageStripsDeviceSuffix verifies that live messages from
// device-specific JIDs are normalized to the canonical user JID.
func TestParseLiveMessageStripsDeviceSuffix(t *testing.T) {
	evt := &events.Message{
		Info: types.MessageInfo{
			ID:        "M1",
			Timestamp: time.Now(),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "558592403672", Server: "s.whatsapp.net", Device: 1},
				Sender: types.JID{User: "558592403672", Server: "s.whatsapp.net", Device: 3},
			},
		},
		Message: &waE2E.Message{Conversation: proto.String("hi")},
	}

	parsed := ParseLiveMessage(evt)
	if parsed.ChannelJID != "558592403672@s.whatsapp.net" {
		t.Errorf("ChannelJID = %q, device suffix not stripped", parsed.ChannelJID)
	}
	if parsed.SenderJID != "558592403672@s.whatsapp.net" {
		t.Errorf("SenderJID = %q, device suffix not stripped", parsed.SenderJID)
	}
}
