package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestChannelUpsertAndList(t *testing.T) {
	db := testDB(t)

	ch := &Channel{JID: "123@g.us", Name: "general", IsGroup: true, CanRead: true, LastMessageAt: 1000}
	if err := db.UpsertChannel(ch); err != nil {
		t.Fatal(err)
	}
	// Upsert again with an older last_message_at; the newer mark must win.
	ch.LastMessageAt = 500
	if err := db.UpsertChannel(ch); err != nil {
		t.Fatal(err)
	}

	chans, err := db.ListChannels(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chans) != 1 {
		t.Fatalf("channels = %d, want 1", len(chans))
	}
	if chans[0].Name != "general" || chans[0].LastMessageAt != 1000 {
		t.Errorf("channel = %+v", chans[0])
	}

	got, err := db.GetChannel("123@g.us")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.IsGroup {
		t.Errorf("GetChannel = %+v", got)
	}
	missing, err := db.GetChannel("nope")
	if err != nil || missing != nil {
		t.Errorf("GetChannel(missing) = %+v, %v", missing, err)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	m := &Message{ChannelJID: "c@g.us", MsgID: "m1", SenderJID: "s@s", SenderName: "alice", Body: "hello", Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	m.Body = "hello edited"
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c@g.us", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1 (upsert, not duplicate)", len(msgs))
	}
	if msgs[0].Body != "hello edited" {
		t.Errorf("body = %q", msgs[0].Body)
	}
}

func TestListMessagesKeysetPagination(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 10; i++ {
		m := &Message{
			ChannelJID: "c@g.us",
			MsgID:      string(rune('a' + i)),
			Body:       "msg",
			Timestamp:  int64(1000 + i),
		}
		if err := db.UpsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	page1, err := db.ListMessages("c@g.us", 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 4 || page1[0].Timestamp != 1009 {
		t.Fatalf("page1 = %+v", page1)
	}

	page2, err := db.ListMessages("c@g.us", page1[len(page1)-1].Timestamp, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 4 || page2[0].Timestamp != 1005 {
		t.Fatalf("page2 = %+v", page2)
	}
	for i := 1; i < len(page2); i++ {
		if page2[i-1].Timestamp <= page2[i].Timestamp {
			t.Error("page not newest-first")
		}
	}
}

func TestSearchMessagesFTS(t *testing.T) {
	db := testDB(t)

	seed := []Message{
		{ChannelJID: "c1", MsgID: "m1", Body: "the quick brown fox", Timestamp: 1},
		{ChannelJID: "c1", MsgID: "m2", Body: "lazy dog sleeps", Timestamp: 2},
		{ChannelJID: "c2", MsgID: "m3", Body: "another fox appears", Timestamp: 3},
	}
	for i := range seed {
		if err := db.UpsertMessage(&seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.SearchMessages("fox", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("fox results = %d, want 2", len(all))
	}

	scoped, err := db.SearchMessages("fox", "c2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].Message.MsgID != "m3" {
		t.Errorf("scoped results = %+v", scoped)
	}
	if scoped[0].Snippet == "" {
		t.Error("snippet empty")
	}
}

func TestHits(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 3; i++ {
		h := &Hit{
			ChannelJID:  "c@g.us",
			ChannelName: "general",
			MsgID:       string(rune('a' + i)),
			SenderName:  "alice",
			Keyword:     "foo",
			Body:        "foo spotted",
			Timestamp:   int64(100 + i),
		}
		if err := db.InsertHit(h); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := db.ListHits(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].Timestamp != 102 {
		t.Fatalf("hits = %+v", hits)
	}

	n, err := db.CountHits()
	if err != nil || n != 3 {
		t.Errorf("CountHits = %d, %v", n, err)
	}
}

func TestCountMessages(t *testing.T) {
	db := testDB(t)

	_ = db.UpsertMessage(&Message{ChannelJID: "c1", MsgID: "m1", Body: "x", Timestamp: 1})
	_ = db.UpsertMessage(&Message{ChannelJID: "c2", MsgID: "m2", Body: "y", Timestamp: 2})

	total, err := db.CountMessages("")
	if err != nil || total != 2 {
		t.Errorf("CountMessages(all) = %d, %v", total, err)
	}
	one, err := db.CountMessages("c1")
	if err != nil || one != 1 {
		t.Errorf("CountMessages(c1) = %d, %v", one, err)
	}
}
