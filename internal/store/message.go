package store

import "time"

// UpsertMessage inserts or updates a message (idempotent on channel_jid + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (channel_jid, msg_id, sender_jid, sender_name, body, from_me, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_jid, msg_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			body = excluded.body`,
		m.ChannelJID, m.MsgID, m.SenderJID, m.SenderName, m.Body, m.FromMe, m.Timestamp, now)
	return err
}

// ListMessages returns messages for a channel using keyset pagination by
// timestamp, newest first.
func (db *DB) ListMessages(channelJID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, channel_jid, msg_id, sender_jid, sender_name, body, from_me, timestamp
		FROM messages
		WHERE channel_jid = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, channelJID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChannelJID, &m.MsgID, &m.SenderJID, &m.SenderName, &m.Body, &m.FromMe, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountMessages returns the number of archived messages, optionally scoped
// to one channel.
func (db *DB) CountMessages(channelJID string) (int64, error) {
	var n int64
	var err error
	if channelJID == "" {
		err = db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	} else {
		err = db.QueryRow(`SELECT COUNT(*) FROM messages WHERE channel_jid = ?`, channelJID).Scan(&n)
	}
	return n, err
}
