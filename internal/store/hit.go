package store

import "time"

// InsertHit records a live-watch keyword hit.
func (db *DB) InsertHit(h *Hit) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO hits (channel_jid, channel_name, msg_id, sender_jid, sender_name, keyword, body, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ChannelJID, h.ChannelName, h.MsgID, h.SenderJID, h.SenderName, h.Keyword, h.Body, h.Timestamp, now)
	return err
}

// ListHits returns the most recent hits, newest first.
func (db *DB) ListHits(limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, channel_jid, channel_name, msg_id, sender_jid, sender_name, keyword, body, timestamp
		FROM hits
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.ChannelJID, &h.ChannelName, &h.MsgID, &h.SenderJID, &h.SenderName, &h.Keyword, &h.Body, &h.Timestamp); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// CountHits returns the number of recorded hits.
func (db *DB) CountHits() (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM hits`).Scan(&n)
	return n, err
}
