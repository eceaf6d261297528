package store

import (
	"database/sql"
	"time"
)

// UpsertChannel inserts or updates a channel record.
func (db *DB) UpsertChannel(c *Channel) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO channels (jid, name, is_group, can_read, last_message_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = excluded.name,
			is_group = excluded.is_group,
			can_read = excluded.can_read,
			last_message_at = MAX(channels.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		c.JID, c.Name, c.IsGroup, c.CanRead, c.LastMessageAt, now)
	return err
}

// ListChannels returns channels sorted by last message timestamp descending.
func (db *DB) ListChannels(limit, offset int) ([]Channel, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT jid, COALESCE(NULLIF(name,''), jid), is_group, can_read, last_message_at
		FROM channels
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chans []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.JID, &c.Name, &c.IsGroup, &c.CanRead, &c.LastMessageAt); err != nil {
			return nil, err
		}
		chans = append(chans, c)
	}
	return chans, rows.Err()
}

// GetChannel returns a single channel by JID, nil when absent.
func (db *DB) GetChannel(jid string) (*Channel, error) {
	var c Channel
	err := db.QueryRow(`
		SELECT jid, COALESCE(NULLIF(name,''), jid), is_group, can_read, last_message_at
		FROM channels
		WHERE jid = ?`, jid).
		Scan(&c.JID, &c.Name, &c.IsGroup, &c.CanRead, &c.LastMessageAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
