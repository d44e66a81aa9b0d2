package store

import (
	"database/sql"
	"fmt"
	"time"
)

const conversationColumns = `conversation_id, owner_id, category, name, icon_url, announcement,
	created_at, pin_time, last_message_id, last_read_message_id, unseen_count, status, draft, mute_until`

// GetConversation returns a conversation by identifier, or nil if absent.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	row := db.QueryRow(`SELECT `+conversationColumns+` FROM conversations WHERE conversation_id = ?`, id)
	var c Conversation
	err := row.Scan(&c.ConversationID, &c.OwnerID, &c.Category, &c.Name, &c.IconURL, &c.Announcement,
		&c.CreatedAt, &c.PinTime, &c.LastMessageID, &c.LastReadMessageID, &c.UnseenCount, &c.Status,
		&c.Draft, &c.MuteUntil)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertConversation creates a conversation if it does not already
// exist. A second insert for the same identifier is a no-op, so both
// sides of a direct conversation collapse to one record.
func (db *DB) InsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (`+conversationColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO NOTHING`,
		c.ConversationID, c.OwnerID, c.Category, c.Name, c.IconURL, c.Announcement,
		c.CreatedAt, c.PinTime, c.LastMessageID, c.LastReadMessageID, c.UnseenCount, c.Status,
		c.Draft, c.MuteUntil, now)
	return err
}

// DeleteConversation removes a conversation together with its roster and
// messages. Used only for explicit user-initiated clears.
func (db *DB) DeleteConversation(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM messages WHERE conversation_id = ?`,
		`DELETE FROM participants WHERE conversation_id = ?`,
		`DELETE FROM conversations WHERE conversation_id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("clear conversation: %w", err)
		}
	}
	return tx.Commit()
}

// ListConversations returns conversations pinned-first, then by most
// recent activity.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT `+conversationColumns+` FROM conversations
		ORDER BY pin_time DESC, created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ConversationID, &c.OwnerID, &c.Category, &c.Name, &c.IconURL, &c.Announcement,
			&c.CreatedAt, &c.PinTime, &c.LastMessageID, &c.LastReadMessageID, &c.UnseenCount, &c.Status,
			&c.Draft, &c.MuteUntil); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetPinTime pins (non-zero) or unpins (zero) a conversation.
func (db *DB) SetPinTime(id string, pinTime int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET pin_time = ?, updated_at = ? WHERE conversation_id = ?`,
		pinTime, now, id)
	return err
}

// SaveDraft stores the unsent composer text for a conversation.
func (db *DB) SaveDraft(id, draft string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET draft = ?, updated_at = ? WHERE conversation_id = ?`,
		draft, now, id)
	return err
}

// ApplySnapshot re-applies remote-authoritative scalar fields and the
// target lifecycle state on the caller's transaction. Last writer wins.
func ApplySnapshot(tx *sql.Tx, c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := tx.Exec(`
		UPDATE conversations SET
			owner_id = ?, category = ?, name = ?, icon_url = ?, announcement = ?,
			created_at = ?, status = ?, mute_until = ?, updated_at = ?
		WHERE conversation_id = ?`,
		c.OwnerID, c.Category, c.Name, c.IconURL, c.Announcement,
		c.CreatedAt, c.Status, c.MuteUntil, now, c.ConversationID)
	return err
}
