package store

import "fmt"

// UpsertMessage inserts or updates a message (idempotent on the
// conversation + message pair).
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, message_id, user_id, body, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, message_id) DO UPDATE SET
			body = excluded.body,
			status = excluded.status`,
		m.ConversationID, m.MessageID, m.UserID, m.Body, m.Status, m.CreatedAt)
	return err
}

// UnreadMessages returns inbound messages not yet marked read, oldest
// first. Messages sent by selfID never count as unread.
func (db *DB) UnreadMessages(conversationID, selfID string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT conversation_id, message_id, user_id, body, status, created_at
		FROM messages
		WHERE conversation_id = ? AND user_id != ? AND status != ?
		ORDER BY created_at ASC`, conversationID, selfID, MessageRead)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ConversationID, &m.MessageID, &m.UserID, &m.Body, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkConversationRead flips every message in the conversation to read,
// records the newest message as the last-read reference and zeroes the
// unseen count, all in one transaction.
func (db *DB) MarkConversationRead(conversationID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		UPDATE messages SET status = ? WHERE conversation_id = ? AND status != ?`,
		MessageRead, conversationID, MessageRead); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE conversations SET
			unseen_count = 0,
			last_read_message_id = COALESCE(
				(SELECT message_id FROM messages
				 WHERE conversation_id = ? ORDER BY created_at DESC LIMIT 1),
				last_read_message_id)
		WHERE conversation_id = ?`,
		conversationID, conversationID); err != nil {
		return fmt.Errorf("reset unseen count: %w", err)
	}
	return tx.Commit()
}
