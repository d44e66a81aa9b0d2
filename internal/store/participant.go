package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GetParticipants returns the roster for a conversation.
func (db *DB) GetParticipants(conversationID string) ([]Participant, error) {
	rows, err := db.Query(`
		SELECT conversation_id, user_id, role, created_at
		FROM participants WHERE conversation_id = ?
		ORDER BY created_at ASC, user_id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Role, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertParticipants adds roster rows in one transaction. Existing rows
// for the same (conversation, user) pair are left untouched.
func (db *DB) InsertParticipants(ps []Participant) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := InsertParticipantsTx(tx, ps); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertParticipantsTx adds roster rows on the caller's transaction.
func InsertParticipantsTx(tx *sql.Tx, ps []Participant) error {
	for _, p := range ps {
		createdAt := p.CreatedAt
		if createdAt == 0 {
			createdAt = time.Now().UnixMilli()
		}
		if _, err := tx.Exec(`
			INSERT INTO participants (conversation_id, user_id, role, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(conversation_id, user_id) DO NOTHING`,
			p.ConversationID, p.UserID, p.Role, createdAt); err != nil {
			return fmt.Errorf("insert participant %q: %w", p.UserID, err)
		}
	}
	return nil
}

// DeleteParticipantsTx removes the given users from a conversation's
// roster on the caller's transaction.
func DeleteParticipantsTx(tx *sql.Tx, conversationID string, userIDs []string) error {
	for _, id := range userIDs {
		if _, err := tx.Exec(`
			DELETE FROM participants WHERE conversation_id = ? AND user_id = ?`,
			conversationID, id); err != nil {
			return fmt.Errorf("delete participant %q: %w", id, err)
		}
	}
	return nil
}
