package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GetUser returns a cached profile, or nil if unknown.
func (db *DB) GetUser(id string) (*User, error) {
	var u User
	err := db.QueryRow(`SELECT user_id, full_name, avatar_url, app_id FROM users WHERE user_id = ?`, id).
		Scan(&u.UserID, &u.FullName, &u.AvatarURL, &u.AppID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser inserts or refreshes a profile.
func (db *DB) UpsertUser(u *User) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO users (user_id, full_name, avatar_url, app_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			app_id = excluded.app_id,
			updated_at = excluded.updated_at`,
		u.UserID, u.FullName, u.AvatarURL, u.AppID, now)
	return err
}

// UpsertUsers inserts or refreshes multiple profiles in one transaction.
func (db *DB) UpsertUsers(users []User) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, u := range users {
		if _, err := tx.Exec(`
			INSERT INTO users (user_id, full_name, avatar_url, app_id, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				full_name = excluded.full_name,
				avatar_url = excluded.avatar_url,
				app_id = excluded.app_id,
				updated_at = excluded.updated_at`,
			u.UserID, u.FullName, u.AvatarURL, u.AppID, now); err != nil {
			return fmt.Errorf("upsert user %q: %w", u.UserID, err)
		}
	}
	return tx.Commit()
}
