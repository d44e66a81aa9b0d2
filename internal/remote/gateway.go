// Package remote defines the authoritative-source gateway the sync core
// consumes, plus its HTTP implementation.
package remote

import (
	"context"

	"github.com/rmacedo/pigeon/internal/store"
)

// ConversationSnapshot is the authoritative representation of a
// conversation and its roster at fetch time.
type ConversationSnapshot struct {
	ConversationID string                `json:"conversation_id"`
	CreatorID      string                `json:"creator_id"`
	Category       string                `json:"category"`
	Name           string                `json:"name"`
	IconURL        string                `json:"icon_url"`
	Announcement   string                `json:"announcement"`
	CreatedAt      int64                 `json:"created_at"`
	MuteUntil      int64                 `json:"mute_until"`
	Participants   []ParticipantSnapshot `json:"participants"`
}

// ParticipantSnapshot is one roster entry within a snapshot.
type ParticipantSnapshot struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

// User is a remote profile as reported by the gateway.
type User struct {
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	AppID     string `json:"app_id"`
}

// Record converts the wire profile to its store row.
func (u User) Record() store.User {
	return store.User{UserID: u.UserID, FullName: u.FullName, AvatarURL: u.AvatarURL, AppID: u.AppID}
}

// Gateway is the remote source of truth. Fetches return (nil, nil) when
// the resource does not exist; every call is bounded by its context so a
// hung remote cannot stall per-conversation serialization.
type Gateway interface {
	FetchConversation(ctx context.Context, id string) (*ConversationSnapshot, error)
	FetchUser(ctx context.Context, id string) (*User, error)
	FetchUsers(ctx context.Context, ids []string) ([]User, error)
	SubmitJob(ctx context.Context, job *store.OutboxJob) error
	CreateGroupConversation(ctx context.Context, name string, userIDs []string) (*ConversationSnapshot, error)
	LeaveConversation(ctx context.Context, id string) error
}
