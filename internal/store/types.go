package store

import "github.com/rmacedo/pigeon/internal/lifecycle"

// Conversation categories.
const (
	CategoryContact = "CONTACT"
	CategoryGroup   = "GROUP"
)

// Message statuses.
const (
	MessageDelivered = "DELIVERED"
	MessageRead      = "READ"
)

// Conversation is a locally cached conversation. The identifier is
// immutable once created; for CONTACT conversations it is derived from
// the two participant identifiers. Nullable timestamps (PinTime,
// MuteUntil) use 0 for absent.
type Conversation struct {
	ConversationID    string
	OwnerID           string
	Category          string
	Name              string
	IconURL           string
	Announcement      string
	CreatedAt         int64
	PinTime           int64
	LastMessageID     string
	LastReadMessageID string
	UnseenCount       int
	Status            lifecycle.State
	Draft             string
	MuteUntil         int64
}

// Participant is one roster row, owned by its conversation.
type Participant struct {
	ConversationID string
	UserID         string
	Role           string
	CreatedAt      int64
}

// User is a cached profile, shared across conversations.
type User struct {
	UserID    string
	FullName  string
	AvatarURL string
	AppID     string
}

// Message is the minimal message record the core keeps: enough to drive
// read receipts and unseen counts.
type Message struct {
	ConversationID string
	MessageID      string
	UserID         string
	Body           string
	Status         string
	CreatedAt      int64
}

// OutboxJob is one pending status-update job. RunCount only increases;
// a job leaves the queue only after confirmed remote acceptance.
type OutboxJob struct {
	JobID          string
	Action         string
	CreatedAt      int64
	Priority       int
	Payload        []byte
	ConversationID string
	UserID         string
	OrderID        string
	ResendTargetID string
	RunCount       int
}
