package bus

import "time"

// Event kinds published by the sync core. Observers subscribe by prefix,
// e.g. "conversation." catches every conversation notification.
const (
	// ConversationChanged fires after conversation fields were committed.
	ConversationChanged = "conversation.changed"
	// ParticipantsChanged fires after a roster diff was committed.
	ParticipantsChanged = "conversation.participants_changed"
	// CurrentConversation fires when the active conversation switches.
	CurrentConversation = "conversation.current"

	UserUpdated = "user.updated"

	OutboxQueued        = "outbox.queued"
	OutboxDelivered     = "outbox.delivered"
	OutboxAttemptFailed = "outbox.attempt_failed"
)

// Event is a committed-change notification. Events are published only
// after the underlying store transaction has committed, never mid-flight.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
