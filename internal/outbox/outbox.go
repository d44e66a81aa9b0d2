// Package outbox is the durable queue decoupling user-visible actions
// from network delivery: enqueue is a purely local write, and a drain
// loop delivers jobs to the remote gateway with retry accounting.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rmacedo/pigeon/internal/bus"
	"github.com/rmacedo/pigeon/internal/store"
	"go.uber.org/zap"
)

// Job action tags.
const (
	ActionAckMessageRead = "ACK_MESSAGE_READ"
)

// Delivery priorities; higher drains first.
const (
	PriorityNormal = 1
	PriorityHigh   = 5
)

// ReadReceipt is the payload of an ActionAckMessageRead job.
type ReadReceipt struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// Refs are the optional target references carried by a job.
type Refs struct {
	ConversationID string
	UserID         string
	OrderID        string
	// ResendTargetID names an earlier undelivered job this one
	// supersedes.
	ResendTargetID string
}

// Queue appends jobs to the durable outbox. It never touches the
// network, so enqueueing is safe on latency-sensitive interaction paths
// and succeeds even while the remote is unreachable.
type Queue struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewQueue creates an outbox queue over the local store.
func NewQueue(db *store.DB, b *bus.Bus, logger *zap.Logger) *Queue {
	return &Queue{db: db, bus: b, logger: logger}
}

// Enqueue durably appends one job with a fresh identifier and run count
// zero, returning the job identifier.
func (q *Queue) Enqueue(action string, payload any, priority int, refs Refs) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	job := &store.OutboxJob{
		JobID:          uuid.NewString(),
		Action:         action,
		CreatedAt:      time.Now().UnixMilli(),
		Priority:       priority,
		Payload:        data,
		ConversationID: refs.ConversationID,
		UserID:         refs.UserID,
		OrderID:        refs.OrderID,
		ResendTargetID: refs.ResendTargetID,
	}
	if err := q.db.AppendOutboxJob(job); err != nil {
		return "", fmt.Errorf("append job: %w", err)
	}

	q.bus.Notify(bus.OutboxQueued, job.JobID)
	return job.JobID, nil
}

// EnqueueReadReceipt queues a high-priority read receipt for one
// message. resendTarget optionally names the receipt this one makes
// redundant.
func (q *Queue) EnqueueReadReceipt(conversationID, messageID, resendTarget string) (string, error) {
	return q.Enqueue(ActionAckMessageRead,
		ReadReceipt{MessageID: messageID, Status: store.MessageRead},
		PriorityHigh,
		Refs{ConversationID: conversationID, ResendTargetID: resendTarget})
}
