// Package sync keeps the local conversation cache consistent with the
// remote source of truth: it drives the conversation lifecycle,
// reconciles participant rosters and resolves referenced user profiles.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rmacedo/pigeon/internal/bus"
	"github.com/rmacedo/pigeon/internal/identity"
	"github.com/rmacedo/pigeon/internal/lifecycle"
	"github.com/rmacedo/pigeon/internal/lock"
	"github.com/rmacedo/pigeon/internal/outbox"
	"github.com/rmacedo/pigeon/internal/remote"
	"github.com/rmacedo/pigeon/internal/store"
	"go.uber.org/zap"
)

// EventRemoteConversation is the bus kind the transport layer publishes
// when a remote event references a conversation. Payload is
// *ConversationEvent.
const EventRemoteConversation = "remote.conversation"

// ConversationEvent is a remote-reported conversation reference.
type ConversationEvent struct {
	ConversationID string
	// UserID is the remote-reported creator or counterpart hint used
	// for best-effort fields before the first snapshot arrives.
	UserID   string
	Category string
}

// Engine orchestrates conversation synchronization. The signed-in
// account is injected explicitly; the engine keeps no ambient global
// state. All work for one conversation identifier is serialized through
// a keyed lock while distinct conversations proceed in parallel.
type Engine struct {
	account string
	db      *store.DB
	gw      remote.Gateway
	rec     *Reconciler
	res     *Resolver
	queue   *outbox.Queue
	bus     *bus.Bus
	keys    *lock.Keyed
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewEngine creates a sync engine acting as account.
func NewEngine(account string, db *store.DB, gw remote.Gateway, rec *Reconciler, res *Resolver, queue *outbox.Queue, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		account: account,
		db:      db,
		gw:      gw,
		rec:     rec,
		res:     res,
		queue:   queue,
		bus:     b,
		keys:    lock.NewKeyed(),
		logger:  logger,
	}
}

// Start subscribes to remote conversation events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe(EventRemoteConversation, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				ev, ok := evt.Payload.(*ConversationEvent)
				if !ok {
					continue
				}
				if err := e.SyncConversation(ctx, ev); err != nil {
					e.logger.Error("failed to sync conversation",
						zap.Error(err), zap.String("conversation_id", ev.ConversationID))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// SyncConversation reacts to a remote-reported conversation reference.
// A reference to the account itself is meaningless and short-circuits.
// Unknown conversations are created in Start and refreshed immediately;
// conversations still in Start are refreshed; confirmed ones are left
// alone (use RefreshConversation to force an update).
func (e *Engine) SyncConversation(ctx context.Context, ev *ConversationEvent) error {
	if ev.ConversationID == e.account {
		return nil
	}

	e.keys.Lock(ev.ConversationID)
	defer e.keys.Unlock(ev.ConversationID)

	conv, err := e.db.GetConversation(ev.ConversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	if conv == nil {
		if err := e.db.InsertConversation(&store.Conversation{
			ConversationID: ev.ConversationID,
			OwnerID:        ev.UserID,
			Category:       ev.Category,
			CreatedAt:      time.Now().UnixMilli(),
			Status:         lifecycle.Start,
		}); err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		return e.refreshLocked(ctx, ev.ConversationID)
	}
	if conv.Status == lifecycle.Start {
		return e.refreshLocked(ctx, ev.ConversationID)
	}
	return nil
}

// RefreshConversation fetches the authoritative snapshot and applies it.
// An absent snapshot or a failed fetch leaves local state untouched, so
// the call is idempotent and safe to retry.
func (e *Engine) RefreshConversation(ctx context.Context, conversationID string) error {
	e.keys.Lock(conversationID)
	defer e.keys.Unlock(conversationID)
	return e.refreshLocked(ctx, conversationID)
}

func (e *Engine) refreshLocked(ctx context.Context, conversationID string) error {
	snap, err := e.gw.FetchConversation(ctx, conversationID)
	if err != nil {
		e.logger.Warn("snapshot fetch failed, keeping local state",
			zap.Error(err), zap.String("conversation_id", conversationID))
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}

	conv, err := e.db.GetConversation(conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		conv = &store.Conversation{
			ConversationID: conversationID,
			CreatedAt:      snap.CreatedAt,
			Status:         lifecycle.Start,
		}
		if err := e.db.InsertConversation(conv); err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
	}

	member := false
	owner := snap.CreatorID
	for _, p := range snap.Participants {
		if p.UserID == e.account {
			member = true
		} else if snap.Category == store.CategoryContact {
			// The counterpart is the owner of a direct conversation
			// regardless of which side created it.
			owner = p.UserID
		}
	}

	next, err := lifecycle.Advance(conv.Status, member)
	if err != nil {
		return fmt.Errorf("advance lifecycle: %w", err)
	}

	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := store.ApplySnapshot(tx, &store.Conversation{
		ConversationID: conversationID,
		OwnerID:        owner,
		Category:       snap.Category,
		Name:           snap.Name,
		IconURL:        snap.IconURL,
		Announcement:   snap.Announcement,
		CreatedAt:      snap.CreatedAt,
		Status:         next,
		MuteUntil:      snap.MuteUntil,
	}); err != nil {
		return fmt.Errorf("apply snapshot: %w", err)
	}

	diff, err := e.rec.Apply(tx, conversationID, snap.Participants)
	if err != nil {
		return fmt.Errorf("reconcile roster: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refresh: %w", err)
	}

	e.bus.Notify(bus.ConversationChanged, conversationID)
	if diff.Changed() {
		e.bus.Notify(bus.ParticipantsChanged, conversationID)
	}

	// Profile resolution happens after the commit; a failed fetch here
	// never invalidates the refreshed conversation.
	if len(diff.Added) > 0 {
		if err := e.res.ResolveMany(ctx, diff.Added); err != nil {
			e.logger.Warn("failed to resolve added participants",
				zap.Error(err), zap.String("conversation_id", conversationID))
		}
	}
	if _, err := e.res.Resolve(ctx, owner); err != nil {
		e.logger.Warn("failed to resolve owner",
			zap.Error(err), zap.String("user_id", owner))
	}
	return nil
}

// CreateDirectConversation creates (or surfaces) the direct conversation
// with peer. The identifier is derived locally, so no round trip is
// needed and both sides converge on the same record. A peer equal to
// the account is a no-op.
func (e *Engine) CreateDirectConversation(peer *store.User) (string, error) {
	if peer.UserID == e.account {
		return "", nil
	}

	conversationID := identity.Derive(e.account, peer.UserID)
	e.keys.Lock(conversationID)
	defer e.keys.Unlock(conversationID)

	conv, err := e.db.GetConversation(conversationID)
	if err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		now := time.Now().UnixMilli()
		if err := e.db.InsertConversation(&store.Conversation{
			ConversationID: conversationID,
			OwnerID:        peer.UserID,
			Category:       store.CategoryContact,
			CreatedAt:      now,
			Status:         lifecycle.Start,
		}); err != nil {
			return "", fmt.Errorf("create conversation: %w", err)
		}
		if err := e.db.InsertParticipants([]store.Participant{
			{ConversationID: conversationID, UserID: e.account, CreatedAt: now},
			{ConversationID: conversationID, UserID: peer.UserID, CreatedAt: now},
		}); err != nil {
			return "", fmt.Errorf("seed roster: %w", err)
		}
		if err := e.db.UpsertUser(peer); err != nil {
			return "", fmt.Errorf("cache peer: %w", err)
		}
		e.bus.Notify(bus.ConversationChanged, conversationID)
	}

	e.bus.Notify(bus.CurrentConversation, conversationID)
	return conversationID, nil
}

// CreateGroupConversation asks the remote to create a group and caches
// the returned snapshot as a confirmed conversation.
func (e *Engine) CreateGroupConversation(ctx context.Context, name string, userIDs []string) (string, error) {
	snap, err := e.gw.CreateGroupConversation(ctx, name, userIDs)
	if err != nil {
		return "", fmt.Errorf("create group: %w", err)
	}

	e.keys.Lock(snap.ConversationID)
	defer e.keys.Unlock(snap.ConversationID)

	if err := e.db.InsertConversation(&store.Conversation{
		ConversationID: snap.ConversationID,
		OwnerID:        snap.CreatorID,
		Category:       snap.Category,
		Name:           snap.Name,
		IconURL:        snap.IconURL,
		Announcement:   snap.Announcement,
		CreatedAt:      snap.CreatedAt,
		Status:         lifecycle.Success,
		MuteUntil:      snap.MuteUntil,
	}); err != nil {
		return "", fmt.Errorf("cache group: %w", err)
	}

	rows := make([]store.Participant, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		rows = append(rows, store.Participant{
			ConversationID: snap.ConversationID,
			UserID:         p.UserID,
			Role:           p.Role,
			CreatedAt:      p.CreatedAt,
		})
	}
	if err := e.db.InsertParticipants(rows); err != nil {
		return "", fmt.Errorf("cache roster: %w", err)
	}

	e.bus.Notify(bus.ConversationChanged, snap.ConversationID)
	e.bus.Notify(bus.ParticipantsChanged, snap.ConversationID)
	e.bus.Notify(bus.CurrentConversation, snap.ConversationID)

	if err := e.res.ResolveMany(ctx, userIDs); err != nil {
		e.logger.Warn("failed to resolve group members", zap.Error(err))
	}
	return snap.ConversationID, nil
}

// MarkRead enqueues one read receipt per unread inbound message, then
// marks the conversation read locally. The receipts go through the
// outbox, so this never blocks on the network: delivery happens later
// via the drain loop. Each receipt supersedes the previous one queued
// in the same pass.
func (e *Engine) MarkRead(conversationID string) error {
	e.keys.Lock(conversationID)
	defer e.keys.Unlock(conversationID)

	unread, err := e.db.UnreadMessages(conversationID, e.account)
	if err != nil {
		return fmt.Errorf("load unread: %w", err)
	}

	var prev string
	for _, m := range unread {
		jobID, err := e.queue.EnqueueReadReceipt(conversationID, m.MessageID, prev)
		if err != nil {
			return fmt.Errorf("enqueue receipt for %q: %w", m.MessageID, err)
		}
		prev = jobID
	}

	if err := e.db.MarkConversationRead(conversationID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	e.bus.Notify(bus.ConversationChanged, conversationID)
	return nil
}

// ClearConversation removes a conversation and everything it owns. Only
// ever user-initiated.
func (e *Engine) ClearConversation(conversationID string) error {
	e.keys.Lock(conversationID)
	defer e.keys.Unlock(conversationID)

	if err := e.db.DeleteConversation(conversationID); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	e.bus.Notify(bus.ConversationChanged, conversationID)
	return nil
}

// SetPinned pins or unpins a conversation.
func (e *Engine) SetPinned(conversationID string, pinned bool) error {
	var pinTime int64
	if pinned {
		pinTime = time.Now().UnixMilli()
	}
	if err := e.db.SetPinTime(conversationID, pinTime); err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	e.bus.Notify(bus.ConversationChanged, conversationID)
	return nil
}

// SaveDraft persists composer text for a conversation.
func (e *Engine) SaveDraft(conversationID, draft string) error {
	if err := e.db.SaveDraft(conversationID, draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LeaveConversation exits a group on the remote side, then refreshes so
// the local record reflects the departure. The refresh failing is not
// fatal: the next sync will converge.
func (e *Engine) LeaveConversation(ctx context.Context, conversationID string) error {
	if err := e.gw.LeaveConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("leave conversation: %w", err)
	}
	if err := e.RefreshConversation(ctx, conversationID); err != nil {
		e.logger.Warn("post-leave refresh failed",
			zap.Error(err), zap.String("conversation_id", conversationID))
	}
	return nil
}

// SetCurrentConversation tells observers which conversation is active.
func (e *Engine) SetCurrentConversation(conversationID string) {
	e.bus.Notify(bus.CurrentConversation, conversationID)
}
