package sync

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rmacedo/pigeon/internal/remote"
	"github.com/rmacedo/pigeon/internal/store"
	"go.uber.org/zap"
)

// Diff is the membership change between a local roster and a remote
// snapshot. Both slices are sorted for deterministic ordering.
type Diff struct {
	Added   []string
	Removed []string
}

// Changed reports whether the diff carries any mutation.
func (d Diff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// Reconciler converts roster set-diffs into local mutations. It never
// touches the network: the caller hands it the already-fetched snapshot
// roster. Role or timestamp changes for users present on both sides are
// not applied; only membership changes are.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a reconciler over the local store.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, logger: logger}
}

// Apply computes added/removed by user-identifier set difference and
// applies both on the caller's transaction, so roster changes commit or
// roll back together with whatever else the caller is writing.
func (r *Reconciler) Apply(tx *sql.Tx, conversationID string, roster []remote.ParticipantSnapshot) (Diff, error) {
	local, err := r.db.GetParticipants(conversationID)
	if err != nil {
		return Diff{}, fmt.Errorf("load local roster: %w", err)
	}

	localSet := make(map[string]bool, len(local))
	for _, p := range local {
		localSet[p.UserID] = true
	}
	remoteSet := make(map[string]bool, len(roster))

	var diff Diff
	var addRows []store.Participant
	now := time.Now().UnixMilli()
	for _, p := range roster {
		remoteSet[p.UserID] = true
		if !localSet[p.UserID] {
			diff.Added = append(diff.Added, p.UserID)
			createdAt := p.CreatedAt
			if createdAt == 0 {
				createdAt = now
			}
			addRows = append(addRows, store.Participant{
				ConversationID: conversationID,
				UserID:         p.UserID,
				Role:           p.Role,
				CreatedAt:      createdAt,
			})
		}
	}
	for _, p := range local {
		if !remoteSet[p.UserID] {
			diff.Removed = append(diff.Removed, p.UserID)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)

	if len(addRows) > 0 {
		if err := store.InsertParticipantsTx(tx, addRows); err != nil {
			return Diff{}, fmt.Errorf("apply additions: %w", err)
		}
	}
	if len(diff.Removed) > 0 {
		if err := store.DeleteParticipantsTx(tx, conversationID, diff.Removed); err != nil {
			return Diff{}, fmt.Errorf("apply removals: %w", err)
		}
	}

	if diff.Changed() {
		r.logger.Info("roster reconciled",
			zap.String("conversation_id", conversationID),
			zap.Int("added", len(diff.Added)),
			zap.Int("removed", len(diff.Removed)))
	}
	return diff, nil
}

// Reconcile applies a roster diff in its own transaction, for callers
// with no surrounding writes.
func (r *Reconciler) Reconcile(conversationID string, roster []remote.ParticipantSnapshot) (Diff, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return Diff{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	diff, err := r.Apply(tx, conversationID, roster)
	if err != nil {
		return Diff{}, err
	}
	if err := tx.Commit(); err != nil {
		return Diff{}, fmt.Errorf("commit roster diff: %w", err)
	}
	return diff, nil
}
