package sync

import (
	"context"
	"fmt"

	"github.com/rmacedo/pigeon/internal/bus"
	"github.com/rmacedo/pigeon/internal/remote"
	"github.com/rmacedo/pigeon/internal/store"
	"go.uber.org/zap"
)

// Resolver lazily fetches and caches user profiles referenced by
// rosters. Cached profiles are returned without a network call and with
// no staleness check; profiles only refresh through explicit bulk
// events.
type Resolver struct {
	db     *store.DB
	gw     remote.Gateway
	bus    *bus.Bus
	logger *zap.Logger
}

// NewResolver creates a resolver over the local cache and gateway.
func NewResolver(db *store.DB, gw remote.Gateway, b *bus.Bus, logger *zap.Logger) *Resolver {
	return &Resolver{db: db, gw: gw, bus: b, logger: logger}
}

// Resolve returns the profile for userID, fetching and caching it on a
// miss. (nil, nil) means the remote does not know the user either; the
// caller decides whether to retry later.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*store.User, error) {
	cached, err := r.db.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("read user cache: %w", err)
	}
	if cached != nil {
		return cached, nil
	}

	fetched, err := r.gw.FetchUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user %q: %w", userID, err)
	}
	if fetched == nil {
		return nil, nil
	}

	rec := fetched.Record()
	if err := r.db.UpsertUser(&rec); err != nil {
		return nil, fmt.Errorf("cache user %q: %w", userID, err)
	}
	r.bus.Notify(bus.UserUpdated, userID)
	return &rec, nil
}

// ResolveMany fetches the subset of ids not already cached in one bulk
// call, deduplicating repeats within the call. Already-cached ids cost
// no network traffic.
func (r *Resolver) ResolveMany(ctx context.Context, ids []string) error {
	seen := make(map[string]bool, len(ids))
	var missing []string
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		cached, err := r.db.GetUser(id)
		if err != nil {
			return fmt.Errorf("read user cache: %w", err)
		}
		if cached == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	fetched, err := r.gw.FetchUsers(ctx, missing)
	if err != nil {
		return fmt.Errorf("fetch %d users: %w", len(missing), err)
	}
	if len(fetched) == 0 {
		return nil
	}

	records := make([]store.User, 0, len(fetched))
	for _, u := range fetched {
		records = append(records, u.Record())
	}
	if err := r.db.UpsertUsers(records); err != nil {
		return fmt.Errorf("cache users: %w", err)
	}
	for _, u := range records {
		r.bus.Notify(bus.UserUpdated, u.UserID)
	}
	return nil
}
