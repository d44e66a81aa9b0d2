package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/rmacedo/pigeon/internal/bus"
	"github.com/rmacedo/pigeon/internal/remote"
	"github.com/rmacedo/pigeon/internal/store"
	"go.uber.org/zap"
)

func TestResolveCacheHitSkipsNetwork(t *testing.T) {
	db := testDB(t)
	gw := newFakeGateway()
	r := NewResolver(db, gw, bus.New(), zap.NewNop())

	if err := db.UpsertUser(&store.User{UserID: "u1", FullName: "Alice"}); err != nil {
		t.Fatal(err)
	}

	u, err := r.Resolve(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.FullName != "Alice" {
		t.Fatalf("user = %+v", u)
	}
	if gw.userFetches["u1"] != 0 {
		t.Errorf("fetches = %d, want 0 for cache hit", gw.userFetches["u1"])
	}
}

func TestResolveMissFetchesAndCaches(t *testing.T) {
	db := testDB(t)
	gw := newFakeGateway()
	gw.users["u2"] = remote.User{UserID: "u2", FullName: "Bob"}
	r := NewResolver(db, gw, bus.New(), zap.NewNop())

	u, err := r.Resolve(context.Background(), "u2")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.FullName != "Bob" {
		t.Fatalf("user = %+v", u)
	}
	if gw.userFetches["u2"] != 1 {
		t.Errorf("fetches = %d, want 1", gw.userFetches["u2"])
	}

	// Second resolve is served from the cache.
	if _, err := r.Resolve(context.Background(), "u2"); err != nil {
		t.Fatal(err)
	}
	if gw.userFetches["u2"] != 1 {
		t.Errorf("fetches = %d after second resolve, want still 1", gw.userFetches["u2"])
	}
}

func TestResolveUnknownUser(t *testing.T) {
	db := testDB(t)
	r := NewResolver(db, newFakeGateway(), bus.New(), zap.NewNop())

	u, err := r.Resolve(context.Background(), "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Errorf("user = %+v, want nil for unknown", u)
	}
}

func TestResolveFetchFailure(t *testing.T) {
	db := testDB(t)
	gw := newFakeGateway()
	gw.fetchUserErr = errors.New("gateway down")
	r := NewResolver(db, gw, bus.New(), zap.NewNop())

	if _, err := r.Resolve(context.Background(), "u1"); err == nil {
		t.Error("expected error when gateway fails")
	}
	// Nothing was cached on failure.
	if u, _ := db.GetUser("u1"); u != nil {
		t.Errorf("cached %+v despite failed fetch", u)
	}
}

func TestResolveManyDeduplicatesAndSkipsCached(t *testing.T) {
	db := testDB(t)
	gw := newFakeGateway()
	gw.users["u3"] = remote.User{UserID: "u3"}
	r := NewResolver(db, gw, bus.New(), zap.NewNop())

	if err := db.UpsertUser(&store.User{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}

	if err := r.ResolveMany(context.Background(), []string{"u1", "u3", "u3", "u1"}); err != nil {
		t.Fatal(err)
	}
	if gw.bulkFetches["u3"] != 1 {
		t.Errorf("u3 fetched %d times, want 1", gw.bulkFetches["u3"])
	}
	if gw.bulkFetches["u1"] != 0 {
		t.Errorf("cached u1 fetched %d times, want 0", gw.bulkFetches["u1"])
	}
	if u, _ := db.GetUser("u3"); u == nil {
		t.Error("u3 not cached after bulk resolve")
	}
}

func TestResolveManyAllCachedNoCall(t *testing.T) {
	db := testDB(t)
	gw := newFakeGateway()
	r := NewResolver(db, gw, bus.New(), zap.NewNop())

	if err := db.UpsertUsers([]store.User{{UserID: "u1"}, {UserID: "u2"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.ResolveMany(context.Background(), []string{"u1", "u2"}); err != nil {
		t.Fatal(err)
	}
	if len(gw.bulkFetches) != 0 {
		t.Errorf("bulk fetches = %v, want none", gw.bulkFetches)
	}
}

func TestResolvePublishesUserUpdated(t *testing.T) {
	db := testDB(t)
	gw := newFakeGateway()
	gw.users["u5"] = remote.User{UserID: "u5"}
	b := bus.New()
	ch, unsub := b.Subscribe(bus.UserUpdated, 4)
	defer unsub()

	r := NewResolver(db, gw, b, zap.NewNop())
	if _, err := r.Resolve(context.Background(), "u5"); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Payload != "u5" {
			t.Errorf("payload = %v, want u5", evt.Payload)
		}
	default:
		t.Error("no user.updated event published")
	}
}
