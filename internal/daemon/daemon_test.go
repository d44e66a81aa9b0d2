package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rmacedo/pigeon/internal/bus"
	"github.com/rmacedo/pigeon/internal/config"
	"github.com/rmacedo/pigeon/internal/lifecycle"
	"github.com/rmacedo/pigeon/internal/lock"
	"github.com/rmacedo/pigeon/internal/outbox"
	"github.com/rmacedo/pigeon/internal/remote"
	"github.com/rmacedo/pigeon/internal/store"
	intsync "github.com/rmacedo/pigeon/internal/sync"
	"go.uber.org/zap"
)

// TestDaemonLifecycle composes the full component graph by hand, the
// way registerLifecycle wires it, against an in-process remote: a bus
// event confirms a conversation, marking it read queues receipts, and
// the drainer delivers them.
func TestDaemonLifecycle(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "pigeon-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	account := "me"
	accountDir := filepath.Join(tmpDir, account)
	if err := os.MkdirAll(accountDir, 0700); err != nil {
		t.Fatal(err)
	}

	// In-process remote serving one group and its members.
	var mu sync.Mutex
	var delivered []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations/c1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": remote.ConversationSnapshot{
			ConversationID: "c1",
			CreatorID:      "u1",
			Category:       store.CategoryGroup,
			Name:           "Team",
			CreatedAt:      1000,
			Participants: []remote.ParticipantSnapshot{
				{UserID: "me", CreatedAt: 1},
				{UserID: "u1", CreatedAt: 2},
			},
		}})
	})
	mux.HandleFunc("POST /users/fetch", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []remote.User{
			{UserID: "me", FullName: "Me"},
			{UserID: "u1", FullName: "Allan"},
		}})
	})
	mux.HandleFunc("GET /users/u1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": remote.User{UserID: "u1", FullName: "Allan"}})
	})
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			JobID string `json:"job_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		delivered = append(delivered, body.JobID)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Acquire lock.
	lk, err := lock.Acquire(accountDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	// Open store.
	db, err := store.Open(filepath.Join(accountDir, "pigeon.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	// Compose components.
	logger := zap.NewNop()
	b := bus.New()
	gw := remote.NewClient(srv.URL, time.Second)
	rec := intsync.NewReconciler(db, logger)
	res := intsync.NewResolver(db, gw, b, logger)
	queue := outbox.NewQueue(db, b, logger)
	engine := intsync.NewEngine(account, db, gw, rec, res, queue, b, logger)
	drainCfg := config.Drain{IntervalMS: 10, PruneSuperseded: true}
	drainer := outbox.NewDrainer(db, gw, b, drainCfg, logger)

	engine.Start(context.Background())
	defer engine.Stop()
	drainer.Start(context.Background())
	defer drainer.Stop()

	// A remote reference arrives on the bus; the engine confirms it.
	b.Notify(intsync.EventRemoteConversation,
		&intsync.ConversationEvent{ConversationID: "c1", UserID: "u1", Category: store.CategoryGroup})

	waitFor(t, "conversation confirmed", func() bool {
		c, err := db.GetConversation("c1")
		if err != nil {
			t.Fatal(err)
		}
		return c != nil && c.Status == lifecycle.Success
	})

	// Member profiles were resolved through the remote.
	u, err := db.GetUser("u1")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.FullName != "Allan" {
		t.Errorf("user = %+v, want resolved profile", u)
	}

	// An inbound message marked read flows through the outbox to the
	// remote.
	if err := db.UpsertMessage(&store.Message{
		ConversationID: "c1", MessageID: "m1", UserID: "u1",
		Status: store.MessageDelivered, CreatedAt: 2000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := engine.MarkRead("c1"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "receipt delivered", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	})

	jobs, err := db.PendingOutboxJobs(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Errorf("%d jobs still queued after delivery", len(jobs))
	}
}

// TestSecondInstanceRefused verifies the account lock keeps a second
// daemon off the same account directory.
func TestSecondInstanceRefused(t *testing.T) {
	dir := t.TempDir()

	lk, err := lock.Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	if _, err := lock.Acquire(dir); err == nil {
		t.Fatal("second acquire succeeded, want refusal")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s", what)
		case <-time.After(20 * time.Millisecond):
		}
	}
}
