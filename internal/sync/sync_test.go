package sync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rmacedo/pigeon/internal/remote"
	"github.com/rmacedo/pigeon/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeGateway is an in-memory Gateway that records fetch counts.
type fakeGateway struct {
	conversations map[string]*remote.ConversationSnapshot
	users         map[string]remote.User

	fetchConvErr  error
	fetchUserErr  error
	convFetches   map[string]int
	userFetches   map[string]int
	bulkFetches   map[string]int
	groupSnapshot *remote.ConversationSnapshot
	left          []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		conversations: make(map[string]*remote.ConversationSnapshot),
		users:         make(map[string]remote.User),
		convFetches:   make(map[string]int),
		userFetches:   make(map[string]int),
		bulkFetches:   make(map[string]int),
	}
}

func (g *fakeGateway) FetchConversation(_ context.Context, id string) (*remote.ConversationSnapshot, error) {
	g.convFetches[id]++
	if g.fetchConvErr != nil {
		return nil, g.fetchConvErr
	}
	return g.conversations[id], nil
}

func (g *fakeGateway) FetchUser(_ context.Context, id string) (*remote.User, error) {
	g.userFetches[id]++
	if g.fetchUserErr != nil {
		return nil, g.fetchUserErr
	}
	u, ok := g.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (g *fakeGateway) FetchUsers(_ context.Context, ids []string) ([]remote.User, error) {
	if g.fetchUserErr != nil {
		return nil, g.fetchUserErr
	}
	var out []remote.User
	for _, id := range ids {
		g.bulkFetches[id]++
		if u, ok := g.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (g *fakeGateway) SubmitJob(context.Context, *store.OutboxJob) error { return nil }

func (g *fakeGateway) CreateGroupConversation(context.Context, string, []string) (*remote.ConversationSnapshot, error) {
	return g.groupSnapshot, nil
}

func (g *fakeGateway) LeaveConversation(_ context.Context, id string) error {
	g.left = append(g.left, id)
	return nil
}
