package syncstore

import (
	"context"
	"net/http/httptest"
	"testing"

	"userdir/internal/core"
	"userdir/internal/httpapi"
	"userdir/internal/infra/persistence/memory"
	"userdir/pkg/client"
	"userdir/pkg/domain"
)

// The store is designed to run against the real HTTP client; this exercises
// the full stack in-process.
func TestStoreAgainstLiveServer(t *testing.T) {
	service := core.NewService(memory.NewStore(core.DefaultRulesEngine()))
	srv := httptest.NewServer(httpapi.NewHandler(service))
	t.Cleanup(srv.Close)

	store := New(client.New(srv.URL))
	ctx := context.Background()

	if err := store.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := store.Create(ctx, adaDraft); err != nil {
		t.Fatalf("create: %v", err)
	}
	users := store.Users()
	if len(users) != 1 || IsTemporaryID(users[0].ID) {
		t.Fatalf("expected confirmed entry, got %+v", users)
	}
	id := users[0].ID

	store.SetEditing(users[0])
	draft := domain.DraftOf(users[0])
	draft.Company = "IBM"
	if err := store.Update(ctx, id, draft); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := store.Users()[0].Company; got != "IBM" {
		t.Fatalf("update not reconciled, company %q", got)
	}

	// A second create with the same email is rejected by the server and
	// rolled back locally.
	if err := store.Create(ctx, adaDraft); err == nil {
		t.Fatal("expected duplicate email rejection")
	}
	if store.LastError() != "Email already exists" {
		t.Fatalf("unexpected error %q", store.LastError())
	}
	if users := store.Users(); len(users) != 1 {
		t.Fatalf("rollback must drop the speculative entry: %+v", users)
	}

	present, err := store.Refresh(ctx, id)
	if err != nil || !present {
		t.Fatalf("refresh: %v %v", present, err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if users := store.Users(); len(users) != 0 {
		t.Fatalf("expected empty collection, got %+v", users)
	}
}
