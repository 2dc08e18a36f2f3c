package syncstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"userdir/pkg/domain"
)

// fakeRemote scripts server behavior per operation and counts calls.
type fakeRemote struct {
	mu sync.Mutex

	listFn   func(ctx context.Context) ([]domain.User, error)
	createFn func(ctx context.Context, draft domain.UserDraft) (domain.User, error)
	updateFn func(ctx context.Context, id string, draft domain.UserDraft) (domain.User, error)
	deleteFn func(ctx context.Context, id string) (domain.User, error)

	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls int
}

func (f *fakeRemote) ListUsers(ctx context.Context) ([]domain.User, error) {
	f.mu.Lock()
	f.listCalls++
	fn := f.listFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (f *fakeRemote) CreateUser(ctx context.Context, draft domain.UserDraft) (domain.User, error) {
	f.mu.Lock()
	f.createCalls++
	fn := f.createFn
	f.mu.Unlock()
	if fn == nil {
		return domain.User{}, errors.New("unexpected create")
	}
	return fn(ctx, draft)
}

func (f *fakeRemote) UpdateUser(ctx context.Context, id string, draft domain.UserDraft) (domain.User, error) {
	f.mu.Lock()
	f.updateCalls++
	fn := f.updateFn
	f.mu.Unlock()
	if fn == nil {
		return domain.User{}, errors.New("unexpected update")
	}
	return fn(ctx, id, draft)
}

func (f *fakeRemote) DeleteUser(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	f.deleteCalls++
	fn := f.deleteFn
	f.mu.Unlock()
	if fn == nil {
		return domain.User{}, errors.New("unexpected delete")
	}
	return fn(ctx, id)
}

func (f *fakeRemote) calls() (list, create, update, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.createCalls, f.updateCalls, f.deleteCalls
}

var adaDraft = domain.UserDraft{Name: "Ada", Surname: "Lovelace", Email: "ada@example.com", Company: "Analytical Engines", JobTitle: "Mathematician"}

func adaUser(id string) domain.User {
	u := domain.User{ID: id}
	adaDraft.Apply(&u)
	return u
}

func sameIDSet(t *testing.T, got, want []domain.User) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("size mismatch: got %d want %d (%+v vs %+v)", len(got), len(want), got, want)
	}
	ids := make(map[string]struct{}, len(want))
	for _, u := range want {
		ids[u.ID] = struct{}{}
	}
	for _, u := range got {
		if _, ok := ids[u.ID]; !ok {
			t.Fatalf("unexpected id %q in %+v", u.ID, got)
		}
	}
}

func TestCreateRoundTripReplacesTemporaryID(t *testing.T) {
	remote := &fakeRemote{
		createFn: func(_ context.Context, draft domain.UserDraft) (domain.User, error) {
			u := domain.User{ID: "u-1"}
			draft.Trimmed().Apply(&u)
			return u, nil
		},
	}
	store := New(remote)

	if err := store.Create(context.Background(), adaDraft); err != nil {
		t.Fatalf("create: %v", err)
	}
	users := store.Users()
	if len(users) != 1 || users[0].ID != "u-1" {
		t.Fatalf("expected single confirmed entry, got %+v", users)
	}
	for _, u := range users {
		if IsTemporaryID(u.ID) {
			t.Fatalf("temporary id survived settlement: %+v", u)
		}
	}
	if store.LastError() != "" {
		t.Fatalf("unexpected error %q", store.LastError())
	}
}

func TestCreateAppliesOptimisticallyBeforeSettlement(t *testing.T) {
	release := make(chan struct{})
	remote := &fakeRemote{
		createFn: func(context.Context, domain.UserDraft) (domain.User, error) {
			<-release
			return adaUser("u-1"), nil
		},
	}
	store := New(remote)

	done := make(chan error, 1)
	go func() { done <- store.Create(context.Background(), adaDraft) }()

	waitFor(t, func() bool {
		users := store.Users()
		return len(users) == 1 && IsTemporaryID(users[0].ID)
	})
	if !store.Saving() {
		t.Fatal("expected saving flag while create in flight")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.Saving() {
		t.Fatal("saving flag must clear after settlement")
	}
}

func TestSequenceOfSuccessfulMutations(t *testing.T) {
	remote := &fakeRemote{
		createFn: func(_ context.Context, draft domain.UserDraft) (domain.User, error) {
			u := domain.User{ID: "u-1"}
			draft.Trimmed().Apply(&u)
			return u, nil
		},
		updateFn: func(_ context.Context, id string, draft domain.UserDraft) (domain.User, error) {
			u := domain.User{ID: id}
			draft.Trimmed().Apply(&u)
			return u, nil
		},
		deleteFn: func(_ context.Context, id string) (domain.User, error) {
			return domain.User{ID: id}, nil
		},
	}
	store := New(remote)
	ctx := context.Background()

	if err := store.Create(ctx, adaDraft); err != nil {
		t.Fatalf("create: %v", err)
	}
	store.SetEditing(store.Users()[0])
	draft := adaDraft
	draft.Company = "IBM"
	if err := store.Update(ctx, "u-1", draft); err != nil {
		t.Fatalf("update: %v", err)
	}
	users := store.Users()
	if len(users) != 1 || users[0].Company != "IBM" {
		t.Fatalf("update not reconciled: %+v", users)
	}
	if err := store.Delete(ctx, "u-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if users := store.Users(); len(users) != 0 {
		t.Fatalf("expected empty collection, got %+v", users)
	}
}

func TestCreateFailureRestoresCollection(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{adaUser("u-1")}, nil
		},
		createFn: func(context.Context, domain.UserDraft) (domain.User, error) {
			return domain.User{}, errors.New("boom")
		},
	}
	store := New(remote)
	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := store.Users()

	if err := store.Create(ctx, domain.UserDraft{Name: "Grace", Surname: "Hopper", Email: "grace@example.com", Company: "Navy", JobTitle: "Rear Admiral"}); err == nil {
		t.Fatal("expected create failure")
	}
	sameIDSet(t, store.Users(), before)
	if store.LastError() != "boom" {
		t.Fatalf("unexpected error %q", store.LastError())
	}
}

func TestUpdateFailureRestoresCollectionAndEditing(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{adaUser("u-1")}, nil
		},
		updateFn: func(context.Context, string, domain.UserDraft) (domain.User, error) {
			return domain.User{}, errors.New("conflict")
		},
	}
	store := New(remote)
	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	store.SetEditing(store.Users()[0])

	draft := adaDraft
	draft.Company = "IBM"
	if err := store.Update(ctx, "u-1", draft); err == nil {
		t.Fatal("expected update failure")
	}

	users := store.Users()
	if len(users) != 1 || users[0].Company != "Analytical Engines" {
		t.Fatalf("original fields must be restored: %+v", users)
	}
	if store.LastError() != "conflict" {
		t.Fatalf("unexpected error %q", store.LastError())
	}
	editing, ok := store.Editing()
	if !ok || editing.ID != "u-1" {
		t.Fatalf("editing reference must be restored, got %+v %v", editing, ok)
	}
}

func TestUpdateWithoutEditingIsNoOp(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{adaUser("u-1")}, nil
		},
	}
	store := New(remote)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := store.Update(context.Background(), "u-1", adaDraft); err != nil {
		t.Fatalf("no-op update must not fail: %v", err)
	}
	if _, _, updates, _ := remote.calls(); updates != 0 {
		t.Fatalf("no remote update expected, got %d", updates)
	}

	// Editing a different entry also suppresses the update.
	store.SetEditing(adaUser("u-2"))
	if err := store.Update(context.Background(), "u-1", adaDraft); err != nil {
		t.Fatalf("mismatched editing update must not fail: %v", err)
	}
	if _, _, updates, _ := remote.calls(); updates != 0 {
		t.Fatalf("no remote update expected, got %d", updates)
	}
}

func TestDeleteFailureKeepsEntity(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{adaUser("u-1"), adaUser("u-2")}, nil
		},
		deleteFn: func(context.Context, string) (domain.User, error) {
			return domain.User{}, errors.New("server unavailable")
		},
	}
	store := New(remote)
	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := store.Users()

	if err := store.Delete(ctx, "u-1"); err == nil {
		t.Fatal("expected delete failure")
	}
	sameIDSet(t, store.Users(), before)
	if store.LastError() != "server unavailable" {
		t.Fatalf("unexpected error %q", store.LastError())
	}
}

func TestDeleteAbsentTargetIsNoOp(t *testing.T) {
	remote := &fakeRemote{}
	store := New(remote)
	if err := store.Delete(context.Background(), "u-404"); err != nil {
		t.Fatalf("absent delete must not fail: %v", err)
	}
	if _, _, _, deletes := remote.calls(); deletes != 0 {
		t.Fatalf("no remote delete expected, got %d", deletes)
	}
}

func TestDuplicateDeleteSuppressed(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{adaUser("u-1")}, nil
		},
		deleteFn: func(context.Context, string) (domain.User, error) {
			close(started)
			<-release
			return domain.User{ID: "u-1"}, nil
		},
	}
	store := New(remote)
	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- store.Delete(ctx, "u-1") }()
	<-started

	// Second delete while the first is in flight is silently dropped.
	if err := store.Delete(ctx, "u-1"); err != nil {
		t.Fatalf("suppressed delete must not fail: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, _, deletes := remote.calls(); deletes != 1 {
		t.Fatalf("expected exactly one remote delete, got %d", deletes)
	}
}

func TestUpdateSuppressedWhileDeleteInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{adaUser("u-1")}, nil
		},
		deleteFn: func(context.Context, string) (domain.User, error) {
			close(started)
			<-release
			return domain.User{ID: "u-1"}, nil
		},
	}
	store := New(remote)
	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	store.SetEditing(store.Users()[0])

	done := make(chan error, 1)
	go func() { done <- store.Delete(ctx, "u-1") }()
	<-started

	if err := store.Update(ctx, "u-1", adaDraft); err != nil {
		t.Fatalf("suppressed update must not fail: %v", err)
	}
	if _, _, updates, _ := remote.calls(); updates != 0 {
		t.Fatalf("no remote update expected, got %d", updates)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestLoadReplacesCollection(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{adaUser("u-1"), adaUser("u-2")}, nil
		},
	}
	store := New(remote)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	users := store.Users()
	if len(users) != 2 || users[0].ID != "u-1" || users[1].ID != "u-2" {
		t.Fatalf("unexpected collection %+v", users)
	}
	if store.Loading() {
		t.Fatal("loading flag must clear")
	}
}

func TestLoadFailureKeepsCollection(t *testing.T) {
	failing := false
	remote := &fakeRemote{}
	remote.listFn = func(context.Context) ([]domain.User, error) {
		if failing {
			return nil, errors.New("network error")
		}
		return []domain.User{adaUser("u-1")}, nil
	}
	store := New(remote)
	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	failing = true
	if err := store.Load(ctx); err == nil {
		t.Fatal("expected load failure")
	}
	if users := store.Users(); len(users) != 1 {
		t.Fatalf("collection must be unchanged on failure: %+v", users)
	}
	if store.LastError() != "network error" {
		t.Fatalf("unexpected error %q", store.LastError())
	}
}

func TestConcurrentLoadSuppressed(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			close(started)
			<-release
			return nil, nil
		},
	}
	store := New(remote)

	done := make(chan error, 1)
	go func() { done <- store.Load(context.Background()) }()
	<-started

	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("suppressed load must not fail: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("load: %v", err)
	}
	if lists, _, _, _ := remote.calls(); lists != 1 {
		t.Fatalf("expected exactly one remote list, got %d", lists)
	}
}

func TestRefreshReportsPresence(t *testing.T) {
	users := []domain.User{adaUser("u-1")}
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return users, nil
		},
	}
	store := New(remote)
	ctx := context.Background()

	present, err := store.Refresh(ctx, "u-1")
	if err != nil || !present {
		t.Fatalf("expected u-1 present: %v %v", present, err)
	}

	users = nil
	present, err = store.Refresh(ctx, "u-1")
	if err != nil || present {
		t.Fatalf("expected u-1 gone after server removal: %v %v", present, err)
	}
}

func TestSetEditingClearsStaleError(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return nil, errors.New("network error")
		},
	}
	store := New(remote)
	_ = store.Load(context.Background())
	if store.LastError() == "" {
		t.Fatal("expected recorded error")
	}

	store.SetEditing(adaUser("u-1"))
	if store.LastError() != "" {
		t.Fatal("SetEditing must clear stale error")
	}

	store.ClearEditing()
	if _, ok := store.Editing(); ok {
		t.Fatal("expected editing reference cleared")
	}
}

func TestClearError(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context) ([]domain.User, error) {
			return nil, errors.New("boom")
		},
	}
	store := New(remote)
	_ = store.Load(context.Background())
	store.ClearError()
	if store.LastError() != "" {
		t.Fatal("expected cleared error")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}
