// Package syncstore keeps a local view of the user directory synchronized
// with a remote server using optimistic mutations: changes apply locally
// first, then reconcile with the server response or roll back on failure.
package syncstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"userdir/pkg/domain"
)

// TempIDPrefix marks locally created entries that the server has not
// confirmed yet. Server-assigned identifiers never carry it.
const TempIDPrefix = "tmp-"

// IsTemporaryID reports whether id denotes an unconfirmed local entry.
func IsTemporaryID(id string) bool { return strings.HasPrefix(id, TempIDPrefix) }

// Remote is the directory server contract the store synchronizes against.
// *client.Client satisfies it.
type Remote interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, draft domain.UserDraft) (domain.User, error)
	UpdateUser(ctx context.Context, id string, draft domain.UserDraft) (domain.User, error)
	DeleteUser(ctx context.Context, id string) (domain.User, error)
}

type opKind string

const (
	opFetch  opKind = "fetch"
	opCreate opKind = "create"
	opUpdate opKind = "update"
	opDelete opKind = "delete"
)

// opKey identifies one in-flight operation. Fetch has no target; create keys
// on the temporary id, update and delete on the server id.
type opKey struct {
	kind   opKind
	target string
}

func (k opKey) mutating() bool { return k.kind != opFetch }

// Store holds the local collection plus in-flight bookkeeping. All methods
// are safe for concurrent use; the lock is released across network calls so
// operations on different targets interleave freely.
type Store struct {
	mu     sync.Mutex
	remote Remote

	users     []domain.User
	pending   map[opKey]struct{}
	rollbacks map[opKey][]domain.User
	editing   *domain.User
	lastErr   string
	loading   bool
	tempSeq   int
}

// New returns an empty store synchronizing against remote.
func New(remote Remote) *Store {
	return &Store{
		remote:    remote,
		pending:   make(map[opKey]struct{}),
		rollbacks: make(map[opKey][]domain.User),
	}
}

// Users returns a copy of the current collection in insertion order.
func (s *Store) Users() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUsers(s.users)
}

// Editing returns the entry currently being edited, if any.
func (s *Store) Editing() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing == nil {
		return domain.User{}, false
	}
	return *s.editing, true
}

// LastError returns the most recent operation failure message, empty when
// the last settled operation succeeded or the error was cleared.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Loading reports whether a bulk load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Saving reports whether any mutating operation is in flight.
func (s *Store) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.pending {
		if key.mutating() {
			return true
		}
	}
	return false
}

// SetEditing marks an entry as being edited and clears any stale error.
func (s *Store) SetEditing(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.editing = &u
	s.lastErr = ""
}

// ClearEditing drops the editing reference and clears any stale error.
func (s *Store) ClearEditing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = nil
	s.lastErr = ""
}

// ClearError clears the last-error value only.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
}

// Load replaces the collection with the server's. A load already in flight
// suppresses the call. On failure the collection is left unchanged and the
// error is recorded.
func (s *Store) Load(ctx context.Context) error {
	key := opKey{kind: opFetch}

	s.mu.Lock()
	if _, inFlight := s.pending[key]; inFlight {
		s.mu.Unlock()
		return nil
	}
	s.pending[key] = struct{}{}
	s.loading = true
	s.mu.Unlock()

	users, err := s.remote.ListUsers(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	s.loading = false
	if err != nil {
		s.lastErr = err.Error()
		return err
	}
	s.users = cloneUsers(users)
	s.lastErr = ""
	return nil
}

// Create appends a speculative entry under a fresh temporary id and submits
// the draft. The server entity fully replaces the temporary one on success;
// failure restores the prior collection.
func (s *Store) Create(ctx context.Context, draft domain.UserDraft) error {
	s.mu.Lock()
	s.tempSeq++
	tempID := fmt.Sprintf("%s%d", TempIDPrefix, s.tempSeq)
	key := opKey{kind: opCreate, target: tempID}

	optimistic := domain.User{ID: tempID}
	draft.Trimmed().Apply(&optimistic)

	s.rollbacks[key] = cloneUsers(s.users)
	s.pending[key] = struct{}{}
	s.users = append(s.users, optimistic)
	s.mu.Unlock()

	created, err := s.remote.CreateUser(ctx, draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.users = s.rollbacks[key]
		s.lastErr = err.Error()
		s.settle(key)
		return err
	}
	replaced := false
	for i := range s.users {
		if s.users[i].ID == tempID {
			s.users[i] = created
			replaced = true
			break
		}
	}
	if !replaced {
		s.users = append(s.users, created)
	}
	s.lastErr = ""
	s.settle(key)
	return nil
}

// Update merges the draft into the entry being edited and submits it. It is
// a no-op unless the editing reference matches id and no mutation on id is
// in flight. Failure restores both the collection and the editing reference
// so the caller can retry from the same context.
func (s *Store) Update(ctx context.Context, id string, draft domain.UserDraft) error {
	key := opKey{kind: opUpdate, target: id}

	s.mu.Lock()
	if s.editing == nil || s.editing.ID != id {
		s.mu.Unlock()
		return nil
	}
	if s.hasPendingMutation(id) {
		s.mu.Unlock()
		return nil
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	priorEditing := *s.editing

	merged := s.users[idx]
	draft.Trimmed().Apply(&merged)

	s.rollbacks[key] = cloneUsers(s.users)
	s.pending[key] = struct{}{}
	s.users[idx] = merged
	s.editing = nil
	s.mu.Unlock()

	updated, err := s.remote.UpdateUser(ctx, id, draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.users = s.rollbacks[key]
		s.editing = &priorEditing
		s.lastErr = err.Error()
		s.settle(key)
		return err
	}
	if i := s.indexOf(id); i >= 0 {
		s.users[i] = updated
	}
	s.lastErr = ""
	s.settle(key)
	return nil
}

// Delete removes the entry optimistically and submits the deletion. Absent
// targets and targets with a mutation already in flight are no-ops. Failure
// restores the saved collection; set membership is guaranteed, order is not
// part of the contract.
func (s *Store) Delete(ctx context.Context, id string) error {
	key := opKey{kind: opDelete, target: id}

	s.mu.Lock()
	if s.hasPendingMutation(id) {
		s.mu.Unlock()
		return nil
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.rollbacks[key] = cloneUsers(s.users)
	s.pending[key] = struct{}{}
	s.users = append(s.users[:idx:idx], s.users[idx+1:]...)
	s.mu.Unlock()

	_, err := s.remote.DeleteUser(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.users = s.rollbacks[key]
		s.lastErr = err.Error()
		s.settle(key)
		return err
	}
	s.lastErr = ""
	s.settle(key)
	return nil
}

// Refresh re-synchronizes from the server and reports whether id is still
// present afterwards.
func (s *Store) Refresh(ctx context.Context, id string) (bool, error) {
	if err := s.Load(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0, nil
}

// settle removes the operation's bookkeeping. Callers hold the lock.
func (s *Store) settle(key opKey) {
	delete(s.pending, key)
	delete(s.rollbacks, key)
}

// hasPendingMutation reports whether any mutating operation targets id.
// Callers hold the lock.
func (s *Store) hasPendingMutation(id string) bool {
	for key := range s.pending {
		if key.mutating() && key.target == id {
			return true
		}
	}
	return false
}

// indexOf returns the collection index of id, or -1. Callers hold the lock.
func (s *Store) indexOf(id string) int {
	for i := range s.users {
		if s.users[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneUsers(in []domain.User) []domain.User {
	out := make([]domain.User, len(in))
	copy(out, in)
	return out
}
