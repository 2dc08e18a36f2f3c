// Package memory provides an in-memory implementation of the directory
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"userdir/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// User aliases domain.User for in-memory persistence operations.
	User = domain.User
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	users map[string]User
	order []string // insertion-order user IDs
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Users map[string]User `json:"users"`
	Order []string        `json:"order"`
}

func newMemoryState() memoryState {
	return memoryState{users: make(map[string]User)}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		users: make(map[string]User, len(s.users)),
		order: append([]string(nil), s.order...),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	snap := Snapshot{
		Users: make(map[string]User, len(state.users)),
		Order: append([]string(nil), state.order...),
	}
	for k, v := range state.users {
		snap.Users[k] = v
	}
	return snap
}

func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range snap.Users {
		state.users[k] = v
	}
	// Keep only order entries that still resolve, then append any users the
	// order list missed so older snapshots stay loadable.
	for _, id := range snap.Order {
		if _, ok := state.users[id]; ok {
			state.order = append(state.order, id)
		}
	}
	known := make(map[string]struct{}, len(state.order))
	for _, id := range state.order {
		known[id] = struct{}{}
	}
	for id := range state.users {
		if _, ok := known[id]; !ok {
			state.order = append(state.order, id)
		}
	}
	return state
}

// Store holds directory state guarded by a mutex, evaluating rules at
// transaction commit.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
}

// NewStore constructs an empty in-memory store with the given rules engine
// (nil disables rule evaluation).
func NewStore(engine *RulesEngine) *Store {
	return &Store{state: newMemoryState(), engine: engine}
}

// newID generates a random 128-bit identifier formatted as UUID v4.
func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Errorf("memory store id generation: %w", err))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// RunInTransaction applies fn against a staged clone of the state, evaluates
// rules over the accumulated changes, and commits unless a blocking
// violation or error occurred.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{store: s, state: s.state.clone()}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := &stateView{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View runs fn against a read-only view of the current state.
func (s *Store) View(_ context.Context, fn func(view TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&stateView{state: &s.state})
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[id]
	return u, ok
}

// ListUsers returns all users in insertion order.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listInOrder(&s.state)
}

// ExportState returns a deep snapshot of the current state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the current state with the snapshot contents.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snap)
}

func listInOrder(state *memoryState) []User {
	out := make([]User, 0, len(state.order))
	for _, id := range state.order {
		if u, ok := state.users[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

// stateView adapts a memoryState to the read-only view contracts.
type stateView struct {
	state *memoryState
}

func (v *stateView) ListUsers() []User {
	return listInOrder(v.state)
}

func (v *stateView) FindUser(id string) (User, bool) {
	u, ok := v.state.users[id]
	return u, ok
}

// transaction stages mutations against a cloned state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
}

var _ Transaction = (*transaction)(nil)

func (t *transaction) CreateUser(user User) (User, error) {
	if user.ID == "" {
		user.ID = t.store.newID()
	}
	if _, exists := t.state.users[user.ID]; exists {
		return User{}, fmt.Errorf("user %s already exists", user.ID)
	}
	t.state.users[user.ID] = user
	t.state.order = append(t.state.order, user.ID)
	t.changes = append(t.changes, Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: &user})
	return user, nil
}

func (t *transaction) UpdateUser(id string, mutator func(*User) error) (User, error) {
	current, ok := t.state.users[id]
	if !ok {
		return User{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: id}
	}
	before := current
	updated := current
	if err := mutator(&updated); err != nil {
		return User{}, err
	}
	updated.ID = id
	t.state.users[id] = updated
	t.changes = append(t.changes, Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: &before, After: &updated})
	return updated, nil
}

func (t *transaction) DeleteUser(id string) error {
	current, ok := t.state.users[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityUser, ID: id}
	}
	delete(t.state.users, id)
	for i, oid := range t.state.order {
		if oid == id {
			t.state.order = append(t.state.order[:i], t.state.order[i+1:]...)
			break
		}
	}
	t.changes = append(t.changes, Change{Entity: domain.EntityUser, Action: domain.ActionDelete, Before: &current})
	return nil
}

func (t *transaction) FindUser(id string) (User, bool) {
	u, ok := t.state.users[id]
	return u, ok
}

func (t *transaction) ListUsers() []User {
	return listInOrder(&t.state)
}
