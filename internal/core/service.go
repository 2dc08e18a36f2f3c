// Package core exposes higher-level transactional CRUD operations for the
// user directory and the rules that guard them.
package core

import (
	"context"

	"userdir/pkg/domain"
)

// Service exposes transactional CRUD operations over a persistence backend.
type Service struct {
	store domain.PersistentStore
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore) *Service {
	return &Service{store: store}
}

// DefaultRulesEngine returns an engine loaded with the directory rules:
// required fields and unique email addresses.
func DefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(RequiredFieldsRule{})
	engine.Register(UniqueEmailRule{})
	return engine
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// ListUsers returns all directory entries in insertion order.
func (s *Service) ListUsers() []domain.User {
	return s.store.ListUsers()
}

// GetUser returns a single directory entry.
func (s *Service) GetUser(id string) (domain.User, bool) {
	return s.store.GetUser(id)
}

// CreateUser persists a new user built from the draft. Fields are trimmed
// before storage; the id is assigned by the persistence layer.
func (s *Service) CreateUser(ctx context.Context, draft domain.UserDraft) (domain.User, domain.Result, error) {
	var created domain.User
	trimmed := draft.Trimmed()
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var user domain.User
		trimmed.Apply(&user)
		var err error
		created, err = tx.CreateUser(user)
		return err
	})
	return created, res, err
}

// UpdateUser overwrites the descriptive fields of an existing user with the
// draft values.
func (s *Service) UpdateUser(ctx context.Context, id string, draft domain.UserDraft) (domain.User, domain.Result, error) {
	var updated domain.User
	trimmed := draft.Trimmed()
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateUser(id, func(u *domain.User) error {
			trimmed.Apply(u)
			return nil
		})
		return err
	})
	return updated, res, err
}

// DeleteUser removes a user record, returning the removed entry.
func (s *Service) DeleteUser(ctx context.Context, id string) (domain.User, domain.Result, error) {
	var deleted domain.User
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		user, ok := tx.FindUser(id)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityUser, ID: id}
		}
		deleted = user
		return tx.DeleteUser(id)
	})
	return deleted, res, err
}
