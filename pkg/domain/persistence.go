package domain

import "context"

// Transaction exposes the directory operations that a persistence
// implementation must support within an atomic scope.
type Transaction interface {
	CreateUser(User) (User, error)
	UpdateUser(id string, mutator func(*User) error) (User, error)
	DeleteUser(id string) error
	FindUser(id string) (User, bool)
	ListUsers() []User
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListUsers() []User
	FindUser(id string) (User, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetUser(id string) (User, bool)
	ListUsers() []User
}
