// Package domain defines the user-directory entities, draft validation,
// rule evaluation primitives, and persistence contracts shared by the
// server and client layers.
package domain

import (
	"fmt"
	"strings"
)

// EntityType identifies the type of record stored in the directory.
type EntityType string

// EntityUser identifies a user record. The directory holds a single entity
// type; the identifier is kept explicit so Change records and violations
// stay self-describing.
const EntityUser EntityType = "user"

// User is a directory entry. The ID is server-assigned; all other fields
// are caller-supplied.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	JobTitle string `json:"jobTitle"`
}

// UserDraft carries the mutable fields of a User, as submitted by a form
// or API caller. It is a User minus the server-assigned identifier.
type UserDraft struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	JobTitle string `json:"jobTitle"`
}

// Trimmed returns a copy of the draft with surrounding whitespace removed
// from every field.
func (d UserDraft) Trimmed() UserDraft {
	return UserDraft{
		Name:     strings.TrimSpace(d.Name),
		Surname:  strings.TrimSpace(d.Surname),
		Email:    strings.TrimSpace(d.Email),
		Company:  strings.TrimSpace(d.Company),
		JobTitle: strings.TrimSpace(d.JobTitle),
	}
}

// Apply overwrites the descriptive fields of u with the draft values,
// leaving the identifier untouched.
func (d UserDraft) Apply(u *User) {
	u.Name = d.Name
	u.Surname = d.Surname
	u.Email = d.Email
	u.Company = d.Company
	u.JobTitle = d.JobTitle
}

// DraftOf extracts the mutable fields of a User back into a draft.
func DraftOf(u User) UserDraft {
	return UserDraft{
		Name:     u.Name,
		Surname:  u.Surname,
		Email:    u.Email,
		Company:  u.Company,
		JobTitle: u.JobTitle,
	}
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured per transaction.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change records one mutation observed within a transaction; rules evaluate
// the full set of changes before commit.
type Change struct {
	Entity EntityType
	Action Action
	Before *User
	After  *User
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// BlockingMessage returns the message of the first blocking violation, or
// an empty string when the result carries none.
func (r Result) BlockingMessage() string {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return v.Message
		}
	}
	return ""
}

// RuleViolationError signals a transaction blocked by failed rules.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	if msg := e.Result.BlockingMessage(); msg != "" {
		return msg
	}
	return "transaction blocked by rules"
}

// ErrNotFound is returned when a referenced entity does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
