package core

import (
	"context"

	"userdir/pkg/domain"
)

// UniqueEmailRule blocks commits that would leave two directory entries with
// the same email address. The view already reflects the staged changes, so
// the written user itself is excluded by id.
type UniqueEmailRule struct{}

// Name identifies the rule in violations.
func (UniqueEmailRule) Name() string { return "unique-email" }

// Evaluate checks every created or updated user against the staged state.
func (r UniqueEmailRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Action == domain.ActionDelete || change.After == nil {
			continue
		}
		written := *change.After
		if written.Email == "" {
			continue // required-fields reports blanks
		}
		for _, other := range view.ListUsers() {
			if other.ID == written.ID || other.Email != written.Email {
				continue
			}
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  "Email already exists",
				Entity:   domain.EntityUser,
				EntityID: written.ID,
			})
			break
		}
	}
	return result, nil
}
