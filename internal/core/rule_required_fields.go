package core

import (
	"context"
	"strings"

	"userdir/pkg/domain"
)

// requiredFields lists the mandatory draft fields in the order they are
// reported to callers.
var requiredFields = []struct {
	label string
	value func(domain.User) string
}{
	{"name", func(u domain.User) string { return u.Name }},
	{"surname", func(u domain.User) string { return u.Surname }},
	{"email", func(u domain.User) string { return u.Email }},
	{"company", func(u domain.User) string { return u.Company }},
	{"jobTitle", func(u domain.User) string { return u.JobTitle }},
}

// RequiredFieldsRule blocks commits that would store a user with a missing
// or blank descriptive field.
type RequiredFieldsRule struct{}

// Name identifies the rule in violations.
func (RequiredFieldsRule) Name() string { return "required-fields" }

// Evaluate inspects created and updated users for empty fields.
func (r RequiredFieldsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Action == domain.ActionDelete || change.After == nil {
			continue
		}
		for _, field := range requiredFields {
			if strings.TrimSpace(field.value(*change.After)) != "" {
				continue
			}
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  "Missing required field: " + field.label,
				Entity:   domain.EntityUser,
				EntityID: change.After.ID,
			})
		}
	}
	return result, nil
}
