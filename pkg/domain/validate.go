package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// namePattern accepts letters, spaces, hyphens, and apostrophes.
	namePattern = regexp.MustCompile(`^[\p{L}](?:[\p{L} '-])*$`)
	// emailPattern matches local@domain with dot-separated alphanumeric
	// labels; hyphens are allowed inside a label but not at its edges.
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)+$`)
)

// FieldError reports a single draft field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError wraps the set of field errors for a rejected draft. It is
// raised before any network or storage access.
type ValidationError struct {
	Fields []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid user draft"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid user draft: " + strings.Join(parts, "; ")
}

// ValidateDraft checks a draft against the submission rules: name and
// surname need at least two characters drawn from letters, spaces, hyphens,
// or apostrophes; the email must be well-formed; company and job title need
// at least two characters. Fields are trimmed before checking. A nil slice
// means the draft is acceptable.
func ValidateDraft(d UserDraft) []FieldError {
	d = d.Trimmed()
	var errs []FieldError

	errs = appendNameError(errs, "name", d.Name)
	errs = appendNameError(errs, "surname", d.Surname)

	switch {
	case d.Email == "":
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	case !emailPattern.MatchString(d.Email):
		errs = append(errs, FieldError{Field: "email", Message: "email is not a valid address"})
	}

	errs = appendLengthError(errs, "company", d.Company)
	errs = appendLengthError(errs, "jobTitle", d.JobTitle)
	return errs
}

// CheckDraft is a convenience wrapper returning a ValidationError instead of
// the raw field list.
func CheckDraft(d UserDraft) error {
	if errs := ValidateDraft(d); len(errs) > 0 {
		return ValidationError{Fields: errs}
	}
	return nil
}

func appendNameError(errs []FieldError, field, value string) []FieldError {
	switch {
	case value == "":
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	case utf8.RuneCountInString(value) < 2:
		return append(errs, FieldError{Field: field, Message: field + " must be at least 2 characters"})
	case !namePattern.MatchString(value):
		return append(errs, FieldError{Field: field, Message: field + " may only contain letters, spaces, hyphens, and apostrophes"})
	}
	return errs
}

func appendLengthError(errs []FieldError, field, value string) []FieldError {
	switch {
	case value == "":
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	case utf8.RuneCountInString(value) < 2:
		return append(errs, FieldError{Field: field, Message: field + " must be at least 2 characters"})
	}
	return errs
}
