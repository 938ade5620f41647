package ir

import (
	"errors"
	"fmt"
)

// validateRecordFn is injectable for testing error type handling.
var validateRecordFn = ValidateRecord

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// newValidationError creates a new ValidationError.
func newValidationError(path, message string) error {
	return &ValidationError{Path: path, Message: message}
}

// ValidateTree validates a Tree and returns all validation errors.
// Every reference must either name a record in the tree or be listed as unresolved.
func ValidateTree(t *Tree) []error {
	var errs []error

	if t.ID == "" {
		errs = append(errs, newValidationError("tree", "ID is required"))
	}

	if t.Version == "" {
		errs = append(errs, newValidationError("tree", "Version is required"))
	}

	seen := make(map[string]int, len(t.People))
	for i, r := range t.People {
		recPath := fmt.Sprintf("tree.people[%d]", i)
		if first, dup := seen[r.ID]; dup && r.ID != "" {
			errs = append(errs, newValidationError(recPath+".id",
				fmt.Sprintf("duplicate ID %q (first at people[%d])", r.ID, first)))
		} else {
			seen[r.ID] = i
		}

		for _, err := range validateRecordFn(r) {
			var ve *ValidationError
			if errors.As(err, &ve) {
				errs = append(errs, newValidationError(
					fmt.Sprintf("%s.%s", recPath, ve.Path), ve.Message))
			} else {
				errs = append(errs, newValidationError(recPath, err.Error()))
			}
		}
	}

	unresolved := make(map[string]bool, len(t.Unresolved))
	for i, id := range t.Unresolved {
		unresolved[id] = true
		if _, ok := seen[id]; ok {
			errs = append(errs, newValidationError(fmt.Sprintf("tree.unresolved[%d]", i),
				fmt.Sprintf("ID %q is declared in the tree", id)))
		}
	}

	for i, r := range t.People {
		for field, ids := range references(r) {
			for _, id := range ids {
				if _, ok := seen[id]; ok || unresolved[id] {
					continue
				}
				errs = append(errs, newValidationError(fmt.Sprintf("tree.people[%d].%s", i, field),
					fmt.Sprintf("reference %q is neither declared nor listed as unresolved", id)))
			}
		}
	}

	return errs
}

// ValidateRecord validates a single Record in isolation.
func ValidateRecord(r *Record) []error {
	var errs []error

	if r.ID == "" {
		errs = append(errs, newValidationError("id", "ID is required"))
	}

	switch r.Sex {
	case "M", "F":
	case "X":
		if len(r.Married.Filled()) > 0 {
			errs = append(errs, newValidationError("married", "person of unknown sex cannot marry"))
		}
		if len(r.Children.Filled()) > 0 {
			errs = append(errs, newValidationError("children", "person of unknown sex cannot have children"))
		}
	default:
		errs = append(errs, newValidationError("sex", fmt.Sprintf("invalid sex: %q", r.Sex)))
	}

	if r.FullName == "" {
		errs = append(errs, newValidationError("full_name", "full name is required"))
	}
	if len(r.GivenNames) == 0 {
		errs = append(errs, newValidationError("given_names", "at least one given name is required"))
	}
	if r.Born != nil && *r.Born < 0 {
		errs = append(errs, newValidationError("born", "year must not be negative"))
	}
	if r.Died != nil && *r.Died < 0 {
		errs = append(errs, newValidationError("died", "year must not be negative"))
	}
	if r.ChildNumber < 0 {
		errs = append(errs, newValidationError("child_number", "child number must be >= 1"))
	}

	return errs
}

// references returns every person ID a record refers to, keyed by field.
func references(r *Record) map[string][]string {
	refs := map[string][]string{}
	if r.Father != "" {
		refs["father"] = []string{r.Father}
	}
	if r.Mother != "" {
		refs["mother"] = []string{r.Mother}
	}
	if ids := r.Married.Filled(); len(ids) > 0 {
		refs["married"] = ids
	}
	if ids := r.Children.Filled(); len(ids) > 0 {
		refs["children"] = ids
	}
	return refs
}
