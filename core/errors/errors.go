// Package errors provides the error kinds and error types used when decoding family tree records.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Structural errors: the line does not conform to the grammar.
var (
	// ErrMissingRequiredFields indicates a line without the ID; Sex; Name prefix.
	ErrMissingRequiredFields = errors.New("must contain ID; Sex; Name")
	// ErrMalformedField indicates a non-empty field without a key:value pair.
	ErrMalformedField = errors.New("field must have at least a key:value")
	// ErrFieldArityExceeded indicates a field with too many colon separated parts.
	ErrFieldArityExceeded = errors.New("field has too many values")
	// ErrUnknownFieldKey indicates a field tag outside the grammar.
	ErrUnknownFieldKey = errors.New("unknown field key")
)

// Value errors: a field is well formed but its value is not acceptable.
var (
	ErrEmptyID        = errors.New("ID must not be an empty string")
	ErrInvalidSex     = errors.New("sex must be M, F or X")
	ErrEmptyName      = errors.New("name must not be an empty string")
	ErrEmptyGivenName = errors.New("name must contain a given name")
	// ErrInvalidNumber indicates a year or number that is not a decimal integer in range.
	ErrInvalidNumber = errors.New("invalid number")
	// ErrEmptyReference indicates a blank person ID in a reference field.
	ErrEmptyReference = errors.New("person ID must not be an empty string")
)

// Identity errors.
var (
	// ErrDuplicateID indicates a second record claiming an ID that already exists.
	ErrDuplicateID = errors.New("person ID already exists")
	// ErrUnresolvedReference indicates IDs mentioned but never declared by the end of a run.
	ErrUnresolvedReference = errors.New("unresolved person reference")
)

// Semantic errors.
var (
	ErrUnknownSexCannotMarry  = errors.New("person of unknown sex cannot marry")
	ErrUnknownSexCannotParent = errors.New("person of unknown sex cannot have children")
	ErrSlotAlreadyFilled      = errors.New("slot already filled")
	// ErrProtectedPropertyWrite indicates a write to a record that has been sealed.
	ErrProtectedPropertyWrite = errors.New("protected property write")
	ErrBornMustBeFirst        = errors.New("born field must be first field after full name (if present)")
)

// General sentinels used by the I/O and storage layers.
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// Category groups error kinds by how the input went wrong.
type Category string

// Error categories.
const (
	CategoryStructural Category = "structural"
	CategoryValue      Category = "value"
	CategoryIdentity   Category = "identity"
	CategorySemantic   Category = "semantic"
	CategoryOther      Category = "other"
)

var categories = map[error]Category{
	ErrMissingRequiredFields:  CategoryStructural,
	ErrMalformedField:         CategoryStructural,
	ErrFieldArityExceeded:     CategoryStructural,
	ErrUnknownFieldKey:        CategoryStructural,
	ErrEmptyID:                CategoryValue,
	ErrInvalidSex:             CategoryValue,
	ErrEmptyName:              CategoryValue,
	ErrEmptyGivenName:         CategoryValue,
	ErrInvalidNumber:          CategoryValue,
	ErrEmptyReference:         CategoryValue,
	ErrDuplicateID:            CategoryIdentity,
	ErrUnresolvedReference:    CategoryIdentity,
	ErrUnknownSexCannotMarry:  CategorySemantic,
	ErrUnknownSexCannotParent: CategorySemantic,
	ErrSlotAlreadyFilled:      CategorySemantic,
	ErrProtectedPropertyWrite: CategorySemantic,
	ErrBornMustBeFirst:        CategorySemantic,
}

// CategoryOf returns the category of a known kind found in err's chain.
func CategoryOf(err error) Category {
	for kind, cat := range categories {
		if errors.Is(err, kind) {
			return cat
		}
	}
	return CategoryOther
}

// RecordError describes a failure while decoding or mutating one person record.
type RecordError struct {
	Kind     error  // One of the sentinel kinds above
	Field    string // Offending field text, if any
	Line     string // Raw input line, if any
	Source   string // Provenance of the record (label: line)
	PersonID string // ID of the person, once constructed
	Message  string // Extra detail
}

func (e *RecordError) Error() string {
	var sb strings.Builder
	sb.WriteString("person information")
	if e.Field != "" {
		fmt.Fprintf(&sb, " field (%s)", e.Field)
	}
	sb.WriteString(": ")
	if e.Kind != nil {
		sb.WriteString(e.Kind.Error())
	} else {
		sb.WriteString("invalid record")
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.PersonID != "" {
		fmt.Fprintf(&sb, " [id %s]", e.PersonID)
	}
	switch {
	case e.Source != "":
		fmt.Fprintf(&sb, " from %s", e.Source)
	case e.Line != "":
		fmt.Fprintf(&sb, " for line: %s", e.Line)
	}
	return sb.String()
}

func (e *RecordError) Unwrap() error {
	if e.Kind != nil {
		return e.Kind
	}
	return ErrInvalidInput
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "run", "person")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Helper functions for creating common errors

// NewRecord creates a RecordError of the given kind for a raw line.
func NewRecord(kind error, field, line, message string) *RecordError {
	return &RecordError{
		Kind:    kind,
		Field:   field,
		Line:    line,
		Message: message,
	}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// Annotate fills in the line, source and person ID of a RecordError found in err's chain
// when they are not already set. Other errors are returned unchanged.
func Annotate(err error, line, source, personID string) error {
	var re *RecordError
	if !errors.As(err, &re) {
		return err
	}
	if re.Line == "" {
		re.Line = line
	}
	if re.Source == "" {
		re.Source = source
	}
	if re.PersonID == "" {
		re.PersonID = personID
	}
	return err
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
