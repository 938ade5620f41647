// Package parse decodes the family tree text format.
//
// Each logical line describes one person:
//
//	ID ; SEX ; FULLNAME [ ; FIELD ]*
//	FIELD := b:YEAR | d:YEAR | pm:ID | pf:ID | cn:NUMBER | m:ID | m:NUMBER:ID
//
// Fields are separated by ';' and the parts of a field by ':', both with
// optional surrounding whitespace.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bcowgill/d3-family-tree/core/errors"
)

// Key names the person property a field sets.
type Key string

// Field keys. The zero Key marks a blank field.
const (
	KeyBorn        Key = "born"
	KeyDied        Key = "died"
	KeyMother      Key = "mother"
	KeyFather      Key = "father"
	KeyChildNumber Key = "child_number"
	KeyMarried     Key = "married"
)

// Field is one decoded key:value[:value] token.
type Field struct {
	Key    Key
	Text   string // Person ID for mother, father and married
	Int    int    // Year or child number
	Number int    // Marriage number, 0 when not given
}

// IsBlank reports whether the field decoded to nothing.
func (f Field) IsBlank() bool {
	return f.Key == ""
}

var (
	fieldSep = regexp.MustCompile(`\s*:\s*`)
	digits   = regexp.MustCompile(`^\d+$`)
)

// DecodeField decodes a single field. line is the raw line, carried into errors.
func DecodeField(field, line string) (Field, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return Field{}, nil
	}

	parts := fieldSep.Split(field, -1)
	if len(parts) < 2 {
		return Field{}, errors.NewRecord(errors.ErrMalformedField, field, line, "")
	}

	arity := 2
	var f Field
	var err error
	switch parts[0] {
	case "b":
		f.Key = KeyBorn
		f.Int, err = year(parts[1], field, line)
	case "d":
		f.Key = KeyDied
		f.Int, err = year(parts[1], field, line)
	case "pm":
		f.Key = KeyMother
		f.Text, err = reference(parts[1], field, line, "")
	case "pf":
		f.Key = KeyFather
		f.Text, err = reference(parts[1], field, line, "")
	case "cn":
		f.Key = KeyChildNumber
		f.Int, err = positive(parts[1], field, line, "child number")
	case "m":
		f.Key = KeyMarried
		if len(parts) > arity {
			arity = 3
			f.Number, err = positive(parts[1], field, line, "parameter 1 marriage number")
			if err == nil {
				f.Text, err = reference(parts[2], field, line, "parameter 2")
			}
		} else {
			f.Text, err = reference(parts[1], field, line, "parameter 1")
		}
	default:
		return Field{}, errors.NewRecord(errors.ErrUnknownFieldKey, field, line,
			fmt.Sprintf("unknown key name %q", parts[0]))
	}
	if err != nil {
		return Field{}, err
	}

	if len(parts) > arity {
		return Field{}, errors.NewRecord(errors.ErrFieldArityExceeded, field, line,
			fmt.Sprintf("must have no more than %d values separated by a colon", arity))
	}
	return f, nil
}

func year(value, field, line string) (int, error) {
	if !digits.MatchString(value) {
		return 0, errors.NewRecord(errors.ErrInvalidNumber, field, line, "must be a year")
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.NewRecord(errors.ErrInvalidNumber, field, line, err.Error())
	}
	return n, nil
}

func positive(value, field, line, what string) (int, error) {
	if !digits.MatchString(value) {
		return 0, errors.NewRecord(errors.ErrInvalidNumber, field, line, what+" must be a positive number")
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.NewRecord(errors.ErrInvalidNumber, field, line, err.Error())
	}
	if n < 1 {
		return 0, errors.NewRecord(errors.ErrInvalidNumber, field, line, what+" must be a number >= 1")
	}
	return n, nil
}

func reference(value, field, line, param string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", errors.NewRecord(errors.ErrEmptyReference, field, line, param)
	}
	return value, nil
}
