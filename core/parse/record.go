package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bcowgill/d3-family-tree/core/errors"
	"github.com/bcowgill/d3-family-tree/core/person"
	"github.com/bcowgill/d3-family-tree/core/registry"
)

var (
	recordSep = regexp.MustCompile(`\s*;\s*`)
	// bornField spots a birth year anywhere among the optional fields.
	bornField = regexp.MustCompile(`(?:^|;)\s*b\s*:\s*\d+`)
)

// Source formats the provenance of a line: "label: line", or just the line.
func Source(label, line string) string {
	if label == "" {
		return line
	}
	return label + ": " + line
}

// DecodeRecord decodes one line into a sealed Person registered in reg.
//
// Registry changes are staged and only committed when the whole line decodes,
// so a rejected line leaves reg untouched.
func DecodeRecord(reg *registry.Registry, line, label string) (*person.Person, error) {
	txn := reg.Begin()
	p, err := decodeRecord(txn, line, label)
	if err != nil {
		txn.Discard()
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, errors.Annotate(err, line, p.Source(), p.ID())
	}
	return p, nil
}

func decodeRecord(reg registry.Registrar, line, label string) (*person.Person, error) {
	source := Source(label, line)
	fields := recordSep.Split(strings.TrimSpace(line), -1)
	if len(fields) < 3 {
		return nil, &errors.RecordError{
			Kind:   errors.ErrMissingRequiredFields,
			Line:   line,
			Source: source,
		}
	}

	id, sexText, fullName := fields[0], fields[1], fields[2]
	rest := fields[3:]

	if strings.TrimSpace(id) == "" {
		return nil, &errors.RecordError{Kind: errors.ErrEmptyID, Line: line, Source: source}
	}
	sex, err := person.ParseSex(sexText)
	if err != nil {
		return nil, errors.Annotate(err, line, source, id)
	}
	if strings.TrimSpace(fullName) == "" {
		return nil, &errors.RecordError{
			Kind:     errors.ErrEmptyName,
			Line:     line,
			Source:   source,
			PersonID: id,
			Message:  fmt.Sprintf("name (%s) must not be an empty string", fullName),
		}
	}

	opts := person.Options{
		ID:       id,
		Sex:      sex,
		FullName: fullName,
		Source:   source,
	}

	// A birth year must be known before the person is constructed.
	start := 0
	if len(rest) > 0 && bornField.MatchString(strings.Join(rest, ";")) {
		first, err := DecodeField(rest[0], line)
		if err != nil {
			return nil, errors.Annotate(err, line, source, id)
		}
		if first.Key != KeyBorn {
			return nil, &errors.RecordError{
				Kind:     errors.ErrBornMustBeFirst,
				Field:    rest[0],
				Line:     line,
				Source:   source,
				PersonID: id,
			}
		}
		opts.Born = &first.Int
		start = 1
	}

	p, err := person.New(reg, opts)
	if err != nil {
		return nil, errors.Annotate(err, line, source, id)
	}

	for _, text := range rest[start:] {
		f, err := DecodeField(text, line)
		if err != nil {
			return nil, errors.Annotate(err, line, source, p.ID())
		}
		if err := apply(p, f, text); err != nil {
			return nil, errors.Annotate(err, line, source, p.ID())
		}
	}
	p.Seal()
	return p, nil
}

func apply(p *person.Person, f Field, text string) error {
	if f.IsBlank() {
		return nil
	}
	switch f.Key {
	case KeyBorn:
		return &errors.RecordError{Kind: errors.ErrBornMustBeFirst, Field: text}
	case KeyDied:
		return p.SetDied(f.Int)
	case KeyMother:
		return p.SetMother(f.Text)
	case KeyFather:
		return p.SetFather(f.Text)
	case KeyChildNumber:
		return p.SetChildNumber(f.Int)
	case KeyMarried:
		return p.AddMarriage(f.Text, f.Number)
	default:
		return &errors.RecordError{Kind: errors.ErrUnknownFieldKey, Field: text}
	}
}
