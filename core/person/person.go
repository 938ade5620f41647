// Package person provides the Person record of a family tree.
//
// A Person is constructed once, registered as existing in the run's registry,
// and then mutated only through dedicated operations until it is sealed.
// Marriages and children are 1-based slot lists that may be filled out of
// order; an unfilled slot below a filled one is a gap, represented by the
// empty string.
package person

import (
	"fmt"
	"strings"

	"github.com/bcowgill/d3-family-tree/core/errors"
	"github.com/bcowgill/d3-family-tree/core/registry"
)

// Sex is M, F or X (unknown).
type Sex string

// Sex values.
const (
	Male    Sex = "M"
	Female  Sex = "F"
	Unknown Sex = "X"
)

// IsValid returns true if the sex is one of M, F or X.
func (s Sex) IsValid() bool {
	return s == Male || s == Female || s == Unknown
}

// ParseSex normalises s to upper case and validates it.
func ParseSex(s string) (Sex, error) {
	sex := Sex(strings.ToUpper(strings.TrimSpace(s)))
	if !sex.IsValid() {
		return "", &errors.RecordError{
			Kind:    errors.ErrInvalidSex,
			Field:   s,
			Message: fmt.Sprintf("sex (%s) must be M, F or X", sex),
		}
	}
	return sex, nil
}

// Options holds the construction-time properties of a Person.
type Options struct {
	ID          string // Derived from FullName and Born when empty
	Sex         Sex    // Defaults to Unknown
	FullName    string
	Born        *int
	Died        *int
	Father      string
	Mother      string
	ChildNumber int // 0 when unknown
	Source      string
}

// Person is one individual in a family tree.
type Person struct {
	id          string
	sex         Sex
	fullName    string
	names       Names
	born        *int
	died        *int
	father      string
	mother      string
	childNumber int
	married     []string
	children    []string
	source      string

	reg    registry.Registrar
	sealed bool
}

// New validates opts, derives the ID when none is given and registers the ID as
// existing with reg.
func New(reg registry.Registrar, opts Options) (*Person, error) {
	p := &Person{
		sex:      opts.Sex,
		fullName: strings.TrimSpace(opts.FullName),
		source:   opts.Source,
		married:  []string{},
		children: []string{},
		reg:      reg,
	}
	if p.sex == "" {
		p.sex = Unknown
	}
	if !p.sex.IsValid() {
		return nil, p.fail(errors.ErrInvalidSex, string(opts.Sex), "")
	}
	if p.fullName == "" {
		return nil, p.fail(errors.ErrEmptyName, opts.FullName, "")
	}

	names, err := DecomposeName(p.fullName)
	if err != nil {
		return nil, errors.Annotate(err, "", p.source, "")
	}
	p.names = names

	if opts.Born != nil {
		if err := p.setYear(&p.born, *opts.Born, "born"); err != nil {
			return nil, err
		}
	}
	if opts.Died != nil {
		if err := p.setYear(&p.died, *opts.Died, "died"); err != nil {
			return nil, err
		}
	}
	if opts.ChildNumber != 0 {
		if err := p.setChildNumber(opts.ChildNumber); err != nil {
			return nil, err
		}
	}

	p.id = strings.TrimSpace(opts.ID)
	if p.id == "" {
		p.id = DeriveID(p.fullName, p.born)
	}
	if err := reg.RegisterExisting(p.id); err != nil {
		return nil, errors.Annotate(err, "", p.source, p.id)
	}

	if opts.Father != "" {
		if err := p.SetFather(opts.Father); err != nil {
			return nil, err
		}
	}
	if opts.Mother != "" {
		if err := p.SetMother(opts.Mother); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ID returns the person's unique identifier.
func (p *Person) ID() string { return p.id }

// Sex returns M, F or X.
func (p *Person) Sex() Sex { return p.sex }

// FullName returns the name as given.
func (p *Person) FullName() string { return p.fullName }

// Names returns the decomposed name.
func (p *Person) Names() Names {
	return Names{
		PreNames:   append([]string{}, p.names.PreNames...),
		GivenNames: append([]string{}, p.names.GivenNames...),
		SurName:    p.names.SurName,
		AliasNames: append([]string{}, p.names.AliasNames...),
	}
}

// PreNames returns the names from the leading [...] group.
func (p *Person) PreNames() []string { return append([]string{}, p.names.PreNames...) }

// GivenNames returns every plain name before the surname.
func (p *Person) GivenNames() []string { return append([]string{}, p.names.GivenNames...) }

// SurName returns the last plain name, or "" for a single-word name.
func (p *Person) SurName() string { return p.names.SurName }

// AliasNames returns the names from the trailing (...) group.
func (p *Person) AliasNames() []string { return append([]string{}, p.names.AliasNames...) }

// Born returns the birth year and whether it is known.
func (p *Person) Born() (int, bool) { return deref(p.born) }

// Died returns the year of death and whether it is known.
func (p *Person) Died() (int, bool) { return deref(p.died) }

// Father returns the father's ID, or "".
func (p *Person) Father() string { return p.father }

// Mother returns the mother's ID, or "".
func (p *Person) Mother() string { return p.mother }

// ChildNumber returns the birth order among siblings and whether it is known.
func (p *Person) ChildNumber() (int, bool) { return p.childNumber, p.childNumber > 0 }

// Married returns the marriage slots in order. Gaps are "".
func (p *Person) Married() []string { return append([]string{}, p.married...) }

// Children returns the child slots in order. Gaps are "".
func (p *Person) Children() []string { return append([]string{}, p.children...) }

// Source returns the provenance of the record.
func (p *Person) Source() string { return p.source }

// Seal makes the record immutable. Every later mutation fails with
// ErrProtectedPropertyWrite.
func (p *Person) Seal() {
	p.sealed = true
	p.reg = nil
}

// SetDied sets the year of death.
func (p *Person) SetDied(year int) error {
	if err := p.writable("died"); err != nil {
		return err
	}
	return p.setYear(&p.died, year, "died")
}

// SetFather sets the father's ID and registers it as mentioned.
func (p *Person) SetFather(id string) error {
	return p.setParent(&p.father, id, "father")
}

// SetMother sets the mother's ID and registers it as mentioned.
func (p *Person) SetMother(id string) error {
	return p.setParent(&p.mother, id, "mother")
}

// SetChildNumber sets the birth order among siblings (>= 1).
func (p *Person) SetChildNumber(n int) error {
	if err := p.writable("child_number"); err != nil {
		return err
	}
	return p.setChildNumber(n)
}

// AddMarriage records a marriage to partnerID. A number of 0 appends after
// the last slot, otherwise the 1-based slot is filled and must be empty.
func (p *Person) AddMarriage(partnerID string, number int) error {
	if err := p.writable("married"); err != nil {
		return err
	}
	if p.sex == Unknown {
		return p.fail(errors.ErrUnknownSexCannotMarry, partnerID, "")
	}
	return p.addRef(p.reg, &p.married, partnerID, number, "married")
}

// AddChild records a child. A number of 0 appends after the last slot,
// otherwise the 1-based slot is filled and must be empty.
func (p *Person) AddChild(childID string, number int) error {
	if err := p.writable("children"); err != nil {
		return err
	}
	return p.addChild(p.reg, childID, number)
}

func (p *Person) addChild(reg registry.Registrar, childID string, number int) error {
	if p.sex == Unknown {
		return p.fail(errors.ErrUnknownSexCannotParent, childID, "")
	}
	return p.addRef(reg, &p.children, childID, number, "children")
}

func (p *Person) addRef(reg registry.Registrar, slots *[]string, id string, number int, what string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return p.fail(errors.ErrEmptyReference, what, "")
	}
	if number < 0 {
		return p.fail(errors.ErrInvalidNumber, what, fmt.Sprintf("%s number %d must be >= 1", what, number))
	}
	if number > 0 && number <= len(*slots) && (*slots)[number-1] != "" {
		return p.fail(errors.ErrSlotAlreadyFilled, id,
			fmt.Sprintf("%s slot %d already holds %s", what, number, (*slots)[number-1]))
	}

	if reg != nil {
		reg.RegisterMentioned(id)
	}
	if number == 0 {
		*slots = append(*slots, id)
		return nil
	}
	for len(*slots) < number {
		*slots = append(*slots, "")
	}
	(*slots)[number-1] = id
	return nil
}

func (p *Person) setParent(target *string, id, what string) error {
	if err := p.writable(what); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return p.fail(errors.ErrEmptyReference, what, "")
	}
	if p.reg != nil {
		p.reg.RegisterMentioned(id)
	}
	*target = id
	return nil
}

func (p *Person) setYear(target **int, year int, what string) error {
	if year < 0 {
		return p.fail(errors.ErrInvalidNumber, what, fmt.Sprintf("%s (%d) must be a year", what, year))
	}
	*target = &year
	return nil
}

func (p *Person) setChildNumber(n int) error {
	if n < 1 {
		return p.fail(errors.ErrInvalidNumber, "child_number", fmt.Sprintf("child number (%d) must be a number >= 1", n))
	}
	p.childNumber = n
	return nil
}

func (p *Person) writable(what string) error {
	if p.sealed {
		return p.fail(errors.ErrProtectedPropertyWrite, what, "record is sealed")
	}
	return nil
}

func (p *Person) fail(kind error, field, message string) error {
	return &errors.RecordError{
		Kind:     kind,
		Field:    field,
		Source:   p.source,
		PersonID: p.id,
		Message:  message,
	}
}

func deref(v *int) (int, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
