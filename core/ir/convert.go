package ir

import (
	"github.com/bcowgill/d3-family-tree/core/person"
)

// FromPerson converts a decoded person into its serialisable record.
func FromPerson(p *person.Person) *Record {
	names := p.Names()
	r := &Record{
		ID:         p.ID(),
		Sex:        string(p.Sex()),
		FullName:   p.FullName(),
		PreNames:   names.PreNames,
		GivenNames: names.GivenNames,
		SurName:    names.SurName,
		AliasNames: names.AliasNames,
		Father:     p.Father(),
		Mother:     p.Mother(),
		Married:    Slots(p.Married()),
		Children:   Slots(p.Children()),
		Source:     p.Source(),
	}
	if born, ok := p.Born(); ok {
		r.Born = &born
	}
	if died, ok := p.Died(); ok {
		r.Died = &died
	}
	if n, ok := p.ChildNumber(); ok {
		r.ChildNumber = n
	}
	return r
}

// NewTree builds a tree document from decoded people.
func NewTree(id string, people []*person.Person, unresolved []string) *Tree {
	t := &Tree{
		ID:           id,
		Version:      Version,
		SourceFormat: SourceFormat,
		People:       make([]*Record, 0, len(people)),
		Unresolved:   unresolved,
	}
	for _, p := range people {
		t.People = append(t.People, FromPerson(p))
	}
	return t
}
