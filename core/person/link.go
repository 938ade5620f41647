package person

import (
	"github.com/bcowgill/d3-family-tree/core/registry"
)

// LinkChildren fills each parent's children from the father and mother
// references of people. Children with a child number take their numbered slot
// first, in input order; the rest are appended in input order. Parents that are
// not among people are skipped and stay mentioned in reg.
//
// Linking is the one operation allowed on sealed records. It stops at the
// first failure.
func LinkChildren(reg registry.Registrar, people []*Person) error {
	if errs := linkChildren(reg, people, true); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// LinkAllChildren links like LinkChildren but skips a failing parent and
// child pair and carries on. It returns every failure in order.
func LinkAllChildren(reg registry.Registrar, people []*Person) []error {
	return linkChildren(reg, people, false)
}

func linkChildren(reg registry.Registrar, people []*Person, stop bool) []error {
	byID := make(map[string]*Person, len(people))
	for _, p := range people {
		byID[p.id] = p
	}

	var errs []error
	link := func(child *Person, number int) bool {
		for i, parentID := range []string{child.father, child.mother} {
			if parentID == "" || (i == 1 && parentID == child.father) {
				continue
			}
			parent, ok := byID[parentID]
			if !ok {
				continue
			}
			if err := parent.addChild(reg, child.id, number); err != nil {
				errs = append(errs, err)
				if stop {
					return false
				}
			}
		}
		return true
	}

	for _, child := range people {
		if child.childNumber > 0 && !link(child, child.childNumber) {
			return errs
		}
	}
	for _, child := range people {
		if child.childNumber == 0 && !link(child, 0) {
			return errs
		}
	}
	return errs
}
