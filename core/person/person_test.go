package person

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	fterrors "github.com/bcowgill/d3-family-tree/core/errors"
	"github.com/bcowgill/d3-family-tree/core/registry"
)

func intPtr(v int) *int { return &v }

func mustNew(t *testing.T, reg *registry.Registry, opts Options) *Person {
	t.Helper()
	p, err := New(reg, opts)
	if err != nil {
		t.Fatalf("New(%+v) error = %v", opts, err)
	}
	return p
}

func TestDecomposeName(t *testing.T) {
	tests := []struct {
		name     string
		fullName string
		want     Names
	}{
		{
			name:     "all groups",
			fullName: "[John] Mary Jane Smith (Janey)",
			want: Names{
				PreNames:   []string{"John"},
				GivenNames: []string{"Mary", "Jane"},
				SurName:    "Smith",
				AliasNames: []string{"Janey"},
			},
		},
		{
			name:     "single name",
			fullName: "Madonna",
			want: Names{
				PreNames:   []string{},
				GivenNames: []string{"Madonna"},
				AliasNames: []string{},
			},
		},
		{
			name:     "given and surname",
			fullName: "John   Smith",
			want: Names{
				PreNames:   []string{},
				GivenNames: []string{"John"},
				SurName:    "Smith",
				AliasNames: []string{},
			},
		},
		{
			name:     "several aliases and pre names",
			fullName: "[Jack Johnny] John Smith (Smithy Jonno)",
			want: Names{
				PreNames:   []string{"Jack", "Johnny"},
				GivenNames: []string{"John"},
				SurName:    "Smith",
				AliasNames: []string{"Smithy", "Jonno"},
			},
		},
		{
			name:     "alias group in the middle",
			fullName: "Mary (Janey) Smith",
			want: Names{
				PreNames:   []string{},
				GivenNames: []string{"Mary", "(Janey)"},
				SurName:    "Smith",
				AliasNames: []string{},
			},
		},
		{
			name:     "pre group at the end",
			fullName: "Mary [John Jo]",
			want: Names{
				PreNames:   []string{},
				GivenNames: []string{"Mary", "[John"},
				SurName:    "Jo]",
				AliasNames: []string{},
			},
		},
		{
			name:     "unclosed group",
			fullName: "[John Mary",
			want: Names{
				PreNames:   []string{},
				GivenNames: []string{"[John"},
				SurName:    "Mary",
				AliasNames: []string{},
			},
		},
		{
			name:     "unicode whitespace",
			fullName: "John\u00a0Smith\u2003(Jo)",
			want: Names{
				PreNames:   []string{},
				GivenNames: []string{"John"},
				SurName:    "Smith",
				AliasNames: []string{"Jo"},
			},
		},
		{
			name:     "brackets without spaces",
			fullName: "[Bo]Robert(Bob)",
			want: Names{
				PreNames:   []string{"Bo"},
				GivenNames: []string{"Robert"},
				AliasNames: []string{"Bob"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecomposeName(tt.fullName)
			if err != nil {
				t.Fatalf("DecomposeName(%q) error = %v", tt.fullName, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecomposeName(%q) mismatch (-want +got):\n%s", tt.fullName, diff)
			}
		})
	}
}

func TestDecomposeNameErrors(t *testing.T) {
	tests := []struct {
		fullName string
		want     error
	}{
		{"[John]", fterrors.ErrEmptyGivenName},
		{"(Janey)", fterrors.ErrEmptyGivenName},
		{"[John] (Janey)", fterrors.ErrEmptyGivenName},
	}
	for _, tt := range tests {
		t.Run(tt.fullName, func(t *testing.T) {
			_, err := DecomposeName(tt.fullName)
			if !errors.Is(err, tt.want) {
				t.Errorf("DecomposeName(%q) error = %v, want %v", tt.fullName, err, tt.want)
			}
		})
	}
}

func TestNamesString(t *testing.T) {
	n, err := DecomposeName("[John]  Mary Jane Smith ( Janey )")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := n.String(), "[John] Mary Jane Smith (Janey)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDeriveID(t *testing.T) {
	tests := []struct {
		fullName string
		born     *int
		want     string
	}{
		{"John Smith", intPtr(1900), "JohnSmith1900"},
		{"[John] Mary Jane Smith (Janey)", nil, "JohnMaryJaneSmithJaney"},
		{"Madonna", intPtr(0), "Madonna0"},
		{"John\u00a0Smith\u3000Jr", intPtr(1950), "JohnSmithJr1950"},
	}
	for _, tt := range tests {
		if got := DeriveID(tt.fullName, tt.born); got != tt.want {
			t.Errorf("DeriveID(%q) = %q, want %q", tt.fullName, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	reg := registry.New()
	p := mustNew(t, reg, Options{
		ID:       "A1",
		Sex:      Male,
		FullName: "John Smith",
		Born:     intPtr(1900),
		Source:   "family.txt: A1;M;John Smith;b:1900",
	})

	if p.ID() != "A1" {
		t.Errorf("ID() = %q, want A1", p.ID())
	}
	if born, ok := p.Born(); !ok || born != 1900 {
		t.Errorf("Born() = %d, %v; want 1900, true", born, ok)
	}
	if _, ok := p.Died(); ok {
		t.Error("Died() should be unknown")
	}
	if p.SurName() != "Smith" {
		t.Errorf("SurName() = %q, want Smith", p.SurName())
	}
	if reg.State("A1") != registry.StateExists {
		t.Errorf("A1 state = %v, want exists", reg.State("A1"))
	}
	if len(p.Married()) != 0 || len(p.Children()) != 0 {
		t.Error("new person should have no marriages or children")
	}
}

func TestNewDerivesID(t *testing.T) {
	reg := registry.New()
	p := mustNew(t, reg, Options{Sex: Female, FullName: "Jane Doe", Born: intPtr(1902)})
	if p.ID() != "JaneDoe1902" {
		t.Errorf("ID() = %q, want JaneDoe1902", p.ID())
	}
}

func TestNewDefaultsSexToUnknown(t *testing.T) {
	p := mustNew(t, registry.New(), Options{ID: "Q", FullName: "Someone"})
	if p.Sex() != Unknown {
		t.Errorf("Sex() = %q, want X", p.Sex())
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"empty name", Options{ID: "A", Sex: Male, FullName: "   "}, fterrors.ErrEmptyName},
		{"invalid sex", Options{ID: "A", Sex: "Q", FullName: "John"}, fterrors.ErrInvalidSex},
		{"no given name", Options{ID: "A", Sex: Male, FullName: "[John]"}, fterrors.ErrEmptyGivenName},
		{"negative year", Options{ID: "A", Sex: Male, FullName: "John", Born: intPtr(-1)}, fterrors.ErrInvalidNumber},
		{"negative child number", Options{ID: "A", Sex: Male, FullName: "John", ChildNumber: -2}, fterrors.ErrInvalidNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			_, err := New(reg, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
			if reg.Len() != 0 {
				t.Errorf("failed construction registered ids: %v", reg.IDs())
			}
		})
	}
}

func TestNewDuplicateID(t *testing.T) {
	reg := registry.New()
	mustNew(t, reg, Options{ID: "A1", Sex: Male, FullName: "John Smith"})

	_, err := New(reg, Options{ID: "A1", Sex: Female, FullName: "Jane Smith", Source: "line 2"})
	if !errors.Is(err, fterrors.ErrDuplicateID) {
		t.Fatalf("New() error = %v, want ErrDuplicateID", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should carry the source, got %q", err.Error())
	}
}

func TestNewRegistersParents(t *testing.T) {
	reg := registry.New()
	p := mustNew(t, reg, Options{ID: "A1", Sex: Male, FullName: "John", Mother: "Mom1", Father: "Dad1"})
	if p.Mother() != "Mom1" || p.Father() != "Dad1" {
		t.Errorf("parents = %q/%q", p.Father(), p.Mother())
	}
	if reg.State("Mom1") != registry.StateMentioned || reg.State("Dad1") != registry.StateMentioned {
		t.Error("parents should be registered as mentioned")
	}
	if reg.AllResolved() {
		t.Error("AllResolved() = true with dangling parents")
	}
}

func TestAddMarriageSlots(t *testing.T) {
	reg := registry.New()
	p := mustNew(t, reg, Options{ID: "A", Sex: Male, FullName: "John"})

	if err := p.AddMarriage("B", 2); err != nil {
		t.Fatal(err)
	}
	if err := p.AddMarriage("C", 0); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"", "B", "C"}, p.Married()); diff != "" {
		t.Errorf("Married() mismatch (-want +got):\n%s", diff)
	}

	err := p.AddMarriage("D", 2)
	if !errors.Is(err, fterrors.ErrSlotAlreadyFilled) {
		t.Fatalf("AddMarriage(D, 2) error = %v, want ErrSlotAlreadyFilled", err)
	}
	if reg.State("D") != registry.StateAbsent {
		t.Error("rejected marriage should not register the partner")
	}

	if err := p.AddMarriage("E", 1); err != nil {
		t.Fatalf("filling the gap should succeed: %v", err)
	}
	if diff := cmp.Diff([]string{"E", "B", "C"}, p.Married()); diff != "" {
		t.Errorf("Married() mismatch (-want +got):\n%s", diff)
	}
	for _, id := range []string{"B", "C", "E"} {
		if reg.State(id) != registry.StateMentioned {
			t.Errorf("State(%s) = %v, want mentioned", id, reg.State(id))
		}
	}
}

func TestAddChildSlots(t *testing.T) {
	p := mustNew(t, registry.New(), Options{ID: "M", Sex: Female, FullName: "Mary"})
	if err := p.AddChild("K3", 3); err != nil {
		t.Fatal(err)
	}
	if err := p.AddChild("K1", 1); err != nil {
		t.Fatal(err)
	}
	if err := p.AddChild("K4", 0); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"K1", "", "K3", "K4"}, p.Children()); diff != "" {
		t.Errorf("Children() mismatch (-want +got):\n%s", diff)
	}
	if err := p.AddChild("K5", 3); !errors.Is(err, fterrors.ErrSlotAlreadyFilled) {
		t.Errorf("AddChild(K5, 3) error = %v, want ErrSlotAlreadyFilled", err)
	}
}

func TestUnknownSexGuards(t *testing.T) {
	reg := registry.New()
	p := mustNew(t, reg, Options{ID: "X1", Sex: Unknown, FullName: "Somebody"})

	if err := p.AddMarriage("B", 0); !errors.Is(err, fterrors.ErrUnknownSexCannotMarry) {
		t.Errorf("AddMarriage() error = %v, want ErrUnknownSexCannotMarry", err)
	}
	if err := p.AddChild("C", 0); !errors.Is(err, fterrors.ErrUnknownSexCannotParent) {
		t.Errorf("AddChild() error = %v, want ErrUnknownSexCannotParent", err)
	}
	if len(p.Married()) != 0 || len(p.Children()) != 0 {
		t.Error("unknown sex person must keep empty marriages and children")
	}
	if reg.Len() != 1 {
		t.Errorf("rejected references were registered: %v", reg.IDs())
	}
}

func TestEmptyReference(t *testing.T) {
	p := mustNew(t, registry.New(), Options{ID: "A", Sex: Male, FullName: "John"})
	if err := p.AddMarriage("  ", 0); !errors.Is(err, fterrors.ErrEmptyReference) {
		t.Errorf("AddMarriage(blank) error = %v", err)
	}
	if err := p.SetMother(""); !errors.Is(err, fterrors.ErrEmptyReference) {
		t.Errorf("SetMother(blank) error = %v", err)
	}
}

func TestSealedRecordRejectsWrites(t *testing.T) {
	p := mustNew(t, registry.New(), Options{ID: "A", Sex: Male, FullName: "John"})
	p.Seal()

	writes := map[string]func() error{
		"died":      func() error { return p.SetDied(1950) },
		"father":    func() error { return p.SetFather("F") },
		"mother":    func() error { return p.SetMother("M") },
		"child":     func() error { return p.SetChildNumber(1) },
		"marriage":  func() error { return p.AddMarriage("B", 0) },
		"add child": func() error { return p.AddChild("C", 0) },
	}
	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			err := write()
			if !errors.Is(err, fterrors.ErrProtectedPropertyWrite) {
				t.Errorf("error = %v, want ErrProtectedPropertyWrite", err)
			}
		})
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	p := mustNew(t, registry.New(), Options{ID: "A", Sex: Male, FullName: "[Jo] John Smith (Jack)"})
	if err := p.AddMarriage("B", 0); err != nil {
		t.Fatal(err)
	}
	p.Married()[0] = "Z"
	p.GivenNames()[0] = "Z"
	p.Names().PreNames[0] = "Z"
	if p.Married()[0] != "B" || p.GivenNames()[0] != "John" || p.PreNames()[0] != "Jo" {
		t.Error("accessors must not expose internal slices")
	}
}

func TestLinkChildren(t *testing.T) {
	reg := registry.New()
	dad := mustNew(t, reg, Options{ID: "D", Sex: Male, FullName: "Dad"})
	mum := mustNew(t, reg, Options{ID: "M", Sex: Female, FullName: "Mum"})
	k2 := mustNew(t, reg, Options{ID: "K2", Sex: Female, FullName: "Kid Two", Father: "D", Mother: "M", ChildNumber: 2})
	kx := mustNew(t, reg, Options{ID: "KX", Sex: Male, FullName: "Kid Unnumbered", Father: "D"})
	k1 := mustNew(t, reg, Options{ID: "K1", Sex: Male, FullName: "Kid One", Father: "D", Mother: "M", ChildNumber: 1})
	orphan := mustNew(t, reg, Options{ID: "O", Sex: Male, FullName: "Orphan", Mother: "Nobody"})

	people := []*Person{dad, mum, k2, kx, k1, orphan}
	for _, p := range people {
		p.Seal()
	}
	if err := LinkChildren(reg, people); err != nil {
		t.Fatalf("LinkChildren() error = %v", err)
	}
	if diff := cmp.Diff([]string{"K1", "K2", "KX"}, dad.Children()); diff != "" {
		t.Errorf("dad.Children() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"K1", "K2"}, mum.Children()); diff != "" {
		t.Errorf("mum.Children() mismatch (-want +got):\n%s", diff)
	}
	if reg.State("Nobody") != registry.StateMentioned {
		t.Error("missing parent should stay mentioned")
	}
}

func TestLinkChildrenConflicts(t *testing.T) {
	t.Run("same child number", func(t *testing.T) {
		reg := registry.New()
		mum := mustNew(t, reg, Options{ID: "M", Sex: Female, FullName: "Mum"})
		a := mustNew(t, reg, Options{ID: "A", Sex: Male, FullName: "A", Mother: "M", ChildNumber: 1})
		b := mustNew(t, reg, Options{ID: "B", Sex: Male, FullName: "B", Mother: "M", ChildNumber: 1})
		err := LinkChildren(reg, []*Person{mum, a, b})
		if !errors.Is(err, fterrors.ErrSlotAlreadyFilled) {
			t.Errorf("error = %v, want ErrSlotAlreadyFilled", err)
		}
	})

	t.Run("unknown sex parent", func(t *testing.T) {
		reg := registry.New()
		parent := mustNew(t, reg, Options{ID: "P", Sex: Unknown, FullName: "Parent"})
		kid := mustNew(t, reg, Options{ID: "K", Sex: Male, FullName: "Kid", Father: "P"})
		err := LinkChildren(reg, []*Person{parent, kid})
		if !errors.Is(err, fterrors.ErrUnknownSexCannotParent) {
			t.Errorf("error = %v, want ErrUnknownSexCannotParent", err)
		}
	})
}

func TestLinkAllChildrenSkipsFailingPairs(t *testing.T) {
	reg := registry.New()
	k1 := mustNew(t, reg, Options{ID: "K1", Sex: Male, FullName: "Kid One", Father: "D", Mother: "U"})
	k2 := mustNew(t, reg, Options{ID: "K2", Sex: Female, FullName: "Kid Two", Father: "D", Mother: "U"})
	dad := mustNew(t, reg, Options{ID: "D", Sex: Male, FullName: "Dad"})
	unknown := mustNew(t, reg, Options{ID: "U", Sex: Unknown, FullName: "Unknown"})

	errs := LinkAllChildren(reg, []*Person{k1, k2, dad, unknown})
	if len(errs) != 2 {
		t.Fatalf("LinkAllChildren() = %v, want two failures", errs)
	}
	for _, err := range errs {
		if !errors.Is(err, fterrors.ErrUnknownSexCannotParent) {
			t.Errorf("error = %v, want ErrUnknownSexCannotParent", err)
		}
	}
	if diff := cmp.Diff([]string{"K1", "K2"}, dad.Children()); diff != "" {
		t.Errorf("dad.Children() mismatch (-want +got):\n%s", diff)
	}
	if len(unknown.Children()) != 0 {
		t.Errorf("unknown.Children() = %v, want empty", unknown.Children())
	}
}

func TestLinkChildrenStopsAtFirstFailure(t *testing.T) {
	reg := registry.New()
	k1 := mustNew(t, reg, Options{ID: "K1", Sex: Male, FullName: "Kid One", Father: "D", Mother: "U"})
	k2 := mustNew(t, reg, Options{ID: "K2", Sex: Female, FullName: "Kid Two", Father: "D", Mother: "U"})
	dad := mustNew(t, reg, Options{ID: "D", Sex: Male, FullName: "Dad"})
	unknown := mustNew(t, reg, Options{ID: "U", Sex: Unknown, FullName: "Unknown"})

	err := LinkChildren(reg, []*Person{k1, k2, dad, unknown})
	if !errors.Is(err, fterrors.ErrUnknownSexCannotParent) {
		t.Fatalf("LinkChildren() error = %v, want ErrUnknownSexCannotParent", err)
	}
	if diff := cmp.Diff([]string{"K1"}, dad.Children()); diff != "" {
		t.Errorf("dad.Children() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSex(t *testing.T) {
	for in, want := range map[string]Sex{"m": Male, " F ": Female, "x": Unknown} {
		got, err := ParseSex(in)
		if err != nil || got != want {
			t.Errorf("ParseSex(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseSex("Q"); !errors.Is(err, fterrors.ErrInvalidSex) {
		t.Errorf("ParseSex(Q) error = %v, want ErrInvalidSex", err)
	}
}
