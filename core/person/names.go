package person

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/bcowgill/d3-family-tree/core/errors"
)

// Names is the decomposition of a full name:
//
//	[Pre Names] Given Names Surname (Aliases)
type Names struct {
	PreNames   []string `json:"pre_names"`
	GivenNames []string `json:"given_names"`
	SurName    string   `json:"sur_name"`
	AliasNames []string `json:"alias_names"`
}

// nameGrammar is the participle grammar for a full name. A bracket group is
// lexed as one token; its position decides whether it holds pre names (first),
// aliases (last) or ordinary words (anywhere else).
// Examples: "Madonna", "Mary Jane Smith", "[John] Mary Jane Smith (Janey)"
type nameGrammar struct {
	Tokens []*nameToken `parser:"@@*"`
}

type nameToken struct {
	Pre   string `parser:"  @PreGroup"`
	Alias string `parser:"| @AliasGroup"`
	Word  string `parser:"| @Word"`
}

func (t *nameToken) text() string {
	return t.Pre + t.Alias + t.Word
}

// Whitespace includes the Unicode separators, so "John\u00a0Smith" is two words.
var nameLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "PreGroup", Pattern: `\[[^\]]*\]`},
	{Name: "AliasGroup", Pattern: `\([^)]*\)`},
	{Name: "Word", Pattern: `[^\s\p{Z}\[(]+|[\[(][^\s\p{Z}\[(]*`},
	{Name: "Whitespace", Pattern: `[\s\p{Z}]+`},
})

var nameParser = participle.MustBuild[nameGrammar](
	participle.Lexer(nameLexer),
	participle.Elide("Whitespace"),
)

// DecomposeName splits a full name into pre names, given names, surname and aliases.
// A leading [...] group holds pre names and a trailing (...) group aliases.
// Groups elsewhere split into ordinary words. The last word is the surname
// unless it is the only one.
func DecomposeName(fullName string) (Names, error) {
	parsed, err := nameParser.ParseString("", fullName)
	if err != nil {
		return Names{}, errors.Wrapf(err, "decompose name %q", fullName)
	}

	names := Names{
		PreNames:   []string{},
		GivenNames: []string{},
		AliasNames: []string{},
	}
	tokens := parsed.Tokens
	if len(tokens) > 0 && tokens[0].Pre != "" {
		names.PreNames = groupWords(tokens[0].Pre)
		tokens = tokens[1:]
	}
	if n := len(tokens); n > 0 && tokens[n-1].Alias != "" {
		names.AliasNames = groupWords(tokens[n-1].Alias)
		tokens = tokens[:n-1]
	}

	var words []string
	for _, t := range tokens {
		words = append(words, strings.FieldsFunc(t.text(), isNameSpace)...)
	}
	switch n := len(words); n {
	case 0:
		return Names{}, &errors.RecordError{Kind: errors.ErrEmptyGivenName, Field: fullName}
	case 1:
		names.GivenNames = append(names.GivenNames, words[0])
	default:
		names.GivenNames = append(names.GivenNames, words[:n-1]...)
		names.SurName = words[n-1]
	}
	return names, nil
}

// groupWords returns the words inside a bracket group.
func groupWords(group string) []string {
	return append([]string{}, strings.FieldsFunc(group[1:len(group)-1], isNameSpace)...)
}

func isNameSpace(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Z, r)
}

// idStrip matches the characters dropped from a full name when deriving an ID.
var idStrip = regexp.MustCompile(`[\s\p{Z}]+|[\[\]()]`)

// DeriveID builds an ID from a full name with whitespace and brackets removed,
// followed by the birth year when known.
func DeriveID(fullName string, born *int) string {
	id := idStrip.ReplaceAllString(fullName, "")
	if born != nil {
		id += strconv.Itoa(*born)
	}
	return id
}

// String reassembles the name in its canonical full name form.
func (n Names) String() string {
	var parts []string
	if len(n.PreNames) > 0 {
		parts = append(parts, "["+strings.Join(n.PreNames, " ")+"]")
	}
	parts = append(parts, n.GivenNames...)
	if n.SurName != "" {
		parts = append(parts, n.SurName)
	}
	if len(n.AliasNames) > 0 {
		parts = append(parts, "("+strings.Join(n.AliasNames, " ")+")")
	}
	return strings.Join(parts, " ")
}
