package ir

import (
	"bytes"
	"encoding/json"
)

// types.go - family tree document types shared by the JSON emitter, the
// native text emitter and the SQLite store.

// Version is the current document schema version.
const Version = "1.0.0"

// SourceFormat identifies documents extracted from the line grammar.
const SourceFormat = "FAMTREE"

// Tree is the top-level container for a decoded family tree.
type Tree struct {
	// ID identifies the tree, usually the input file name without extension.
	ID string `json:"id"`

	// Version is the document schema version (e.g., "1.0.0").
	Version string `json:"version"`

	// SourceFormat indicates the original format.
	SourceFormat string `json:"source_format,omitempty"`

	// SourceHash is the SHA-256 hash of the source file.
	SourceHash string `json:"source_hash,omitempty"`

	// SourceBLAKE3 is the BLAKE3 hash of the source file.
	SourceBLAKE3 string `json:"source_blake3,omitempty"`

	// RunID identifies the parse run that produced the tree.
	RunID string `json:"run_id,omitempty"`

	// People contains one record per decoded line, in input order.
	People []*Record `json:"people"`

	// Unresolved lists IDs referenced but never declared.
	Unresolved []string `json:"unresolved,omitempty"`
}

// Record is the serialisable form of one person.
type Record struct {
	ID          string   `json:"id"`
	Sex         string   `json:"sex"`
	FullName    string   `json:"full_name"`
	PreNames    []string `json:"pre_names"`
	GivenNames  []string `json:"given_names"`
	SurName     string   `json:"sur_name"`
	AliasNames  []string `json:"alias_names"`
	Born        *int     `json:"born,omitempty"`
	Died        *int     `json:"died,omitempty"`
	Father      string   `json:"father,omitempty"`
	Mother      string   `json:"mother,omitempty"`
	ChildNumber int      `json:"child_number,omitempty"`
	Married     Slots    `json:"married"`
	Children    Slots    `json:"children"`
	Source      string   `json:"source,omitempty"`
}

// Slots is a 1-based slot list where "" marks an unfilled slot.
// Gaps are encoded as JSON null.
type Slots []string

// MarshalJSON encodes gaps as null.
func (s Slots) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, id := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if id == "" {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes null entries as gaps.
func (s *Slots) UnmarshalJSON(data []byte) error {
	var raw []*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Slots, len(raw))
	for i, id := range raw {
		if id != nil {
			out[i] = *id
		}
	}
	*s = out
	return nil
}

// Filled returns the non-gap entries in slot order.
func (s Slots) Filled() []string {
	var ids []string
	for _, id := range s {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Index returns the records of the tree keyed by ID.
func (t *Tree) Index() map[string]*Record {
	idx := make(map[string]*Record, len(t.People))
	for _, r := range t.People {
		idx[r.ID] = r
	}
	return idx
}
