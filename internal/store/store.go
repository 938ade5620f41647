// Package store persists decoded family trees in SQLite.
//
// Each parse run is stored under its run ID: one row per person, one row per
// filled marriage or child slot and one row per known identity.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bcowgill/d3-family-tree/core/errors"
	"github.com/bcowgill/d3-family-tree/core/ir"
	"github.com/bcowgill/d3-family-tree/core/registry"
	"github.com/bcowgill/d3-family-tree/core/sqlite"
)

// now is injectable for testing.
var now = func() time.Time { return time.Now().UTC() }

// Store is a SQLite-backed tree store.
type Store struct {
	db *sql.DB
}

// RunInfo summarises one stored run.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	TreeID    string    `json:"tree_id"`
	People    int       `json:"people"`
	CreatedAt time.Time `json:"created_at"`
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing database for reading. The schema is not
// applied, so a database from another schema version is refused.
func OpenReadOnly(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.OpenReadOnly(ctx, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		db.Close()
		return nil, fmt.Errorf("%s: schema version %d, want %d", path, version, schemaVersion)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// Save stores tree under tree.RunID, replacing any earlier copy of the run.
func (s *Store) Save(ctx context.Context, tree *ir.Tree) error {
	if tree.RunID == "" {
		return fmt.Errorf("save tree %q: %w: run id is required", tree.ID, errors.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, tree.RunID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, tree_id, version, source_format, source_hash, source_blake3, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tree.RunID, tree.ID, tree.Version, tree.SourceFormat, tree.SourceHash, tree.SourceBLAKE3,
		now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, r := range tree.People {
		if err := insertPerson(ctx, tx, tree.RunID, i, r); err != nil {
			return fmt.Errorf("insert person %q: %w", r.ID, err)
		}
	}

	reg := identities(tree)
	for seq, id := range reg.IDs() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO identities (run_id, person_id, seq, state) VALUES (?, ?, ?, ?)`,
			tree.RunID, id, seq, reg.State(id).String())
		if err != nil {
			return fmt.Errorf("insert identity %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// identities rebuilds the registry of a tree: declared people in order, then unresolved IDs.
func identities(tree *ir.Tree) *registry.Registry {
	reg := registry.New()
	for _, r := range tree.People {
		// Duplicates were rejected when the tree was decoded.
		_ = reg.RegisterExisting(r.ID)
	}
	for _, id := range tree.Unresolved {
		reg.RegisterMentioned(id)
	}
	return reg
}

func insertPerson(ctx context.Context, tx *sql.Tx, runID string, pos int, r *ir.Record) error {
	names := make([]string, 0, 3)
	for _, list := range [][]string{r.PreNames, r.GivenNames, r.AliasNames} {
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		if err != nil {
			return err
		}
		names = append(names, string(b))
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO people (run_id, person_id, position, sex, full_name, pre_names, given_names,
		                     sur_name, alias_names, born, died, father, mother, child_number, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.ID, pos, r.Sex, r.FullName, names[0], names[1],
		r.SurName, names[2], nullInt(r.Born), nullInt(r.Died), r.Father, r.Mother, r.ChildNumber, r.Source)
	if err != nil {
		return err
	}

	for table, slots := range map[string]ir.Slots{"marriages": r.Married, "children": r.Children} {
		column := "partner_id"
		if table == "children" {
			column = "child_id"
		}
		for i, id := range slots {
			if id == "" {
				continue
			}
			q := fmt.Sprintf(`INSERT INTO %s (run_id, person_id, slot, %s) VALUES (?, ?, ?, ?)`, table, column)
			if _, err := tx.ExecContext(ctx, q, runID, r.ID, i+1, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads back the tree stored under runID.
func (s *Store) Load(ctx context.Context, runID string) (*ir.Tree, error) {
	tree := &ir.Tree{RunID: runID}
	err := s.db.QueryRowContext(ctx,
		`SELECT tree_id, version, source_format, source_hash, source_blake3 FROM runs WHERE run_id = ?`, runID).
		Scan(&tree.ID, &tree.Version, &tree.SourceFormat, &tree.SourceHash, &tree.SourceBLAKE3)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("run", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	people, err := s.loadPeople(ctx, runID)
	if err != nil {
		return nil, err
	}
	tree.People = people

	reg, err := s.Identities(ctx, runID)
	if err != nil {
		return nil, err
	}
	tree.Unresolved = reg.Mentioned()
	return tree, nil
}

func (s *Store) loadPeople(ctx context.Context, runID string) ([]*ir.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_id, sex, full_name, pre_names, given_names, sur_name, alias_names,
		        born, died, father, mother, child_number, source
		 FROM people WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("load people: %w", err)
	}
	defer rows.Close()

	var people []*ir.Record
	byID := map[string]*ir.Record{}
	for rows.Next() {
		r := &ir.Record{Married: ir.Slots{}, Children: ir.Slots{}}
		var pre, given, alias string
		var born, died sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Sex, &r.FullName, &pre, &given, &r.SurName, &alias,
			&born, &died, &r.Father, &r.Mother, &r.ChildNumber, &r.Source); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		for _, f := range []struct {
			raw string
			dst *[]string
		}{{pre, &r.PreNames}, {given, &r.GivenNames}, {alias, &r.AliasNames}} {
			if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
				return nil, fmt.Errorf("decode names of %q: %w", r.ID, err)
			}
		}
		r.Born = intPtr(born)
		r.Died = intPtr(died)
		people = append(people, r)
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load people: %w", err)
	}

	if err := s.loadSlots(ctx, runID, "marriages", "partner_id", byID, func(r *ir.Record) *ir.Slots { return &r.Married }); err != nil {
		return nil, err
	}
	if err := s.loadSlots(ctx, runID, "children", "child_id", byID, func(r *ir.Record) *ir.Slots { return &r.Children }); err != nil {
		return nil, err
	}
	return people, nil
}

func (s *Store) loadSlots(ctx context.Context, runID, table, column string, byID map[string]*ir.Record, slots func(*ir.Record) *ir.Slots) error {
	q := fmt.Sprintf(`SELECT person_id, slot, %s FROM %s WHERE run_id = ? ORDER BY person_id, slot`, column, table)
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var personID, id string
		var slot int
		if err := rows.Scan(&personID, &slot, &id); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		r, ok := byID[personID]
		if !ok {
			continue
		}
		list := slots(r)
		for len(*list) < slot {
			*list = append(*list, "")
		}
		(*list)[slot-1] = id
	}
	return rows.Err()
}

// Identities rebuilds the identity registry of a run in first-seen order.
func (s *Store) Identities(ctx context.Context, runID string) (*registry.Registry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_id, state FROM identities WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	defer rows.Close()

	reg := registry.New()
	for rows.Next() {
		var id, state string
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		switch registry.ParseState(state) {
		case registry.StateExists:
			if err := reg.RegisterExisting(id); err != nil {
				return nil, err
			}
		case registry.StateMentioned:
			reg.RegisterMentioned(id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	return reg, nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.tree_id, r.created_at, COUNT(p.person_id)
		 FROM runs r LEFT JOIN people p ON p.run_id = r.run_id
		 GROUP BY r.run_id ORDER BY r.created_at DESC, r.run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var ri RunInfo
		var created string
		if err := rows.Scan(&ri.RunID, &ri.TreeID, &created, &ri.People); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if ri.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("run %s: bad created_at: %w", ri.RunID, err)
		}
		runs = append(runs, ri)
	}
	return runs, rows.Err()
}

// Delete removes a run and everything stored under it.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("run", runID)
	}
	return nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
