// Package pipeline runs a whole input through the record decoder.
//
// A reader goroutine scans lines while a single apply stage decodes them in
// input order against one registry. Registry mutations are never concurrent.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bcowgill/d3-family-tree/core/errors"
	"github.com/bcowgill/d3-family-tree/core/ir"
	"github.com/bcowgill/d3-family-tree/core/parse"
	"github.com/bcowgill/d3-family-tree/core/person"
	"github.com/bcowgill/d3-family-tree/core/registry"
	"github.com/bcowgill/d3-family-tree/internal/logging"
	"github.com/bcowgill/d3-family-tree/internal/source"
)

// Mode selects what happens when a line is rejected.
type Mode string

const (
	// FailFast aborts the run on the first rejected line.
	FailFast Mode = "failfast"
	// Collect records the error, skips the line and keeps going.
	Collect Mode = "collect"
)

// lineBuffer is how far the reader may run ahead of the apply stage.
const lineBuffer = 64

// LineSource yields record lines in order. *source.Input implements it.
type LineSource interface {
	Lines(ctx context.Context, fn func(source.Line) error) error
}

// Options configures a run.
type Options struct {
	Mode         Mode
	LinkChildren bool
	RunID        string // Generated when empty
}

// Result is the outcome of a run.
type Result struct {
	RunID      string
	People     []*person.Person
	Errors     []error  // Rejected lines, in order
	LinkErrors []error  // Parent and child pairs that could not be linked
	Unresolved []string // IDs mentioned but never declared, first-seen order
	Lines      int      // Record lines read, comments and blanks excluded
	Registry   *registry.Registry
}

// AllResolved reports whether every mentioned ID was declared.
func (r *Result) AllResolved() bool {
	return len(r.Unresolved) == 0
}

// Tree converts the decoded people into an output document.
func (r *Result) Tree(id string) *ir.Tree {
	t := ir.NewTree(id, r.People, r.Unresolved)
	t.RunID = r.RunID
	return t
}

// Run decodes every line of src.
//
// In FailFast mode the first rejected line stops the run and its error is
// returned together with the partial result. In Collect mode rejected lines
// are listed in Result.Errors and Run only fails on read errors or
// cancellation.
func Run(ctx context.Context, src LineSource, opts Options) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = FailFast
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	ctx = logging.WithRunID(ctx, opts.RunID)
	start := time.Now()

	res := &Result{RunID: opts.RunID, Registry: registry.New()}
	lines := make(chan source.Line, lineBuffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(lines)
		return src.Lines(gctx, func(l source.Line) error {
			select {
			case lines <- l:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	g.Go(func() error {
		for l := range lines {
			res.Lines++
			if err := apply(gctx, res, l, opts.Mode); err != nil {
				return err
			}
		}
		return nil
	})
	err := g.Wait()

	if err == nil && opts.LinkChildren {
		err = link(ctx, res, opts.Mode)
	}
	res.Unresolved = res.Registry.Mentioned()

	if len(res.Unresolved) > 0 {
		logging.UnresolvedReferences(ctx, res.Unresolved)
	}
	logging.RunSummary(ctx, res.Lines, len(res.People), len(res.Errors), len(res.Unresolved), time.Since(start),
		"link_errors", len(res.LinkErrors))
	return res, err
}

func apply(ctx context.Context, res *Result, l source.Line, mode Mode) error {
	p, err := parse.DecodeRecord(res.Registry, l.Text, l.Label)
	if err != nil {
		res.Errors = append(res.Errors, err)
		logging.RecordRejected(ctx, l.Label, string(errors.CategoryOf(err)), err)
		if mode == FailFast {
			return err
		}
		return nil
	}
	res.People = append(res.People, p)
	logging.RecordDecoded(ctx, l.Label, p.ID())
	return nil
}

// link fills children from parent references. FailFast stops at the first
// failing pair; Collect skips failing pairs and links the rest.
func link(ctx context.Context, res *Result, mode Mode) error {
	if mode == FailFast {
		if err := person.LinkChildren(res.Registry, res.People); err != nil {
			res.LinkErrors = append(res.LinkErrors, err)
			logging.WarnContext(ctx, "link_children_failed", "error", err.Error())
			return err
		}
		return nil
	}
	res.LinkErrors = person.LinkAllChildren(res.Registry, res.People)
	for _, err := range res.LinkErrors {
		logging.WarnContext(ctx, "link_children_failed", "error", err.Error())
	}
	return nil
}
