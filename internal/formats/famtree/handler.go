// Package famtree is the format handler for family tree line files.
//
// It detects line files, extracts them into ir.Tree documents through the
// decoding pipeline and emits trees back into the line grammar.
package famtree

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/bcowgill/d3-family-tree/core/cas"
	"github.com/bcowgill/d3-family-tree/core/ir"
	"github.com/bcowgill/d3-family-tree/internal/logging"
	"github.com/bcowgill/d3-family-tree/internal/pipeline"
	"github.com/bcowgill/d3-family-tree/internal/source"
	"github.com/bcowgill/d3-family-tree/internal/validation"
)

// FormatName identifies the line grammar.
const FormatName = ir.SourceFormat

// recordPrefix matches the "ID ; SEX ;" start of a record line.
var recordPrefix = regexp.MustCompile(`^\s*[^;\s][^;]*;\s*[MFXmfx]\s*;`)

// now is swapped out by tests.
var now = time.Now

// DetectResult reports whether a file looks like a line file.
type DetectResult struct {
	Detected bool   `json:"detected"`
	Format   string `json:"format,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Extraction is the outcome of extracting one input.
type Extraction struct {
	Tree   *ir.Tree
	Result *pipeline.Result
	Input  *source.Input
}

// Handler converts between line files and tree documents.
type Handler struct {
	Options pipeline.Options
	MaxSize int64      // Input size limit, 0 for none
	Archive *cas.Store // Optional input archive
}

// Detect inspects path without decoding it.
func (h *Handler) Detect(path string) (*DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &DetectResult{Reason: fmt.Sprintf("cannot stat: %v", err)}, nil
	}
	if info.IsDir() {
		return &DetectResult{Reason: "path is a directory, not a file"}, nil
	}

	in, err := source.ReadFile(path, h.MaxSize)
	if err != nil {
		return &DetectResult{Reason: fmt.Sprintf("cannot read: %v", err)}, nil
	}
	r, err := in.Open()
	if err != nil {
		return &DetectResult{Reason: err.Error()}, nil
	}
	head := make([]byte, 4096)
	n, _ := io.ReadFull(r, head)
	head = head[:n]
	if !validation.IsLikelyText(head) {
		return &DetectResult{Reason: "content is not text"}, nil
	}

	for _, line := range strings.Split(string(head), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if recordPrefix.MatchString(line) {
			return &DetectResult{
				Detected: true,
				Format:   FormatName,
				Reason:   "ID; SEX; NAME record line found",
			}, nil
		}
		return &DetectResult{Reason: "first record line is not ID; SEX; NAME"}, nil
	}
	return &DetectResult{Reason: "no record lines found"}, nil
}

// Extract decodes path into a tree. The tree carries the input hashes and the
// run ID. When an archive is configured the raw input and a run manifest are
// stored in it. A partial extraction is returned alongside a decode error.
func (h *Handler) Extract(ctx context.Context, path string) (*Extraction, error) {
	in, err := source.ReadFile(path, h.MaxSize)
	if err != nil {
		return nil, err
	}
	id, err := validation.TreeID(path)
	if err != nil {
		return nil, fmt.Errorf("tree id for %s: %w", path, err)
	}
	return h.extract(ctx, id, in)
}

func (h *Handler) extract(ctx context.Context, id string, in *source.Input) (*Extraction, error) {
	res, runErr := pipeline.Run(ctx, in, h.Options)

	tree := res.Tree(id)
	digest := cas.Sum(in.Raw)
	tree.SourceHash = digest.SHA256
	tree.SourceBLAKE3 = digest.BLAKE3

	ex := &Extraction{Tree: tree, Result: res, Input: in}
	if h.Archive != nil {
		if err := h.archive(ctx, ex); err != nil {
			return nil, err
		}
	}
	return ex, runErr
}

// Manifest describes the run for archives and bundles.
func (ex *Extraction) Manifest() (cas.Manifest, error) {
	treeHash, err := ir.HashTree(ex.Tree)
	if err != nil {
		return cas.Manifest{}, fmt.Errorf("hash tree: %w", err)
	}
	return cas.Manifest{
		RunID:     ex.Result.RunID,
		Input:     ex.Input.Name,
		Digest:    cas.Digest{SHA256: ex.Tree.SourceHash, BLAKE3: ex.Tree.SourceBLAKE3},
		TreeHash:  treeHash,
		Lines:     ex.Result.Lines,
		People:    len(ex.Result.People),
		Rejected:  len(ex.Result.Errors),
		CreatedAt: now().UTC(),
	}, nil
}

func (h *Handler) archive(ctx context.Context, ex *Extraction) error {
	ctx = logging.WithRunID(ctx, ex.Result.RunID)
	logging.DebugContext(ctx, "archive_put", "root", h.Archive.Root(), "bytes", len(ex.Input.Raw))
	d, err := h.Archive.Put(ex.Input.Raw)
	if err != nil {
		return fmt.Errorf("archive input: %w", err)
	}
	m, err := ex.Manifest()
	if err != nil {
		return err
	}
	m.Digest = d
	if err := h.Archive.WriteManifest(m); err != nil {
		return fmt.Errorf("archive manifest: %w", err)
	}
	logging.InfoContext(ctx, "input_archived", "sha256", d.SHA256, "blake3", d.BLAKE3)
	return nil
}

// WriteJSON encodes tree as JSON.
func WriteJSON(w io.Writer, tree *ir.Tree, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("failed to serialize tree: %w", err)
	}
	return nil
}

// ReadJSON decodes and validates a tree document.
func ReadJSON(r io.Reader) (*ir.Tree, error) {
	var tree ir.Tree
	if err := json.NewDecoder(r).Decode(&tree); err != nil {
		return nil, fmt.Errorf("failed to parse tree: %w", err)
	}
	if errs := ir.ValidateTree(&tree); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return nil, fmt.Errorf("invalid tree: %s", strings.Join(msgs, "; "))
	}
	return &tree, nil
}
