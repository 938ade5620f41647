// Command famtree decodes family tree line files into JSON trees.
//
// Usage:
//
//	famtree parse FILE [--out PATH] [--format json|text] [--collect] [--link] [--strict] [--db PATH] [--archive DIR] [--bundle PATH]
//	famtree check FILE [--collect] [--link] [--strict]
//	famtree detect FILE
//	famtree emit TREE.json|BUNDLE.tar.xz [--out PATH]
//	famtree db load DB --run ID
//	famtree db list DB
//	famtree db delete DB --run ID
//	famtree archive show DIR --run ID
//	famtree archive cat DIR --run ID
//	famtree config PATH
//	famtree version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/bcowgill/d3-family-tree/core/cas"
	"github.com/bcowgill/d3-family-tree/core/errors"
	"github.com/bcowgill/d3-family-tree/core/ir"
	"github.com/bcowgill/d3-family-tree/core/sqlite"
	"github.com/bcowgill/d3-family-tree/internal/archive"
	"github.com/bcowgill/d3-family-tree/internal/config"
	"github.com/bcowgill/d3-family-tree/internal/formats/famtree"
	"github.com/bcowgill/d3-family-tree/internal/logging"
	"github.com/bcowgill/d3-family-tree/internal/pipeline"
	"github.com/bcowgill/d3-family-tree/internal/store"
	"github.com/bcowgill/d3-family-tree/internal/validation"
)

const version = "0.1.0"

// stdout is swapped out by tests.
var stdout io.Writer = os.Stdout

// createFile is swapped out by tests.
var createFile = func(name string) (io.WriteCloser, error) { return os.Create(name) }

type cli struct {
	// Global flags
	Config    string `name:"config" short:"c" help:"YAML config file" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`

	Parse   ParseCmd   `cmd:"" help:"Decode a line file into a tree"`
	Check   CheckCmd   `cmd:"" help:"Decode a line file and report problems only"`
	Detect  DetectCmd  `cmd:"" help:"Report whether a file looks like a line file"`
	Emit    EmitCmd    `cmd:"" help:"Write a JSON tree back as a line file"`
	DB         DBGroup      `cmd:"" name:"db" help:"Stored run operations"`
	Archive    ArchiveGroup `cmd:"" help:"Archived input operations"`
	ShowConfig ConfigCmd    `cmd:"" name:"config" help:"Write the effective configuration as YAML"`
	Version    VersionCmd   `cmd:"" help:"Print version information"`
}

// CLI defines the command-line interface for famtree.
var CLI cli

// DBGroup contains stored run operations.
type DBGroup struct {
	Load   DBLoadCmd   `cmd:"" help:"Print a stored run as a JSON tree"`
	List   DBListCmd   `cmd:"" help:"List stored runs"`
	Delete DBDeleteCmd `cmd:"" help:"Remove a stored run"`
}

// ArchiveGroup reads back inputs archived by parse --archive.
type ArchiveGroup struct {
	Show ArchiveShowCmd `cmd:"" help:"Print the manifest of an archived run"`
	Cat  ArchiveCatCmd  `cmd:"" help:"Print the archived input of a run"`
}

// loadConfig layers CLI flags over the config file and environment, then initialises logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.LogLevel != "" {
		cfg.Log.Level = CLI.LogLevel
	}
	if CLI.LogFormat != "" {
		cfg.Log.Format = CLI.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.InitLogging(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DecodeFlags are shared by parse and check.
type DecodeFlags struct {
	Collect bool `help:"Keep going after a rejected line and report every error"`
	Link    bool `help:"Fill parents' children from father and mother references"`
	Strict  bool `help:"Fail when referenced IDs are never declared"`
}

func (f DecodeFlags) options(cfg *config.Config) pipeline.Options {
	opts := pipeline.Options{Mode: pipeline.Mode(cfg.Parse.Mode), LinkChildren: cfg.Parse.LinkChildren}
	if f.Collect {
		opts.Mode = pipeline.Collect
	}
	if f.Link {
		opts.LinkChildren = true
	}
	return opts
}

// outcome turns a finished extraction into the command's exit error.
func (f DecodeFlags) outcome(ex *famtree.Extraction) error {
	res := ex.Result
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d of %d lines rejected", len(res.Errors), res.Lines)
	}
	if len(res.LinkErrors) > 0 {
		return fmt.Errorf("%d child links failed", len(res.LinkErrors))
	}
	if f.Strict && !res.AllResolved() {
		return errors.Wrapf(errors.ErrUnresolvedReference, "%s", strings.Join(res.Unresolved, ", "))
	}
	return nil
}

// ParseCmd decodes a line file and writes the tree.
type ParseCmd struct {
	DecodeFlags `embed:""`
	Path    string `arg:"" help:"Line file to decode (plain, .gz or .xz)" type:"existingfile"`
	Out     string `help:"Output path (default: stdout)" type:"path"`
	Format  string `help:"Output format (json, text)"`
	DB      string `name:"db" help:"Also store the tree in this SQLite database" type:"path"`
	Archive string `help:"Archive the input in this directory" type:"path"`
	Bundle  string `help:"Also pack input, tree and manifest into this .tar.xz, .tar.gz or .tar" type:"path"`
}

func (c *ParseCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Format != "" {
		cfg.Output.Format = c.Format
	}
	if c.DB != "" {
		cfg.Store.Path = c.DB
	}
	if c.Archive != "" {
		cfg.Archive.Dir = c.Archive
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	h := &famtree.Handler{Options: c.options(cfg), MaxSize: cfg.Parse.MaxFileSize}
	if cfg.Archive.Dir != "" {
		if h.Archive, err = cas.NewStore(cfg.Archive.Dir); err != nil {
			return err
		}
	}

	ex, err := h.Extract(ctx, c.Path)
	if err != nil {
		return err
	}

	if err := writeTree(c.Out, cfg, h, ex.Tree); err != nil {
		return err
	}
	if cfg.Store.Path != "" {
		if err := saveTree(ctx, cfg.Store.Path, ex.Tree); err != nil {
			return err
		}
	}
	if c.Bundle != "" {
		m, err := ex.Manifest()
		if err != nil {
			return err
		}
		b := &archive.Bundle{Manifest: m, Tree: ex.Tree, Input: ex.Input.Raw}
		bctx := logging.WithRunID(ctx, ex.Tree.RunID)
		logging.DebugContext(bctx, "bundle_write", "path", c.Bundle, "format", archive.DetectFormat(c.Bundle))
		if err := archive.WriteBundle(c.Bundle, b); err != nil {
			return err
		}
		logging.InfoContext(bctx, "bundle_written", "path", c.Bundle)
	}
	return c.outcome(ex)
}

func writeTree(out string, cfg *config.Config, h *famtree.Handler, tree *ir.Tree) (err error) {
	w := stdout
	if out != "" {
		if err := validation.ValidatePath(out); err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		f, cerr := createFile(out)
		if cerr != nil {
			return errors.NewIO("create", out, cerr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = errors.NewIO("close", out, cerr)
			}
		}()
		w = f
	}
	if cfg.Output.Format == config.OutputText {
		return h.EmitNative(w, tree)
	}
	return famtree.WriteJSON(w, tree, cfg.Output.Indent)
}

func saveTree(ctx context.Context, path string, tree *ir.Tree) error {
	ctx = logging.WithRunID(ctx, tree.RunID)
	logging.DebugContext(ctx, "store_open", "db", path, "driver", sqlite.DriverName())
	s, err := store.Open(ctx, path)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Save(ctx, tree); err != nil {
		return err
	}
	logging.InfoContext(ctx, "tree_stored", "db", path, "people", len(tree.People))
	return nil
}

// CheckCmd decodes a line file and prints a report instead of a tree.
type CheckCmd struct {
	DecodeFlags `embed:""`
	Path string `arg:"" help:"Line file to check" type:"existingfile"`
}

func (c *CheckCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h := &famtree.Handler{Options: c.options(cfg), MaxSize: cfg.Parse.MaxFileSize}
	ex, err := h.Extract(context.Background(), c.Path)
	if ex == nil {
		return err
	}

	res := ex.Result
	for _, e := range res.Errors {
		fmt.Fprintf(stdout, "%s: %v\n", errors.CategoryOf(e), e)
	}
	for _, e := range res.LinkErrors {
		fmt.Fprintf(stdout, "link: %v\n", e)
	}
	if len(res.Unresolved) > 0 {
		fmt.Fprintf(stdout, "unresolved: %s\n", strings.Join(res.Unresolved, ", "))
	}
	fmt.Fprintf(stdout, "%d lines, %d people, %d rejected, %d unresolved, %d link errors\n",
		res.Lines, len(res.People), len(res.Errors), len(res.Unresolved), len(res.LinkErrors))
	if err != nil && len(res.Errors) == 0 {
		return err
	}
	return c.outcome(ex)
}

// DetectCmd reports whether a file looks like a line file.
type DetectCmd struct {
	Path string `arg:"" help:"File to inspect" type:"existingfile"`
}

func (c *DetectCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	res, err := (&famtree.Handler{}).Detect(c.Path)
	if err != nil {
		return err
	}
	if res.Detected {
		fmt.Fprintf(stdout, "[MATCH] %s: %s\n", res.Format, res.Reason)
		return nil
	}
	fmt.Fprintf(stdout, "[no]    %s\n", res.Reason)
	return fmt.Errorf("%s is not a %s line file", c.Path, famtree.FormatName)
}

// EmitCmd writes a JSON tree or a bundled tree back into the line grammar.
type EmitCmd struct {
	Path string `arg:"" help:"JSON tree or run bundle to emit" type:"existingfile"`
	Out  string `help:"Output path (default: stdout)" type:"path"`
}

func (c *EmitCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	tree, err := readTree(c.Path)
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	cfg.Output.Format = config.OutputText
	return writeTree(c.Out, cfg, &famtree.Handler{}, tree)
}

func readTree(path string) (*ir.Tree, error) {
	if archive.IsSupportedFormat(path) {
		b, err := archive.ReadBundle(path)
		if err != nil {
			return nil, err
		}
		return b.Tree, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return famtree.ReadJSON(f)
}

// DBLoadCmd prints a stored run.
type DBLoadCmd struct {
	DB    string `arg:"" help:"SQLite database" type:"existingfile"`
	RunID string `name:"run" required:"" help:"Run ID to load"`
}

func (c *DBLoadCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	s, err := store.OpenReadOnly(ctx, c.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	tree, err := s.Load(ctx, c.RunID)
	if err != nil {
		return err
	}
	return famtree.WriteJSON(stdout, tree, cfg.Output.Indent)
}

// DBListCmd lists stored runs.
type DBListCmd struct {
	DB string `arg:"" help:"SQLite database" type:"existingfile"`
}

func (c *DBListCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	ctx := context.Background()
	s, err := store.OpenReadOnly(ctx, c.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "%s\t%s\t%d people\t%s\n", r.RunID, r.TreeID, r.People, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// DBDeleteCmd removes a stored run.
type DBDeleteCmd struct {
	DB    string `arg:"" help:"SQLite database" type:"existingfile"`
	RunID string `name:"run" required:"" help:"Run ID to delete"`
}

func (c *DBDeleteCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	ctx := logging.WithRunID(context.Background(), c.RunID)
	s, err := store.Open(ctx, c.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Delete(ctx, c.RunID); err != nil {
		return err
	}
	logging.InfoContext(ctx, "run_deleted", "db", c.DB)
	return nil
}

// ArchiveShowCmd prints a run manifest from an input archive.
type ArchiveShowCmd struct {
	Dir   string `arg:"" help:"Archive directory" type:"existingdir"`
	RunID string `name:"run" required:"" help:"Run ID to show"`
}

func (c *ArchiveShowCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	_, m, err := openArchivedRun(c.Dir, c.RunID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// ArchiveCatCmd writes the archived input of a run to stdout.
type ArchiveCatCmd struct {
	Dir   string `arg:"" help:"Archive directory" type:"existingdir"`
	RunID string `name:"run" required:"" help:"Run ID whose input to print"`
}

func (c *ArchiveCatCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	s, m, err := openArchivedRun(c.Dir, c.RunID)
	if err != nil {
		return err
	}
	data, err := s.GetByBlake3(m.Digest.BLAKE3)
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

func openArchivedRun(dir, runID string) (*cas.Store, *cas.Manifest, error) {
	s, err := cas.NewStore(dir)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.ReadManifest(runID)
	if err != nil {
		return nil, nil, err
	}
	return s, m, nil
}

// ConfigCmd writes the configuration in effect after flags, file and environment.
type ConfigCmd struct {
	Out string `arg:"" help:"YAML file to write" type:"path"`
}

func (c *ConfigCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	return cfg.Save(c.Out)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "famtree version %s\n", version)
	fmt.Fprintf(stdout, "document schema %s\n", ir.Version)
	fmt.Fprintf(stdout, "sqlite driver %s (%s)\n", info.Package, info.DriverType)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("famtree"),
		kong.Description("Family tree line file decoder"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
