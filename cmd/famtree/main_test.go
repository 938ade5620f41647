package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/bcowgill/d3-family-tree/core/cas"
	fterrors "github.com/bcowgill/d3-family-tree/core/errors"
	"github.com/bcowgill/d3-family-tree/core/ir"
	"github.com/bcowgill/d3-family-tree/internal/archive"
	"github.com/bcowgill/d3-family-tree/internal/config"
	"github.com/bcowgill/d3-family-tree/internal/formats/famtree"
)

const family = `# The Smiths
A1;M;John Smith;b:1900;m:A2;d:1970
A2;F;Jane Doe;b:1902;m:A1
K1;F;Kate Smith;b:1930;pf:A1;pm:A2;cn:1
K2;M;Tom Smith;pf:A1;pm:Mom9
`

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// run parses args into a fresh CLI and runs the selected command, capturing stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	CLI = cli{}
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()

	parser, err := kong.New(&CLI, kong.Name("famtree"), kong.Exit(func(int) {}))
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	err = ctx.Run()
	return buf.String(), err
}

func TestParseCmdJSON(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "family.txt", family)

	out, err := run(t, "parse", path)
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	tree, err := famtree.ReadJSON(strings.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a valid tree: %v\n%s", err, out)
	}
	if tree.ID != "family" || len(tree.People) != 4 || tree.RunID == "" {
		t.Errorf("tree = %s/%s with %d people", tree.ID, tree.RunID, len(tree.People))
	}
	if len(tree.Unresolved) != 1 || tree.Unresolved[0] != "Mom9" {
		t.Errorf("Unresolved = %v, want [Mom9]", tree.Unresolved)
	}
	if len(tree.People[0].Children) != 0 {
		t.Errorf("children should stay empty without --link, got %v", tree.People[0].Children)
	}
}

func TestParseCmdLinkAndText(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "family.txt", family)

	out, err := run(t, "parse", path, "--link", "--format", "text")
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	for _, want := range []string{
		"# FAMTREE family\n",
		"A1;M;John Smith;b:1900;m:1:A2;d:1970\n",
		"K2;M;Tom Smith;pm:Mom9;pf:A1\n",
		"# unresolved: Mom9\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestParseCmdErrors(t *testing.T) {
	dir := t.TempDir()
	dup := createTestFile(t, dir, "dup.txt", "A1;M;John\nA1;F;Jane\nA2;F;Ann\n")

	if _, err := run(t, "parse", dup); !errors.Is(err, fterrors.ErrDuplicateID) {
		t.Errorf("failfast parse error = %v, want ErrDuplicateID", err)
	}

	out, err := run(t, "parse", dup, "--collect")
	if err == nil || !strings.Contains(err.Error(), "1 of 3 lines rejected") {
		t.Errorf("collect parse error = %v", err)
	}
	tree, rerr := famtree.ReadJSON(strings.NewReader(out))
	if rerr != nil || len(tree.People) != 2 {
		t.Errorf("collect mode should still write the tree: %v", rerr)
	}

	dangling := createTestFile(t, dir, "family.txt", family)
	if _, err := run(t, "parse", dangling, "--strict"); !errors.Is(err, fterrors.ErrUnresolvedReference) {
		t.Errorf("strict parse error = %v, want ErrUnresolvedReference", err)
	}
	if _, err := run(t, "parse", dangling, "--format", "xml"); err == nil {
		t.Error("unknown output format should fail")
	}
	if _, err := run(t, "--log-level", "loud", "parse", dangling); err == nil {
		t.Error("unknown log level should fail")
	}
	if _, err := run(t, "parse", filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("missing input should fail")
	}
}

const unknownSexParent = `K1;M;Kid One;pf:D;pm:U
K2;F;Kid Two;pf:D;pm:U
D;M;Dad
U;X;Unknown
`

func TestParseCmdLinkErrors(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "kids.txt", unknownSexParent)

	out, err := run(t, "parse", path, "--collect", "--link")
	if err == nil || !strings.Contains(err.Error(), "2 child links failed") {
		t.Fatalf("parse error = %v, want 2 child links failed", err)
	}
	if strings.Contains(err.Error(), "rejected") {
		t.Errorf("link failures should not count as rejected lines: %v", err)
	}
	tree, err := famtree.ReadJSON(strings.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a valid tree: %v", err)
	}
	if got := tree.People[2].Children; len(got) != 2 || got[0] != "K1" || got[1] != "K2" {
		t.Errorf("D children = %v, want [K1 K2]", got)
	}
	if got := tree.People[3].Children; len(got) != 0 {
		t.Errorf("U children = %v, want none", got)
	}

	out, err = run(t, "check", path, "--collect", "--link")
	if err == nil {
		t.Error("check should fail on link errors")
	}
	if strings.Count(out, "link: ") != 2 || !strings.Contains(out, "4 lines, 4 people, 0 rejected, 0 unresolved, 2 link errors\n") {
		t.Errorf("check output = %q", out)
	}
}

type failingCloser struct{ bytes.Buffer }

func (*failingCloser) Close() error { return errors.New("disk full") }

func TestWriteTreeReportsCloseError(t *testing.T) {
	old := createFile
	defer func() { createFile = old }()
	w := &failingCloser{}
	createFile = func(string) (io.WriteCloser, error) { return w, nil }

	tree := &ir.Tree{ID: "t", Version: ir.Version}
	err := writeTree("tree.json", config.DefaultConfig(), &famtree.Handler{}, tree)
	if err == nil || !strings.Contains(err.Error(), "failed to close tree.json: disk full") {
		t.Errorf("writeTree() error = %v, want close error", err)
	}
	if w.Len() == 0 {
		t.Error("tree should be written before close")
	}
}

func TestParseEmitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "family.txt", family)
	treePath := filepath.Join(dir, "family.json")

	if _, err := run(t, "parse", path, "--out", treePath); err != nil {
		t.Fatalf("parse error = %v", err)
	}
	native := filepath.Join(dir, "again.txt")
	if _, err := run(t, "emit", treePath, "--out", native); err != nil {
		t.Fatalf("emit error = %v", err)
	}

	first, err := os.ReadFile(treePath)
	if err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "parse", native)
	if err != nil {
		t.Fatalf("re-parse error = %v", err)
	}
	a, _ := famtree.ReadJSON(bytes.NewReader(first))
	b, _ := famtree.ReadJSON(strings.NewReader(out))
	if a == nil || b == nil || len(a.People) != len(b.People) {
		t.Fatalf("round trip lost people")
	}
	for i := range a.People {
		if famtree.FormatRecord(a.People[i]) != famtree.FormatRecord(b.People[i]) {
			t.Errorf("record %d differs: %q vs %q", i, famtree.FormatRecord(a.People[i]), famtree.FormatRecord(b.People[i]))
		}
	}
}

func TestParseCmdStoreAndArchive(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "family.txt", family)
	dbPath := filepath.Join(dir, "famtree.db")
	archiveDir := filepath.Join(dir, "archive")

	out, err := run(t, "parse", path, "--db", dbPath, "--archive", archiveDir)
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	tree, err := famtree.ReadJSON(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := run(t, "db", "load", dbPath, "--run", tree.RunID)
	if err != nil {
		t.Fatalf("db load error = %v", err)
	}
	back, err := famtree.ReadJSON(strings.NewReader(loaded))
	if err != nil {
		t.Fatal(err)
	}
	if back.RunID != tree.RunID || len(back.People) != 4 || back.SourceHash != tree.SourceHash {
		t.Errorf("db load returned %+v", back)
	}

	list, err := run(t, "db", "list", dbPath)
	if err != nil {
		t.Fatalf("db list error = %v", err)
	}
	if !strings.Contains(list, tree.RunID+"\tfamily\t4 people") {
		t.Errorf("db list output = %q", list)
	}

	if _, err := run(t, "db", "load", dbPath, "--run", "nope"); !errors.Is(err, fterrors.ErrNotFound) {
		t.Errorf("db load missing run error = %v", err)
	}

	archive, err := cas.NewStore(archiveDir)
	if err != nil {
		t.Fatal(err)
	}
	if !archive.Has(tree.SourceHash) {
		t.Error("input was not archived")
	}
	if _, err := archive.ReadManifest(tree.RunID); err != nil {
		t.Errorf("ReadManifest() error = %v", err)
	}
}

func TestDBDeleteCmd(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "family.txt", family)
	dbPath := filepath.Join(dir, "famtree.db")

	out, err := run(t, "parse", path, "--db", dbPath)
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	tree, err := famtree.ReadJSON(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "db", "delete", dbPath, "--run", tree.RunID); err != nil {
		t.Fatalf("db delete error = %v", err)
	}
	if _, err := run(t, "db", "load", dbPath, "--run", tree.RunID); !errors.Is(err, fterrors.ErrNotFound) {
		t.Errorf("db load after delete error = %v, want ErrNotFound", err)
	}
	if _, err := run(t, "db", "delete", dbPath, "--run", tree.RunID); !errors.Is(err, fterrors.ErrNotFound) {
		t.Errorf("second db delete error = %v, want ErrNotFound", err)
	}
	list, err := run(t, "db", "list", dbPath)
	if err != nil || list != "" {
		t.Errorf("db list = %q, %v", list, err)
	}
}

func TestArchiveCmds(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "family.txt", family)
	archiveDir := filepath.Join(dir, "archive")

	out, err := run(t, "parse", path, "--archive", archiveDir)
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	tree, err := famtree.ReadJSON(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}

	shown, err := run(t, "archive", "show", archiveDir, "--run", tree.RunID)
	if err != nil {
		t.Fatalf("archive show error = %v", err)
	}
	for _, want := range []string{`"run_id": "` + tree.RunID + `"`, `"sha256": "` + tree.SourceHash + `"`, `"tree_hash": "`} {
		if !strings.Contains(shown, want) {
			t.Errorf("archive show missing %s:\n%s", want, shown)
		}
	}

	input, err := run(t, "archive", "cat", archiveDir, "--run", tree.RunID)
	if err != nil {
		t.Fatalf("archive cat error = %v", err)
	}
	if input != family {
		t.Errorf("archive cat = %q, want original input", input)
	}

	if _, err := run(t, "archive", "cat", archiveDir, "--run", "nope"); !errors.Is(err, cas.ErrBlobNotFound) {
		t.Errorf("archive cat missing run error = %v", err)
	}
}

func TestConfigCmd(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "conf", "famtree.yaml")
	t.Setenv("FAMTREE_PARSE_MODE", "collect")

	if _, err := run(t, "--log-level", "warn", "config", out); err != nil {
		t.Fatalf("config error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"level: warn", "mode: collect"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("saved config missing %q:\n%s", want, data)
		}
	}
}

func TestMissingConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "family.txt", family)

	_, err := run(t, "--config", filepath.Join(dir, "missing.yaml"), "parse", path)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("parse error = %v, want missing config", err)
	}
}

func TestParseCmdBundle(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "family.txt", family)
	bundle := filepath.Join(dir, "family.bundle.tar.xz")

	if _, err := run(t, "parse", path, "--bundle", bundle); err != nil {
		t.Fatalf("parse error = %v", err)
	}
	b, err := archive.ReadBundle(bundle)
	if err != nil {
		t.Fatalf("ReadBundle() error = %v", err)
	}
	if string(b.Input) != family || b.Manifest.People != 4 || b.Manifest.RunID != b.Tree.RunID {
		t.Errorf("bundle manifest = %+v", b.Manifest)
	}

	out, err := run(t, "emit", bundle)
	if err != nil {
		t.Fatalf("emit bundle error = %v", err)
	}
	if !strings.Contains(out, "A2;F;Jane Doe;b:1902;m:1:A1\n") {
		t.Errorf("emit output = %q", out)
	}
}

func TestCheckCmd(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "family.txt", family)

	out, err := run(t, "check", path)
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "unresolved: Mom9\n") || !strings.Contains(out, "4 lines, 4 people, 0 rejected, 1 unresolved, 0 link errors\n") {
		t.Errorf("check output = %q", out)
	}

	bad := createTestFile(t, dir, "bad.txt", "A1;Q;John\nA2;M;Bob;b:x\nA3;F;Ann\n")
	out, err = run(t, "check", bad, "--collect")
	if err == nil {
		t.Error("check should fail on rejected lines")
	}
	if !strings.Contains(out, "value: person information") || !strings.Contains(out, "3 lines, 1 people, 2 rejected") {
		t.Errorf("check output = %q", out)
	}
}

func TestDetectCmd(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "detect", createTestFile(t, dir, "family.txt", family))
	if err != nil || !strings.Contains(out, "[MATCH] FAMTREE") {
		t.Errorf("detect = %q, %v", out, err)
	}
	out, err = run(t, "detect", createTestFile(t, dir, "notes.txt", "just some notes\n"))
	if err == nil || !strings.Contains(out, "[no]") {
		t.Errorf("detect = %q, %v", out, err)
	}
}

func TestEmitCmdRejectsInvalidTree(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "tree.json", `{"version":"1.0.0","people":[]}`)
	if _, err := run(t, "emit", path); err == nil || !strings.Contains(err.Error(), "ID is required") {
		t.Errorf("emit error = %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "famtree version "+version) || !strings.Contains(out, "sqlite driver") {
		t.Errorf("version output = %q", out)
	}
}
