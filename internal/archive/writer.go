package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// WriteBundle writes b to dstPath, compressed according to its extension.
// Parent directories of dstPath are created.
func WriteBundle(dstPath string, b *Bundle) error {
	format := DetectFormat(dstPath)
	if format == "unknown" {
		return fmt.Errorf("unsupported archive format: %s", dstPath)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	outFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	if err := Write(outFile, format, b); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}

// Write streams b to w as a tar archive in the given format.
// Entries live under a directory named after the run ID and carry the
// manifest timestamp, so the same run always packs to the same bytes.
func Write(w io.Writer, format string, b *Bundle) error {
	if b.Tree == nil {
		return fmt.Errorf("bundle has no tree")
	}
	manifest, err := json.MarshalIndent(b.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	tree, err := json.MarshalIndent(b.Tree, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	var out io.WriteCloser
	switch format {
	case "tar.xz":
		xw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("xz writer: %w", err)
		}
		out = xw
	case "tar.gz":
		out = gzip.NewWriter(w)
	case "tar":
		out = nopCloser{w}
	default:
		return fmt.Errorf("unsupported archive format: %s", format)
	}

	tw := tar.NewWriter(out)
	baseDir := b.Manifest.RunID
	if baseDir == "" {
		baseDir = b.Tree.ID
	}
	entries := []struct {
		name string
		data []byte
	}{
		{ManifestFile, manifest},
		{TreeFile, tree},
		{InputFile, b.Input},
	}
	for _, e := range entries {
		header := &tar.Header{
			Name:    baseDir + "/" + e.name,
			Mode:    0644,
			Size:    int64(len(e.data)),
			ModTime: b.Manifest.CreatedAt,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to create archive: %w", err)
		}
		if _, err := tw.Write(e.data); err != nil {
			return fmt.Errorf("failed to create archive: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return out.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
