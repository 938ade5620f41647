// Package archive packs parse runs into compressed tar bundles and reads them
// back. A bundle holds the raw input, the decoded tree and the run manifest.
// It supports tar, tar.gz and tar.xz.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/bcowgill/d3-family-tree/core/cas"
	"github.com/bcowgill/d3-family-tree/core/ir"
)

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader creates a new archive reader for the given path.
// It automatically detects and handles .tar.gz and .tar.xz compression.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var reader io.Reader = f
	var decompressor io.Closer

	switch DetectFormat(path) {
	case "tar.xz":
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case "tar.gz":
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	case "tar":
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported archive format: %s", path)
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var first error
	if r.decompressor != nil {
		first = r.decompressor.Close()
	}
	if err := r.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Visitor is a callback function for iterating archive entries.
// Return true to stop iteration, false to continue.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through all entries in the archive, calling the visitor for each.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// IterateBundle opens an archive and iterates through its entries.
func IterateBundle(path string, visitor Visitor) error {
	r, err := NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Iterate(visitor)
}

// entryName drops the leading run directory.
func entryName(name string) string {
	if idx := strings.Index(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// ReadFile reads a specific file from the archive.
func ReadFile(archivePath, filename string) ([]byte, error) {
	var content []byte
	err := IterateBundle(archivePath, func(header *tar.Header, r io.Reader) (bool, error) {
		if entryName(header.Name) == filename || header.Name == filename {
			var err error
			content, err = io.ReadAll(r)
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("file not found: %s", filename)
	}
	return content, nil
}

// ReadBundle loads a bundle in one pass. The tree must validate and the
// input must match the manifest digest. A manifest tree hash, when present,
// must match the tree.
func ReadBundle(path string) (*Bundle, error) {
	files := make(map[string][]byte, 3)
	err := IterateBundle(path, func(header *tar.Header, r io.Reader) (bool, error) {
		name := entryName(header.Name)
		switch name {
		case ManifestFile, TreeFile, InputFile:
			data, err := io.ReadAll(r)
			if err != nil {
				return true, fmt.Errorf("read %s: %w", name, err)
			}
			files[name] = data
		}
		return len(files) == 3, nil
	})
	if err != nil {
		return nil, err
	}
	for _, name := range []string{ManifestFile, TreeFile, InputFile} {
		if _, ok := files[name]; !ok {
			return nil, fmt.Errorf("bundle %s: missing %s", path, name)
		}
	}

	var b Bundle
	if err := json.Unmarshal(files[ManifestFile], &b.Manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	b.Tree = &ir.Tree{}
	if err := json.Unmarshal(files[TreeFile], b.Tree); err != nil {
		return nil, fmt.Errorf("failed to parse tree: %w", err)
	}
	if errs := ir.ValidateTree(b.Tree); len(errs) > 0 {
		return nil, fmt.Errorf("bundle %s: invalid tree: %w", path, errs[0])
	}
	if b.Manifest.TreeHash != "" {
		got, err := ir.HashTree(b.Tree)
		if err != nil {
			return nil, fmt.Errorf("bundle %s: hash tree: %w", path, err)
		}
		if got != b.Manifest.TreeHash {
			return nil, fmt.Errorf("bundle %s: tree hash %s does not match manifest %s", path, got, b.Manifest.TreeHash)
		}
	}
	b.Input = files[InputFile]
	if got := cas.SHA256(b.Input); got != b.Manifest.Digest.SHA256 {
		return nil, fmt.Errorf("bundle %s: input hash %s does not match manifest %s", path, got, b.Manifest.Digest.SHA256)
	}
	return &b, nil
}
