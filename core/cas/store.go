// Package cas archives family tree inputs by content.
//
// Blobs live under <root>/blobs/sha256/<first2>/<hash>. A BLAKE3 pointer for
// each blob and a manifest for each parse run sit beside them, so a run can
// always be traced back to the exact bytes it decoded.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// ErrBlobNotFound is returned when no blob or pointer exists for a hash.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when a hash string is not 64 lowercase hex characters.
var ErrInvalidHash = errors.New("invalid hash format")

var hexPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Store is a content-addressed archive rooted at a directory.
type Store struct {
	root string
}

// NewStore opens the archive at root, creating its layout if needed.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{
		filepath.Join(root, "blobs", "sha256"),
		filepath.Join(root, "blobs", "blake3"),
		filepath.Join(root, "runs"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the archive directory.
func (s *Store) Root() string {
	return s.root
}

// Put archives data and returns its digest. Storing the same bytes twice is a no-op.
func (s *Store) Put(data []byte) (Digest, error) {
	d := Sum(data)
	blobPath := s.blobPath(d.SHA256)
	if _, err := os.Stat(blobPath); err != nil {
		if err := writeAtomic(blobPath, data); err != nil {
			return Digest{}, fmt.Errorf("failed to write blob: %w", err)
		}
	}
	if err := s.putPointer(d); err != nil {
		return Digest{}, fmt.Errorf("failed to create BLAKE3 pointer: %w", err)
	}
	return d, nil
}

// Get returns the blob with the given SHA-256 hash.
func (s *Store) Get(sha string) ([]byte, error) {
	if !isValidHash(sha) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.blobPath(sha))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Has reports whether a blob with the given SHA-256 hash is archived.
func (s *Store) Has(sha string) bool {
	if !isValidHash(sha) {
		return false
	}
	_, err := os.Stat(s.blobPath(sha))
	return err == nil
}

func (s *Store) blobPath(sha string) string {
	return filepath.Join(s.root, "blobs", "sha256", sha[:2], sha)
}

// writeAtomic writes data to a temp file beside path and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return err
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

func isValidHash(hash string) bool {
	return hexPattern.MatchString(hash)
}

// SHA256 computes the SHA-256 hash of data as lowercase hex.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
