package cas

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Digest carries both hashes of an archived blob.
type Digest struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// Sum hashes data without storing it.
func Sum(data []byte) Digest {
	return Digest{SHA256: SHA256(data), BLAKE3: BLAKE3(data)}
}

// BLAKE3 computes the BLAKE3-256 hash of data as lowercase hex.
func BLAKE3(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

type blake3Pointer struct {
	SHA256 string `json:"sha256"`
}

// putPointer maps d.BLAKE3 to d.SHA256 at <root>/blobs/blake3/<first2>/<blake3>.json.
func (s *Store) putPointer(d Digest) error {
	path := s.pointerPath(d.BLAKE3)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.Marshal(blake3Pointer{SHA256: d.SHA256})
	if err != nil {
		return fmt.Errorf("failed to marshal pointer: %w", err)
	}
	return writeAtomic(path, data)
}

// Resolve returns the SHA-256 hash recorded for a BLAKE3 hash.
func (s *Store) Resolve(b3 string) (string, error) {
	if !isValidHash(b3) {
		return "", ErrInvalidHash
	}
	data, err := os.ReadFile(s.pointerPath(b3))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrBlobNotFound
		}
		return "", fmt.Errorf("failed to read pointer: %w", err)
	}
	var p blake3Pointer
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("failed to parse pointer: %w", err)
	}
	return p.SHA256, nil
}

// GetByBlake3 returns the blob whose BLAKE3 hash is b3.
func (s *Store) GetByBlake3(b3 string) ([]byte, error) {
	sha, err := s.Resolve(b3)
	if err != nil {
		return nil, err
	}
	return s.Get(sha)
}

func (s *Store) pointerPath(b3 string) string {
	return filepath.Join(s.root, "blobs", "blake3", b3[:2], b3+".json")
}
