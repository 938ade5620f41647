package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// jsonMarshal is a variable to allow testing of marshal errors.
var jsonMarshal = json.Marshal

// HashTree computes the SHA-256 hash of a Tree's people by serializing to JSON.
// Run metadata is excluded so two parses of the same input hash alike.
func HashTree(t *Tree) (string, error) {
	data, err := jsonMarshal(t.People)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}
