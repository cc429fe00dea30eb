package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// contentHash fingerprints a fetched snapshot so same-length collections
// with edited fields still register as changed.
func contentHash[T any](records []T) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
