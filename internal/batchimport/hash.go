package batchimport

import (
	"crypto/sha256"
	"encoding/hex"
)

// FileHash is the lowercase hex SHA-256 of the raw file bytes. The backend
// uses it to reject a file that was imported before.
func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
