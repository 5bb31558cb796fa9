package tables

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// ComputeChecksum computes a SHA256 checksum for the given data, prefixed
// with the algorithm name. Used for sink artifacts (parquet files).
func ComputeChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// VerifyChecksum verifies that data matches the expected checksum.
func VerifyChecksum(data []byte, expected string) bool {
	actual := ComputeChecksum(data)
	return actual == expected
}

// HashFileContent computes the raw hex SHA256 of a file's byte content.
// This is the content identity stored in file_commit_mapping and blame rows;
// it carries no algorithm prefix to keep join keys compact.
func HashFileContent(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
