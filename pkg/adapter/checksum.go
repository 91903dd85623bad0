package adapter

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// FileSHA1 computes the hex SHA-1 digest of a file, streaming so that
// arbitrarily large objects do not load into memory.
func FileSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for checksumming: %w", path, err)
	}
	defer f.Close()
	return ReaderSHA1(f)
}

// ReaderSHA1 computes the hex SHA-1 digest of a stream.
func ReaderSHA1(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to checksum stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ObjectName builds the storage name of a non-canonical copy.
func ObjectName(resourceUUID, filename string) string {
	return resourceUUID + "_" + filename
}

// CanonicalObjectName builds the storage name of a canonical copy.
func CanonicalObjectName(resourceUUID, filename string) string {
	return "canonical_" + resourceUUID + "_" + filename
}
