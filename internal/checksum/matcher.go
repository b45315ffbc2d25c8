// Package checksum computes workbook digests. Imports record the digest in
// the audit entry of every committed row and clients may send one to have
// the upload verified.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Matcher verifies uploaded bytes against a digest supplied by the client.
type Matcher struct {
	expected string
}

func NewMatcher(expected string) *Matcher {
	return &Matcher{expected: strings.ToLower(strings.TrimSpace(expected))}
}

// Match reports whether data hashes to the expected digest.
func (m *Matcher) Match(data []byte) (bool, error) {
	if m.expected == "" {
		return false, errors.New("expected checksum is not set")
	}
	return Digest(data) == m.expected, nil
}
