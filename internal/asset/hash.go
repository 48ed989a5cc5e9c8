// Package asset defines the primary key types of the asset server: content
// hashes and virtual paths.
package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// HashLength is the length in bytes of a raw SHA-256 sum.
const HashLength = sha256.Size

// hashHexPattern matches a lowercase hex-encoded SHA-256 digest, exactly as
// written to map.json and to the wire.
var hashHexPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// ErrInvalidHash is returned when a string fails hash validation.
var ErrInvalidHash = errors.New("asset: invalid hash")

// Hash is the lowercase hex SHA-256 of a content blob. It is the primary key
// of the content store. The zero value is not a valid Hash.
type Hash string

// HashBytes computes the Hash of p.
func HashBytes(p []byte) Hash {
	sum := sha256.Sum256(p)
	return Hash(hex.EncodeToString(sum[:]))
}

// NewHashFromRaw builds a Hash from a raw 32-byte SHA-256 sum, as carried on
// the wire (u8[32]).
func NewHashFromRaw(raw []byte) (Hash, error) {
	if len(raw) != HashLength {
		return "", fmt.Errorf("%w: expected %d raw bytes, got %d", ErrInvalidHash, HashLength, len(raw))
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// ParseHash validates and returns h as a Hash.
func ParseHash(h string) (Hash, error) {
	if !IsValidHash(h) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, h)
	}
	return Hash(h), nil
}

// IsValidHash reports whether s is exactly 64 lowercase hex characters.
func IsValidHash(s string) bool {
	return hashHexPattern.MatchString(s)
}

// Raw returns the 32 raw bytes this Hash decodes to. Panics if h is not
// valid hex of the right length; callers must construct Hash through
// ParseHash, HashBytes, or NewHashFromRaw.
func (h Hash) Raw() []byte {
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		panic("asset: Hash holds non-hex value: " + err.Error())
	}
	return raw
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return string(h)
}

// Valid reports whether h is a well-formed hash.
func (h Hash) Valid() bool {
	return IsValidHash(string(h))
}
