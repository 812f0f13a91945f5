// Package contentid computes content fingerprints for intake items.
//
// Fingerprint Format: b2-<hex:32> (35 chars total including dash)
//
// The digest is a 128-bit BLAKE2b hash of the file bytes. Fingerprints are
// recorded on snapshot items and used to flag possible duplicates in a batch.
package contentid

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"golang.org/x/crypto/blake2b"
)

const (
	prefix    = "b2-"
	digestLen = 16
	idLen     = len(prefix) + digestLen*2
)

// Errors
var (
	ErrInvalidFormat = errors.New("invalid fingerprint format")
)

// Fingerprint identifies file content.
type Fingerprint string

// String returns the string representation of the Fingerprint.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns the first 8 hex characters, for log lines.
func (f Fingerprint) Short() string {
	if len(f) < len(prefix)+8 {
		return string(f)
	}
	return string(f[len(prefix) : len(prefix)+8])
}

func newHash() hashWriter {
	h, err := blake2b.New(digestLen, nil)
	if err != nil {
		// Only possible with an invalid size or key.
		panic(fmt.Sprintf("contentid: %v", err))
	}
	return h
}

type hashWriter interface {
	io.Writer
	Sum(b []byte) []byte
}

func encode(sum []byte) Fingerprint {
	return Fingerprint(prefix + hex.EncodeToString(sum))
}

// Bytes fingerprints an in-memory payload.
func Bytes(b []byte) Fingerprint {
	h := newHash()
	_, _ = h.Write(b)
	return encode(h.Sum(nil))
}

// Reader fingerprints everything read from r.
func Reader(r io.Reader) (Fingerprint, error) {
	h := newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return encode(h.Sum(nil)), nil
}

// File fingerprints the file at path.
func File(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}

// Parse validates a fingerprint string.
func Parse(s string) (Fingerprint, error) {
	if len(s) != idLen {
		return "", fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidFormat, idLen, len(s))
	}
	if s[:len(prefix)] != prefix {
		return "", fmt.Errorf("%w: missing %q prefix", ErrInvalidFormat, prefix)
	}
	if _, err := hex.DecodeString(s[len(prefix):]); err != nil {
		return "", fmt.Errorf("%w: digest is not hex", ErrInvalidFormat)
	}
	return Fingerprint(s), nil
}

// IsValid checks if a string is a valid fingerprint.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Duplicates groups names whose fingerprints collide. Each group is sorted
// and groups are ordered by their first name. Empty fingerprints are ignored.
func Duplicates(byName map[string]Fingerprint) [][]string {
	groups := make(map[Fingerprint][]string)
	for name, fp := range byName {
		if fp == "" {
			continue
		}
		groups[fp] = append(groups[fp], name)
	}

	var out [][]string
	for _, names := range groups {
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		out = append(out, names)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
