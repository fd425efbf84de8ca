package weights

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// hashPattern finds the torch.hub hash prefix in a file name,
// e.g. "resnet18-5c106cde.pth" → "5c106cde".
var hashPattern = regexp.MustCompile(`-([a-f0-9]+)\.`)

// HashPrefix returns the SHA-256 prefix embedded in a checkpoint file name,
// or "" when the name carries none.
func HashPrefix(filename string) string {
	m := hashPattern.FindStringSubmatch(filename)
	if m == nil {
		return ""
	}
	return m[1]
}

// ComputeChecksumReader computes the SHA-256 checksum of everything r yields.
func ComputeChecksumReader(r io.Reader) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateHashPrefix reports ErrChecksumMismatch unless the hex digest of
// sum starts with prefix.
func ValidateHashPrefix(sum [32]byte, prefix string) error {
	digest := hex.EncodeToString(sum[:])
	if !strings.HasPrefix(digest, prefix) {
		return fmt.Errorf("%w: sha256 %s does not start with %s", ErrChecksumMismatch, digest, prefix)
	}
	return nil
}

// VerifyFile checks the file at path against the hash prefix in its name.
// Files without a prefix always pass.
func VerifyFile(path string) error {
	prefix := HashPrefix(filepath.Base(path))
	if prefix == "" {
		return nil
	}

	//nolint:gosec // G304: cache path is derived from the configured cache directory
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	sum, err := ComputeChecksumReader(f)
	if err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	return ValidateHashPrefix(sum, prefix)
}
