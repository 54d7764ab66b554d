// Package integrity hashes completed downloads and checks them against the
// checksum the backend published for the version.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/remakesof/launcher/internal/domain"
)

// BufferSize is the block size files are read in.
const BufferSize = 8 << 10 // 8KB

// HashFile returns the lowercase hex SHA-256 digest of the file at path.
func HashFile(path string) (string, error) {
	return HashFileWith(path, sha256.New())
}

// HashFileWith streams the file at path through h and returns the digest as
// lowercase hex. h is reset first. No digest is returned when a read fails.
func HashFileWith(path string, h hash.Hash) (string, error) {
	if h == nil {
		return "", fmt.Errorf("%w: nil hash", domain.ErrInvalidInput)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", domain.ErrFilesystem, path, err)
	}
	defer f.Close()

	h.Reset()
	buf := make([]byte, BufferSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return "", fmt.Errorf("%w: read %s: %w", domain.ErrFilesystem, path, rerr)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether the file's SHA-256 digest equals expected, ignoring
// hex letter case. A mismatch is not an error.
func Verify(path, expected string) (bool, error) {
	actual, err := HashFile(path)
	if err != nil {
		return false, err
	}
	return Equal(actual, expected), nil
}

// Equal compares two hex digests case-insensitively.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
