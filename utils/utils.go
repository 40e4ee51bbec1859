package utils

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrTooLarge is returned by ReadLimited when the input exceeds the limit
var ErrTooLarge = errors.New("input exceeds size limit")

// ReadLimited reads all of r, failing if it holds more than limit bytes
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	// Read one byte past the limit so an oversized input can be detected
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: maximum size is %d bytes", ErrTooLarge, limit)
	}

	return data, nil
}

// DecodeText decodes b as UTF-8, replacing invalid sequences with U+FFFD
func DecodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// Redact keeps only the trailing characters of an identifier
func Redact(s string) string {
	const keep = 6
	if len(s) <= keep {
		return strings.Repeat("*", len(s))
	}
	return "..." + s[len(s)-keep:]
}
