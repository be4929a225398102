package asset

import "strings"

// MaxSize is the largest accepted upload in bytes (100 MiB).
const MaxSize int64 = 100 * 1024 * 1024

// Validate decides whether an upload with the declared filename and byte
// length is acceptable and returns its format.
//
// Checks run in order: presence, size, format. An oversized upload is
// rejected as too large whatever its extension. A zero-length payload counts
// as absent.
func Validate(filename string, size int64) (Format, error) {
	if filename == "" || size <= 0 {
		return "", ErrMissingPayload
	}

	if size > MaxSize {
		return "", &PayloadTooLargeError{Actual: size, Limit: MaxSize}
	}

	ext := ""
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		ext = strings.ToLower(filename[i+1:])
	}
	format, ok := ParseFormat(ext)
	if !ok {
		return "", &UnsupportedFormatError{Actual: ext}
	}
	return format, nil
}
