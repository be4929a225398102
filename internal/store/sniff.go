package store

import (
	"bytes"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of the stream is held in memory for detection.
// ASCII STL ("solid …") and OBJ ("v …") headers fit well within it.
const sniffLen = 3072

// Sniff reads up to sniffLen bytes from r to detect the content's MIME type,
// then returns:
//
//   - mime: the detected type, e.g. "text/plain; charset=utf-8" for ASCII
//     STL/OBJ or "application/octet-stream" for binary STL
//   - full: an io.Reader that replays the sniffed bytes followed by the rest of r
//
// The prefix is held in a small heap buffer and prepended via io.MultiReader,
// so the caller still sees the complete stream.
func Sniff(r io.Reader) (mime string, full io.Reader) {
	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(r, head)
	head = head[:n]

	full = io.MultiReader(bytes.NewReader(head), r)
	if n == 0 {
		return "", full
	}
	return mimetype.Detect(head).String(), full
}
