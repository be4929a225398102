package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/zynqcloud/go-assets/internal/asset"
)

// TmpDir is the directory under root where in-flight writes are staged.
// cleanup.Sweep reclaims files abandoned there by a crash.
const TmpDir = ".tmp"

// Local stores artifacts on a filesystem under a configurable root directory.
//
// Cross-platform notes:
//   - Uses filepath (not path) throughout so the OS separator is always correct.
//     Locations themselves are slash-separated and converted on use.
//   - File permission bits (0o750 / 0o640) are silently ignored on Windows.
//   - Writes go to a temp file under root/.tmp and are renamed into place, so
//     the final path only ever holds complete content.
type Local struct {
	fs   afero.Fs
	root string
}

// NewLocal creates a Local backend on the OS filesystem rooted at root,
// creating the directory if needed.
func NewLocal(root string) (*Local, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return NewLocalFs(afero.NewOsFs(), absRoot)
}

// NewLocalFs creates a Local backend on an arbitrary afero filesystem.
// root must be absolute.
func NewLocalFs(fsys afero.Fs, root string) (*Local, error) {
	root = filepath.Clean(root)
	// MkdirAll keeps the call idempotent across restarts.
	if err := fsys.MkdirAll(filepath.Join(root, TmpDir), 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", root, err)
	}
	return &Local{fs: fsys, root: root}, nil
}

// Root returns the absolute storage root.
func (l *Local) Root() string { return l.root }

// Fs returns the underlying filesystem.
func (l *Local) Fs() afero.Fs { return l.fs }

// abs resolves a location to a concrete filesystem path.
// filepath.Rel verifies the result still lives under root, so a tampered
// location can never reach outside it.
func (l *Local) abs(location string) (string, error) {
	if location == "" {
		return "", errors.New("empty location")
	}
	joined := filepath.Join(l.root, filepath.Clean(filepath.FromSlash(location)))
	rel, err := filepath.Rel(l.root, joined)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("location %q escapes storage root", location)
	}
	return joined, nil
}

// Put streams r to a new location using a temp file + atomic rename.
func (l *Local) Put(ctx context.Context, r io.Reader, size int64) (PutResult, error) {
	location, dest, err := l.reserve()
	if err != nil {
		return PutResult{}, fmt.Errorf("%w: %w", asset.ErrStorageWriteFailed, err)
	}
	if err := l.fs.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return PutResult{}, fmt.Errorf("%w: mkdir %q: %w", asset.ErrStorageWriteFailed, filepath.Dir(dest), err)
	}

	tmp, err := afero.TempFile(l.fs, filepath.Join(l.root, TmpDir), ".put-*")
	if err != nil {
		return PutResult{}, fmt.Errorf("%w: create tmp: %w", asset.ErrStorageWriteFailed, err)
	}
	tmpPath := tmp.Name()

	hasher := sha256.New()
	src := &exactReader{r: ctxReader{ctx: ctx, r: r}, want: size}
	buf := make([]byte, 512*1024) // 512 KB keeps syscall count low for 100 MiB models
	n, werr := io.CopyBuffer(tmp, io.TeeReader(src, hasher), buf)
	var serr error
	if werr == nil {
		serr = tmp.Sync()
	}
	cerr := tmp.Close()

	if werr != nil {
		l.fs.Remove(tmpPath) //nolint:errcheck
		return PutResult{}, fmt.Errorf("%w: stream: %w", asset.ErrStorageWriteFailed, werr)
	}
	if serr != nil {
		l.fs.Remove(tmpPath) //nolint:errcheck
		return PutResult{}, fmt.Errorf("%w: sync: %w", asset.ErrStorageWriteFailed, serr)
	}
	if cerr != nil {
		l.fs.Remove(tmpPath) //nolint:errcheck
		return PutResult{}, fmt.Errorf("%w: flush: %w", asset.ErrStorageWriteFailed, cerr)
	}

	if err := l.fs.Rename(tmpPath, dest); err != nil {
		l.fs.Remove(tmpPath) //nolint:errcheck
		return PutResult{}, fmt.Errorf("%w: rename to %q: %w", asset.ErrStorageWriteFailed, dest, err)
	}
	return PutResult{Location: location, Size: n, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// reserve picks a location that is not yet occupied. UUID collisions are not
// expected; the retry only guarantees an existing artifact is never replaced.
func (l *Local) reserve() (location, dest string, err error) {
	for range 3 {
		location = newLocation()
		if dest, err = l.abs(location); err != nil {
			return "", "", err
		}
		exists, err := afero.Exists(l.fs, dest)
		if err != nil {
			return "", "", err
		}
		if !exists {
			return location, dest, nil
		}
	}
	return "", "", errors.New("could not allocate a unique location")
}

// Get opens location for sequential reading. Caller must close the returned ReadCloser.
func (l *Local) Get(_ context.Context, location string) (io.ReadCloser, int64, error) {
	abs, err := l.abs(location)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", asset.ErrArtifactNotFound, err)
	}
	f, err := l.fs.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", asset.ErrArtifactNotFound, location)
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%w: %s is a directory", asset.ErrArtifactNotFound, location)
	}
	return f, info.Size(), nil
}

// Delete removes location. Silently succeeds on ENOENT.
func (l *Local) Delete(_ context.Context, location string) error {
	abs, err := l.abs(location)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether location exists under root.
func (l *Local) Exists(_ context.Context, location string) (bool, error) {
	abs, err := l.abs(location)
	if err != nil {
		return false, err
	}
	_, err = l.fs.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Walk visits every committed artifact under root/models.
func (l *Local) Walk(ctx context.Context, fn func(Artifact) error) error {
	base := filepath.Join(l.root, locationPrefix)
	err := afero.Walk(l.fs, base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		return fn(Artifact{
			Location: filepath.ToSlash(rel),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	})
	if errors.Is(err, fs.ErrNotExist) {
		// Nothing has been stored yet.
		return nil
	}
	return err
}

// DiskStats returns available and total bytes on the volume holding root.
// (0, 0) means stats are unavailable (non-Linux, or a non-OS filesystem).
func (l *Local) DiskStats() (avail, total uint64) {
	if _, ok := l.fs.(*afero.OsFs); !ok {
		return 0, 0
	}
	return diskStats(l.root)
}
