package store_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zynqcloud/go-assets/internal/asset"
	"github.com/zynqcloud/go-assets/internal/store"
)

func newTestLocal(t *testing.T) *store.Local {
	t.Helper()
	root := t.TempDir() // cleaned up automatically after each test
	l, err := store.NewLocal(root)
	require.NoError(t, err)
	return l
}

func newMemLocal(t *testing.T) (*store.Local, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	l, err := store.NewLocalFs(fsys, "/data/assets")
	require.NoError(t, err)
	return l, fsys
}

// failingReader yields some bytes and then an error, like a client that
// disconnects mid-upload.
type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func tmpEntries(t *testing.T, fsys afero.Fs, root string) []os.FileInfo {
	t.Helper()
	entries, err := afero.ReadDir(fsys, filepath.Join(root, store.TmpDir))
	require.NoError(t, err)
	return entries
}

func TestPutAndGet(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	want := []byte("solid cube\nendsolid cube\n")

	res, err := l.Put(ctx, bytes.NewReader(want), int64(len(want)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), res.Size)
	assert.True(t, strings.HasPrefix(res.Location, "models/"), res.Location)

	sum := sha256.Sum256(want)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.SHA256)

	rc, size, err := l.Get(ctx, res.Location)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(len(want)), size)
}

func TestPutUnknownSize(t *testing.T) {
	l, _ := newMemLocal(t)
	res, err := l.Put(context.Background(), strings.NewReader("v 0 0 0\n"), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.Size)
}

func TestPutLocationsAreUnique(t *testing.T) {
	l, _ := newMemLocal(t)
	seen := map[string]bool{}
	for range 20 {
		res, err := l.Put(context.Background(), strings.NewReader("same bytes"), 10)
		require.NoError(t, err)
		assert.False(t, seen[res.Location], "location reused: %s", res.Location)
		seen[res.Location] = true
	}
}

func TestPutAbortedStreamLeavesNothing(t *testing.T) {
	l, fsys := newMemLocal(t)
	boom := errors.New("connection reset")

	_, err := l.Put(context.Background(), &failingReader{data: []byte("partial"), err: boom}, 100)
	require.ErrorIs(t, err, asset.ErrStorageWriteFailed)
	assert.ErrorIs(t, err, boom)

	assert.Empty(t, tmpEntries(t, fsys, l.Root()), "temp file not cleaned up")
	var count int
	require.NoError(t, l.Walk(context.Background(), func(store.Artifact) error { count++; return nil }))
	assert.Zero(t, count, "aborted write produced a visible artifact")
}

func TestPutShortStream(t *testing.T) {
	l, fsys := newMemLocal(t)
	_, err := l.Put(context.Background(), strings.NewReader("short"), 50)
	require.ErrorIs(t, err, asset.ErrStorageWriteFailed)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Empty(t, tmpEntries(t, fsys, l.Root()))
}

func TestPutLongStream(t *testing.T) {
	l, fsys := newMemLocal(t)
	_, err := l.Put(context.Background(), strings.NewReader("more than declared"), 4)
	require.ErrorIs(t, err, asset.ErrStorageWriteFailed)
	assert.Empty(t, tmpEntries(t, fsys, l.Root()))
}

func TestPutCancelledContext(t *testing.T) {
	l, _ := newMemLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Put(ctx, strings.NewReader("data"), 4)
	require.ErrorIs(t, err, asset.ErrStorageWriteFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetMissing(t *testing.T) {
	l := newTestLocal(t)
	_, _, err := l.Get(context.Background(), "models/ab/ghost")
	assert.ErrorIs(t, err, asset.ErrArtifactNotFound)
}

func TestDelete(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	res, err := l.Put(ctx, strings.NewReader("data"), 4)
	require.NoError(t, err)

	require.NoError(t, l.Delete(ctx, res.Location))
	ok, err := l.Exists(ctx, res.Location)
	require.NoError(t, err)
	assert.False(t, ok, "file still exists after Delete")

	_, _, err = l.Get(ctx, res.Location)
	assert.ErrorIs(t, err, asset.ErrArtifactNotFound)
}

func TestDeleteNonExistent(t *testing.T) {
	l := newTestLocal(t)
	// Must succeed silently.
	assert.NoError(t, l.Delete(context.Background(), "models/ab/ghost"))
}

func TestExists(t *testing.T) {
	l, _ := newMemLocal(t)
	ctx := context.Background()

	ok, err := l.Exists(ctx, "models/zz/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := l.Put(ctx, strings.NewReader("x"), 1)
	require.NoError(t, err)
	ok, err = l.Exists(ctx, res.Location)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestLocationTraversal verifies that locations escaping the root are rejected.
func TestLocationTraversal(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	for _, loc := range []string{
		"../escape",
		"../../etc/passwd",
		"models/../../escape",
		"",
		".",
	} {
		_, _, err := l.Get(ctx, loc)
		assert.ErrorIs(t, err, asset.ErrArtifactNotFound, "Get(%q)", loc)
		assert.Error(t, l.Delete(ctx, loc), "Delete(%q)", loc)
	}
}

func TestConcurrentReadersSameLocation(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	want := bytes.Repeat([]byte("facet normal 0 0 1\n"), 4096)
	res, err := l.Put(ctx, bytes.NewReader(want), int64(len(want)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc, _, err := l.Get(ctx, res.Location)
			if err != nil {
				errs <- err
				return
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got, want) {
				errs <- errors.New("content mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestWalk(t *testing.T) {
	l, _ := newMemLocal(t)
	ctx := context.Background()

	want := map[string]int64{}
	for _, body := range []string{"a", "bb", "ccc"} {
		res, err := l.Put(ctx, strings.NewReader(body), int64(len(body)))
		require.NoError(t, err)
		want[res.Location] = res.Size
	}

	got := map[string]int64{}
	require.NoError(t, l.Walk(ctx, func(a store.Artifact) error {
		got[a.Location] = a.Size
		return nil
	}))
	assert.Equal(t, want, got)
}

func TestWalkEmptyStore(t *testing.T) {
	l := newTestLocal(t)
	assert.NoError(t, l.Walk(context.Background(), func(store.Artifact) error {
		t.Fatal("unexpected artifact")
		return nil
	}))
}

// TestLargeStream verifies streaming without buffering a full file (1 MB).
func TestLargeStream(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	const size = 1 << 20 // 1 MB

	data := bytes.Repeat([]byte("A"), size)
	res, err := l.Put(ctx, bytes.NewReader(data), size)
	require.NoError(t, err)
	assert.Equal(t, int64(size), res.Size)

	rc, rsize, err := l.Get(ctx, res.Location)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(size), rsize)
	buf, _ := io.ReadAll(rc)
	assert.Len(t, buf, size)
}

// TestNewLocalCreatesRoot verifies that a non-existent root is created.
func TestNewLocalCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "new", "nested", "root")
	_, err := store.NewLocal(root)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, store.TmpDir))
	assert.NoError(t, err, "root directory was not created")
}

func TestNewLocalReadOnly(t *testing.T) {
	_, err := store.NewLocalFs(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/ro")
	assert.Error(t, err)
}

func TestDiskStatsOnMemFs(t *testing.T) {
	l, _ := newMemLocal(t)
	avail, total := l.DiskStats()
	assert.Zero(t, avail)
	assert.Zero(t, total)
}
