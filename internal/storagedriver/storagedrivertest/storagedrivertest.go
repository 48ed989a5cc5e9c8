// Package storagedrivertest is a conformance suite any storagedriver.StorageDriver
// implementation must pass, grounded on the teacher's
// registry/storage/driver/testsuites package: one table of behavior
// (put/get round trip, ranged reads, move, delete, listing) exercised
// against whatever driver a caller supplies, so filesystem and inmemory are
// held to the same contract instead of each growing its own ad hoc tests.
package storagedrivertest

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vircadia/assetd/internal/storagedriver"
)

// Run executes the conformance suite against driver, calling t.Run for each
// case so failures are attributed to a specific behavior.
func Run(t *testing.T, driver storagedriver.StorageDriver) {
	t.Run("PutGetRoundTrip", func(t *testing.T) { testPutGetRoundTrip(t, driver) })
	t.Run("GetMissingPath", func(t *testing.T) { testGetMissingPath(t, driver) })
	t.Run("ReaderRespectsOffset", func(t *testing.T) { testReaderRespectsOffset(t, driver) })
	t.Run("ReaderInvalidOffset", func(t *testing.T) { testReaderInvalidOffset(t, driver) })
	t.Run("WriterCommit", func(t *testing.T) { testWriterCommit(t, driver) })
	t.Run("WriterCancelDiscardsContent", func(t *testing.T) { testWriterCancelDiscardsContent(t, driver) })
	t.Run("StatReportsSize", func(t *testing.T) { testStatReportsSize(t, driver) })
	t.Run("MoveOverwritesDestination", func(t *testing.T) { testMoveOverwritesDestination(t, driver) })
	t.Run("DeleteRemovesPath", func(t *testing.T) { testDeleteRemovesPath(t, driver) })
	t.Run("ListReturnsDirectDescendants", func(t *testing.T) { testListReturnsDirectDescendants(t, driver) })
}

func testPutGetRoundTrip(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	content := []byte("round trip content")
	require.NoError(t, d.PutContent(ctx, "/a/b/round-trip", content))

	got, err := d.GetContent(ctx, "/a/b/round-trip")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func testGetMissingPath(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	_, err := d.GetContent(ctx, "/does/not/exist")
	require.Error(t, err)
	assert.True(t, storagedriver.IsPathNotFound(err))
}

func testReaderRespectsOffset(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	require.NoError(t, d.PutContent(ctx, "/ranged", []byte("0123456789")))

	rd, err := d.Reader(ctx, "/ranged", 5)
	require.NoError(t, err)
	defer rd.Close()

	got, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.Equal(t, []byte("56789"), got)
}

func testReaderInvalidOffset(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	require.NoError(t, d.PutContent(ctx, "/short", []byte("abc")))

	_, err := d.Reader(ctx, "/short", 100)
	require.Error(t, err)
}

func testWriterCommit(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	w, err := d.Writer(ctx, "/written", false)
	require.NoError(t, err)

	_, err = w.Write([]byte("staged"))
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx))
	require.NoError(t, w.Close())

	got, err := d.GetContent(ctx, "/written")
	require.NoError(t, err)
	assert.Equal(t, []byte("staged"), got)
}

func testWriterCancelDiscardsContent(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	w, err := d.Writer(ctx, "/canceled", false)
	require.NoError(t, err)

	_, err = w.Write([]byte("never committed"))
	require.NoError(t, err)
	require.NoError(t, w.Cancel(ctx))
	require.NoError(t, w.Close())

	_, err = d.GetContent(ctx, "/canceled")
	require.Error(t, err)
	assert.True(t, storagedriver.IsPathNotFound(err))
}

func testStatReportsSize(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	require.NoError(t, d.PutContent(ctx, "/stated", []byte("twelve bytes")))

	info, err := d.Stat(ctx, "/stated")
	require.NoError(t, err)
	assert.Equal(t, int64(len("twelve bytes")), info.Size())
	assert.False(t, info.IsDir())
}

func testMoveOverwritesDestination(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	require.NoError(t, d.PutContent(ctx, "/move/src", []byte("source")))
	require.NoError(t, d.PutContent(ctx, "/move/dst", []byte("stale")))

	require.NoError(t, d.Move(ctx, "/move/src", "/move/dst"))

	got, err := d.GetContent(ctx, "/move/dst")
	require.NoError(t, err)
	assert.Equal(t, []byte("source"), got)

	_, err = d.GetContent(ctx, "/move/src")
	require.Error(t, err)
}

func testDeleteRemovesPath(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	require.NoError(t, d.PutContent(ctx, "/deleteme", []byte("gone soon")))
	require.NoError(t, d.Delete(ctx, "/deleteme"))

	_, err := d.GetContent(ctx, "/deleteme")
	require.Error(t, err)

	err = d.Delete(ctx, "/deleteme")
	require.Error(t, err)
	assert.True(t, storagedriver.IsPathNotFound(err))
}

func testListReturnsDirectDescendants(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	require.NoError(t, d.PutContent(ctx, "/listing/one", []byte("1")))
	require.NoError(t, d.PutContent(ctx, "/listing/two", []byte("2")))
	require.NoError(t, d.PutContent(ctx, "/listing/nested/three", []byte("3")))

	entries, err := d.List(ctx, "/listing")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/listing/one", "/listing/two", "/listing/nested"}, entries)
}
