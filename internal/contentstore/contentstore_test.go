package contentstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/storagedriver/inmemory"
)

var unusedHash = asset.Hash(strings.Repeat("0", 64))

func TestPutDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := New(inmemory.New())

	h1, err := store.Put(ctx, []byte("hello world"))
	require.NoError(t, err)

	h2, err := store.Put(ctx, []byte("hello world"))
	require.NoError(t, err)

	require.Equal(t, h1, h2)
	require.True(t, store.Exists(ctx, h1))
}

func TestOpenRangeFullFile(t *testing.T) {
	ctx := context.Background()
	store := New(inmemory.New())

	h, err := store.Put(ctx, []byte("0123456789"))
	require.NoError(t, err)

	rc, err := store.OpenRange(ctx, h, 0, 10)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(data))
}

func TestOpenRangeTail(t *testing.T) {
	ctx := context.Background()
	store := New(inmemory.New())

	h, err := store.Put(ctx, []byte("0123456789"))
	require.NoError(t, err)

	rc, err := store.OpenRange(ctx, h, -3, 0)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "789", string(data))
}

func TestOpenRangeInvalid(t *testing.T) {
	ctx := context.Background()
	store := New(inmemory.New())

	h, err := store.Put(ctx, []byte("0123456789"))
	require.NoError(t, err)

	_, err = store.OpenRange(ctx, h, 5, 50)
	require.Equal(t, asseterr.InvalidByteRange, asseterr.As(err))

	_, err = store.OpenRange(ctx, h, 0, 0)
	require.Equal(t, asseterr.InvalidByteRange, asseterr.As(err))

	_, err = store.OpenRange(ctx, h, -1, 5)
	require.Equal(t, asseterr.InvalidByteRange, asseterr.As(err))
}

func TestOpenRangeNotFound(t *testing.T) {
	ctx := context.Background()
	store := New(inmemory.New())

	_, err := store.OpenRange(ctx, unusedHash, 0, 1)
	require.Equal(t, asseterr.AssetNotFound, asseterr.As(err))
}

func TestRemoveMissingIsNotError(t *testing.T) {
	ctx := context.Background()
	store := New(inmemory.New())

	err := store.Remove(ctx, unusedHash)
	require.NoError(t, err)
}

func TestListAllHashes(t *testing.T) {
	ctx := context.Background()
	store := New(inmemory.New())

	h1, err := store.Put(ctx, []byte("a"))
	require.NoError(t, err)
	h2, err := store.Put(ctx, []byte("b"))
	require.NoError(t, err)

	hashes, err := store.ListAllHashes(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{h1.String(), h2.String()}, stringsOf(hashes))
}

func stringsOf(hashes []asset.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.String()
	}
	return out
}
