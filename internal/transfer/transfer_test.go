package transfer

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/contentstore"
	"github.com/vircadia/assetd/internal/storagedriver/inmemory"
)

type recordingSink struct {
	mu   sync.Mutex
	done chan struct{}

	sendCode    asseterr.Code
	sendPayload []byte
	uploadCode  asseterr.Code
	uploadHash  asset.Hash
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{}, 1)}
}

func (s *recordingSink) SendAssetReply(ctx context.Context, messageID uint32, hash asset.Hash, payload io.ReadCloser, size int64, code asseterr.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendCode = code
	if payload != nil {
		data, _ := io.ReadAll(payload)
		payload.Close()
		s.sendPayload = data
	}
	s.done <- struct{}{}
}

func (s *recordingSink) UploadAssetReply(ctx context.Context, messageID uint32, hash asset.Hash, code asseterr.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadCode = code
	s.uploadHash = hash
	s.done <- struct{}{}
}

func (s *recordingSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestSubmitSendAssetFullRange(t *testing.T) {
	ctx := context.Background()
	content := contentstore.New(inmemory.New())
	h, err := content.Put(ctx, []byte("hello world"))
	require.NoError(t, err)

	pool := New(content, 2, 1000)
	sink := newRecordingSink()
	pool.SubmitSendAsset(ctx, sink, 1, h, 0, 11)
	sink.wait(t)

	require.Equal(t, asseterr.NoError, sink.sendCode)
	require.Equal(t, []byte("hello world"), sink.sendPayload)
}

func TestSubmitSendAssetNotFound(t *testing.T) {
	ctx := context.Background()
	content := contentstore.New(inmemory.New())
	pool := New(content, 2, 1000)
	sink := newRecordingSink()

	missing := asset.Hash(strings.Repeat("0", 64))
	pool.SubmitSendAsset(ctx, sink, 1, missing, 0, 1)
	sink.wait(t)

	require.Equal(t, asseterr.AssetNotFound, sink.sendCode)
}

func TestSubmitSendAssetInvalidRange(t *testing.T) {
	ctx := context.Background()
	content := contentstore.New(inmemory.New())
	h, err := content.Put(ctx, []byte("hi"))
	require.NoError(t, err)

	pool := New(content, 2, 1000)
	sink := newRecordingSink()
	pool.SubmitSendAsset(ctx, sink, 1, h, 0, 100)
	sink.wait(t)

	require.Equal(t, asseterr.InvalidByteRange, sink.sendCode)
}

func TestSubmitUploadAssetSucceeds(t *testing.T) {
	ctx := context.Background()
	content := contentstore.New(inmemory.New())
	pool := New(content, 2, 1000)
	sink := newRecordingSink()

	pool.SubmitUploadAsset(ctx, sink, 1, []byte("payload"))
	sink.wait(t)

	require.Equal(t, asseterr.NoError, sink.uploadCode)
	require.Equal(t, asset.HashBytes([]byte("payload")), sink.uploadHash)
}

func TestSubmitUploadAssetTooLarge(t *testing.T) {
	ctx := context.Background()
	content := contentstore.New(inmemory.New())
	pool := New(content, 2, 3)
	sink := newRecordingSink()

	pool.SubmitUploadAsset(ctx, sink, 1, []byte("payload"))
	sink.wait(t)

	require.Equal(t, asseterr.AssetTooLarge, sink.uploadCode)
}

func TestDefaultWorkersAppliedWhenNonPositive(t *testing.T) {
	content := contentstore.New(inmemory.New())
	pool := New(content, 0, 1000)
	require.NotNil(t, pool)
}
