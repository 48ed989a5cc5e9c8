package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/configuration"
	"github.com/vircadia/assetd/internal/session"
	"github.com/vircadia/assetd/internal/storagedriver/inmemory"
	"github.com/vircadia/assetd/internal/wire"
)

type recordingSink struct {
	uploadCode asseterr.Code
	uploadHash asset.Hash
	done       chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{}, 1)}
}

func (s *recordingSink) SendAssetReply(ctx context.Context, messageID uint32, hash asset.Hash, payload io.ReadCloser, size int64, code asseterr.Code) {
	if payload != nil {
		payload.Close()
	}
	s.done <- struct{}{}
}

func (s *recordingSink) UploadAssetReply(ctx context.Context, messageID uint32, hash asset.Hash, code asseterr.Code) {
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

func testConfig() *configuration.Configuration {
	return &configuration.Configuration{
		Assets: configuration.Assets{
			MaxUploadSize:   configuration.DefaultMaxUploadSize,
			TransferWorkers: configuration.DefaultTransferWorkers,
		},
	}
}

func TestServerUploadSetAndBakeRoundTrip(t *testing.T) {
	srv, err := NewWithDriver(inmemory.New(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))

	srv.Sessions.Set("alice", session.Capabilities{CanWrite: true})

	uploadSink := newRecordingSink()
	srv.Router.HandleAssetUpload(ctx, "alice", wire.AssetUpload{MessageID: 1, Payload: []byte("model bytes")}, uploadSink)
	uploadSink.wait(t)
	require.Equal(t, asseterr.NoError, uploadSink.uploadCode)
	uploadedHash := uploadSink.uploadHash

	setReply := srv.Router.HandleAssetMappingOperation(ctx, "alice", wire.AssetMappingOperation{
		MessageID: 2, Op: wire.OpSet, SetPath: "/model.fbx", SetHash: uploadedHash,
	})
	require.Equal(t, asseterr.NoError, setReply.Code)

	require.Eventually(t, func() bool {
		_, baked := srv.Mappings.BakedArtifact(uploadedHash, "asset.fbx")
		return baked
	}, 2*time.Second, 5*time.Millisecond)

	getReply := srv.Router.HandleAssetMappingOperation(ctx, "alice", wire.AssetMappingOperation{
		MessageID: 3, Op: wire.OpGet, GetPath: "/model.fbx",
	})
	require.Equal(t, asseterr.NoError, getReply.Code)
	require.True(t, getReply.WasRedirected)

	getSink := newRecordingSink()
	srv.Router.HandleAssetGet(ctx, "alice", wire.AssetGet{MessageID: 4, Hash: getReply.GetHash, ToExclusive: int64(len("model bytes"))}, getSink)
	getSink.wait(t)

	srv.Shutdown()
}

func TestServerUploadDeniedWithoutWriteCapability(t *testing.T) {
	srv, err := NewWithDriver(inmemory.New(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))

	sink := newRecordingSink()
	srv.Router.HandleAssetUpload(ctx, "mallory", wire.AssetUpload{MessageID: 1, Payload: []byte("x")}, sink)
	sink.wait(t)

	require.Equal(t, asseterr.PermissionDenied, sink.uploadCode)
}

func TestServerStartupOrphanSweepRemovesUnreferencedContent(t *testing.T) {
	driver := inmemory.New()

	pre, err := NewWithDriver(driver, testConfig())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, pre.Mappings.Load(ctx))
	_, err = pre.Content.Put(ctx, []byte("unreferenced"))
	require.NoError(t, err)

	srv, err := NewWithDriver(driver, testConfig())
	require.NoError(t, err)
	require.NoError(t, srv.Start(ctx))

	hashes, err := srv.Content.ListAllHashes(ctx)
	require.NoError(t, err)
	require.Empty(t, hashes)
}
