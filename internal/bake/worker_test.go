package bake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vircadia/assetd/internal/contentstore"
	"github.com/vircadia/assetd/internal/mapping"
	"github.com/vircadia/assetd/internal/storagedriver/inmemory"
)

func TestWorkerRunBakesModelAndCommitsMapping(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	content := contentstore.New(inmemory.New())
	mappings := mapping.New(inmemory.New(), nil)

	source, err := content.Put(ctx, []byte("fake fbx bytes"))
	require.NoError(t, err)

	worker := NewWorker(content, mappings, NewModelBakerStub(), NewTextureBakerStub())
	go worker.Run(ctx)

	worker.In <- NewJob("/models/chair.fbx", source)

	select {
	case res := <-worker.Out:
		require.Equal(t, source, res.Source)
		require.NoError(t, res.Err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for bake result")
	}

	bakedHash, ok := mappings.BakedArtifact(source, "asset.fbx")
	require.True(t, ok)
	require.NotEmpty(t, bakedHash)

	_, hasMeta := mappings.BakedArtifact(source, "meta.json")
	require.True(t, hasMeta)
}

func TestWorkerRunReportsBakerError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	content := contentstore.New(inmemory.New())
	mappings := mapping.New(inmemory.New(), nil)

	source, err := content.Put(ctx, []byte("fake texture bytes"))
	require.NoError(t, err)

	worker := NewWorker(content, mappings, nil, nil)
	go worker.Run(ctx)

	worker.In <- NewJob("/textures/wall.png", source)

	select {
	case res := <-worker.Out:
		require.Equal(t, source, res.Source)
		require.Error(t, res.Err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for bake result")
	}
}
