package bake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueDeduplicates(t *testing.T) {
	q := NewQueue()

	require.True(t, q.Enqueue(sourceHash))
	require.False(t, q.Enqueue(sourceHash), "second enqueue of the same source must be a no-op")
	require.Equal(t, StatusPending, q.Status(sourceHash))
}

func TestQueueStartNextMovesToBaking(t *testing.T) {
	q := NewQueue()
	q.Enqueue(sourceHash)

	q.StartNext(sourceHash)
	require.Equal(t, StatusBaking, q.Status(sourceHash))
	require.False(t, q.Enqueue(sourceHash), "must not re-enqueue while baking")
}

func TestQueueFinishClearsBaking(t *testing.T) {
	q := NewQueue()
	q.Enqueue(sourceHash)
	q.StartNext(sourceHash)

	q.Finish(sourceHash)
	require.Equal(t, StatusNotBaked, q.Status(sourceHash))
	require.True(t, q.Enqueue(sourceHash), "must be enqueueable again once finished")
}

func TestQueueStatusUnknownIsNotBaked(t *testing.T) {
	q := NewQueue()
	require.Equal(t, StatusNotBaked, q.Status(sourceHash))
}

func TestNewJobInfersKindFromExtension(t *testing.T) {
	model := NewJob("/models/chair.fbx", sourceHash)
	require.Equal(t, KindModel, model.Kind)

	texture := NewJob("/textures/wall.png", sourceHash)
	require.Equal(t, KindTexture, texture.Kind)
}
