package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryUnknownSenderCannotWrite(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.CanWrite("nobody"))
}

func TestRegistrySetAndCanWrite(t *testing.T) {
	r := NewRegistry()
	r.Set("alice", Capabilities{CanWrite: true})
	require.True(t, r.CanWrite("alice"))

	r.Set("bob", Capabilities{CanWrite: false})
	require.False(t, r.CanWrite("bob"))
}

func TestRegistryForget(t *testing.T) {
	r := NewRegistry()
	r.Set("alice", Capabilities{CanWrite: true})
	r.Forget("alice")
	require.False(t, r.CanWrite("alice"))
}

func TestPendingStartAndFinish(t *testing.T) {
	p := NewPending()
	t0 := time.Now()

	require.True(t, p.Start("alice", 1, t0))
	elapsed, ok := p.Finish("alice", 1, t0.Add(50*time.Millisecond))
	require.True(t, ok)
	require.Equal(t, 50*time.Millisecond, elapsed)
}

func TestPendingStartRejectsDuplicate(t *testing.T) {
	p := NewPending()
	t0 := time.Now()

	require.True(t, p.Start("alice", 1, t0))
	require.False(t, p.Start("alice", 1, t0), "duplicate message id before reply must be rejected")
}

func TestPendingFinishWithoutStartIsNotOK(t *testing.T) {
	p := NewPending()
	_, ok := p.Finish("alice", 99, time.Now())
	require.False(t, ok)
}

func TestPendingDistinguishesSenders(t *testing.T) {
	p := NewPending()
	t0 := time.Now()

	require.True(t, p.Start("alice", 1, t0))
	require.True(t, p.Start("bob", 1, t0), "same message id from a different sender is independent")
}
