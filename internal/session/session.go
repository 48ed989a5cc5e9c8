// Package session tracks the two pieces of per-sender state the spec
// assigns to "Session State": each sender's write capability bit, attached
// by the transport and opaque to the core, and correlation of in-flight
// requests by message ID for logging and duplicate-reply detection. The
// transport itself (framing, retransmit, sender identity, attestations) is
// an external collaborator; this package only holds what the core consumes.
package session

import (
	"sync"
	"time"
)

// SenderID identifies a connected client, as assigned by the transport.
type SenderID string

// Capabilities is the per-sender state the transport attaches to every
// inbound message.
type Capabilities struct {
	CanWrite bool
}

// Registry holds the current capability bits for every sender the router
// has seen. It is written once per sender (when the transport reports a
// connection, or on first message) and read on every mutating request.
type Registry struct {
	mu       sync.RWMutex
	bySender map[SenderID]Capabilities
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{bySender: make(map[SenderID]Capabilities)}
}

// Set records sender's capabilities, overwriting any previous value, for
// use when the transport reports a sender's attestation.
func (r *Registry) Set(sender SenderID, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySender[sender] = caps
}

// Forget drops sender's recorded capabilities, e.g. on disconnect.
func (r *Registry) Forget(sender SenderID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySender, sender)
}

// CanWrite reports whether sender currently holds the write capability. An
// unknown sender defaults to false — the router must not grant write access
// to a sender it has no attestation for.
func (r *Registry) CanWrite(sender SenderID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySender[sender].CanWrite
}

// Senders returns every sender currently holding a recorded attestation.
// The Stats Sampler iterates this list each tick to know which connections
// to publish counters for.
func (r *Registry) Senders() []SenderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SenderID, 0, len(r.bySender))
	for id := range r.bySender {
		out = append(out, id)
	}
	return out
}

// pendingKey identifies one in-flight request awaiting a reply.
type pendingKey struct {
	Sender    SenderID
	MessageID uint32
}

// Pending correlates in-flight requests with their submission time, so the
// router can log abnormally slow or duplicate replies. It is purely
// observational: nothing in the spec defines a mapping-op timeout, so
// Pending never cancels or rejects a request on its own.
type Pending struct {
	mu      sync.Mutex
	entries map[pendingKey]time.Time
}

// NewPending builds an empty Pending tracker.
func NewPending() *Pending {
	return &Pending{entries: make(map[pendingKey]time.Time)}
}

// Start records that sender's messageID is now in flight, returning false
// if it was already recorded — a duplicate request with the same ID from
// the same sender before its prior reply was delivered.
func (p *Pending) Start(sender SenderID, messageID uint32, now time.Time) (started bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := pendingKey{Sender: sender, MessageID: messageID}
	if _, exists := p.entries[key]; exists {
		return false
	}
	p.entries[key] = now
	return true
}

// Finish clears sender's messageID, returning how long it was in flight and
// whether it was actually pending (a Finish with no matching Start is
// itself suspicious and logged by the caller, not by this package).
func (p *Pending) Finish(sender SenderID, messageID uint32, now time.Time) (elapsed time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := pendingKey{Sender: sender, MessageID: messageID}
	started, ok := p.entries[key]
	if !ok {
		return 0, false
	}
	delete(p.entries, key)
	return now.Sub(started), true
}
