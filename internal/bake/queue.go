package bake

import (
	"sync"

	"github.com/docker/go-metrics"

	"github.com/vircadia/assetd/internal/asset"
	internalmetrics "github.com/vircadia/assetd/internal/metrics"
)

// queueDepthGauge reports the combined size of the pending and baking sets,
// exposing the bake backlog an operator would otherwise only see by
// inspecting GetAll replies.
var queueDepthGauge = internalmetrics.BakeNamespace.NewGauge("queue_depth", "Number of bake jobs pending or in flight", metrics.Total)

// Status is the externally-visible bake state of a source hash, reported in
// AssetMappingOperationReply's GetAll response.
type Status int

const (
	// StatusNotBaked means baking was never requested, or the extension
	// isn't a bakeable one.
	StatusNotBaked Status = iota
	// StatusPending means a job is queued but not yet picked up by the
	// worker.
	StatusPending
	// StatusBaking means the worker is actively running a Baker on it.
	StatusBaking
	// StatusBaked means a baked artifact mapping already exists.
	StatusBaked
)

// Job describes one unit of bake work. Once constructed and handed to the
// queue, a Job is owned by a single goroutine at a time — the worker reads
// it off the channel, runs it to completion, then reports back; the queue
// goroutine never touches it concurrently with the worker.
type Job struct {
	Source asset.Hash
	Path   asset.Path
	Kind   Kind
}

// NewJob builds a Job for path/source, inferring its Kind from path's
// extension. Callers must have already confirmed NeedsBaking(path, source).
func NewJob(path asset.Path, source asset.Hash) Job {
	return Job{
		Source: source,
		Path:   path,
		Kind:   kindFor(path),
	}
}

// Queue tracks bake jobs across two disjoint states — pending (queued, not
// yet started) and baking (handed to the worker) — mirroring the original
// AutoBaker's _pendingBakes/_currentlyBaking split so that getAssetStatus
// and its Go equivalent, Status, can distinguish the two without guessing
// at the worker's internal state.
//
// Queue itself does not run goroutines; it is driven by whichever goroutine
// owns the control loop (normally internal/router), which calls Enqueue and
// then forwards the Job to a Worker over a channel.
type Queue struct {
	mu      sync.Mutex
	pending map[asset.Hash]bool
	baking  map[asset.Hash]bool
}

// NewQueue constructs an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[asset.Hash]bool),
		baking:  make(map[asset.Hash]bool),
	}
}

// Enqueue records source as pending. It is a no-op if source is already
// pending or currently baking — bake jobs are deduplicated per source hash,
// since baking is a pure function of the source content.
func (q *Queue) Enqueue(source asset.Hash) (enqueued bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending[source] || q.baking[source] {
		return false
	}
	q.pending[source] = true
	q.publishDepthLocked()
	return true
}

// StartNext moves source from pending to baking. Callers (the dispatch loop
// feeding the Worker's input channel) call this immediately before sending
// the Job, so that Status reports Baking for the whole duration the job
// sits in the worker's hands.
func (q *Queue) StartNext(source asset.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.pending, source)
	q.baking[source] = true
	q.publishDepthLocked()
}

// Finish clears source from the baking set once the worker reports
// completion, successful or not.
func (q *Queue) Finish(source asset.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.baking, source)
	q.publishDepthLocked()
}

// publishDepthLocked sets queueDepthGauge to the combined pending+baking
// count. Callers must hold q.mu.
func (q *Queue) publishDepthLocked() {
	queueDepthGauge.Set(float64(len(q.pending) + len(q.baking)))
}

// Status reports the in-flight queue state for source. It does not consult
// the mapping store — combine with Mappings.HasMetaRecord/BakedArtifact via
// NeedsBaking to distinguish "not baked, not requested" from "baked".
func (q *Queue) Status(source asset.Hash) Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.baking[source] {
		return StatusBaking
	}
	if q.pending[source] {
		return StatusPending
	}
	return StatusNotBaked
}
