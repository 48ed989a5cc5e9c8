// Package transfer implements the bounded worker pool that executes GET and
// UPLOAD jobs off the control thread: disk I/O and reliable-stream writes
// both suspend for unbounded periods, so neither may run where mapping
// mutations are serialized.
package transfer

import (
	"context"
	"io"

	"github.com/docker/go-metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/contentstore"
	internalmetrics "github.com/vircadia/assetd/internal/metrics"
)

// inFlightGauge tracks how many GET/UPLOAD jobs are currently executing
// across every Pool in the process.
var inFlightGauge = internalmetrics.TransferNamespace.NewGauge("in_flight_jobs", "Number of GET/UPLOAD jobs currently executing", metrics.Total)

// DefaultWorkers is used when a caller does not configure
// Assets.TransferWorkers explicitly.
const DefaultWorkers = 50

// Content is the subset of contentstore.Store the pool's jobs need.
type Content interface {
	OpenRange(ctx context.Context, h asset.Hash, from, to int64) (io.ReadCloser, error)
	Size(ctx context.Context, h asset.Hash) (int64, error)
	Put(ctx context.Context, p []byte) (asset.Hash, error)
}

// ReplySink is how a job delivers its outcome back to the sender. The
// concrete implementation (internal/wire + the transport's reliable ordered
// stream) is supplied by the router; transfer itself knows nothing about
// wire encoding.
type ReplySink interface {
	// SendAssetReply delivers the result of a SendAsset job: either a
	// successful payload reader (closed by the sink once fully written) or
	// an error code.
	SendAssetReply(ctx context.Context, messageID uint32, hash asset.Hash, payload io.ReadCloser, size int64, code asseterr.Code)
	// UploadAssetReply delivers the result of an UploadAsset job.
	UploadAssetReply(ctx context.Context, messageID uint32, hash asset.Hash, code asseterr.Code)
}

// Pool is a bounded fan-out of job goroutines, grounded on the teacher's
// errgroup.Group+SetLimit idiom for its bounded mark-phase fan-out. Unlike
// that one-shot batch use, Pool runs for the server's whole lifetime: a
// single job's error is logged and never cancels its siblings or the pool
// itself, since one sender's broken connection must not affect another's
// transfer.
type Pool struct {
	content Content
	group   errgroup.Group

	maxUploadSize int64
}

// New builds a Pool with the given worker concurrency and upload size cap.
func New(content Content, workers int, maxUploadSize int64) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{content: content, maxUploadSize: maxUploadSize}
	p.group.SetLimit(workers)
	return p
}

// Wait blocks until every submitted job has returned. Intended for a clean
// shutdown sequence only; jobs never fail the group since submit swallows
// errors after logging them.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}

// SubmitSendAsset enqueues a GET job: open the content file, apply the
// requested byte range, and hand the result to sink. A slot is held for the
// duration of the reply write, so Submit may block the caller (the control
// goroutine) briefly once all workers are occupied — this is the pool's
// only backpressure mechanism, and is deliberate: an unbounded queue would
// let a slow sender exhaust memory.
func (p *Pool) SubmitSendAsset(ctx context.Context, sink ReplySink, messageID uint32, hash asset.Hash, from, to int64) {
	p.group.Go(func() error {
		inFlightGauge.Inc(1)
		defer inFlightGauge.Dec(1)

		size, err := p.content.Size(ctx, hash)
		if err != nil {
			sink.SendAssetReply(ctx, messageID, hash, nil, 0, asseterr.As(err))
			return nil
		}

		fixedFrom, fixedTo, err := contentstore.FixupRange(from, to, size)
		if err != nil {
			sink.SendAssetReply(ctx, messageID, hash, nil, 0, asseterr.As(err))
			return nil
		}

		r, err := p.content.OpenRange(ctx, hash, from, to)
		if err != nil {
			sink.SendAssetReply(ctx, messageID, hash, nil, 0, asseterr.As(err))
			return nil
		}

		sink.SendAssetReply(ctx, messageID, hash, r, fixedTo-fixedFrom, asseterr.NoError)
		return nil
	})
}

// SubmitUploadAsset enqueues an UPLOAD job: enforce the size cap, hash the
// payload, deduplicate against existing content, and report the committed
// hash (or failure) to sink. Called only after the router has confirmed the
// sender holds the write capability.
func (p *Pool) SubmitUploadAsset(ctx context.Context, sink ReplySink, messageID uint32, payload []byte) {
	p.group.Go(func() error {
		inFlightGauge.Inc(1)
		defer inFlightGauge.Dec(1)

		if int64(len(payload)) > p.maxUploadSize {
			sink.UploadAssetReply(ctx, messageID, "", asseterr.AssetTooLarge)
			return nil
		}

		hash, err := p.content.Put(ctx, payload)
		if err != nil {
			logrus.WithError(err).WithField("message_id", messageID).Warn("transfer: upload failed")
			sink.UploadAssetReply(ctx, messageID, "", asseterr.As(err))
			return nil
		}

		sink.UploadAssetReply(ctx, messageID, hash, asseterr.NoError)
		return nil
	})
}
