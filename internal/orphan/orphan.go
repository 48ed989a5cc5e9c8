// Package orphan implements the orphan collector: it keeps the content
// store bounded by removing files no longer referenced by any mapping. It
// runs a mark-and-sweep at startup and a targeted sweep after every delete.
package orphan

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vircadia/assetd/internal/asset"
	internalmetrics "github.com/vircadia/assetd/internal/metrics"
)

// sweepConcurrency bounds how many Remove calls a sweep issues at once,
// matching the fan-out shape internal/transfer uses for GET/UPLOAD jobs.
const sweepConcurrency = 16

// bytesReclaimedCounter accumulates the size of every content file this
// process has unlinked as orphaned.
var bytesReclaimedCounter = internalmetrics.StorageNamespace.NewCounter("orphan_bytes_reclaimed", "Total bytes reclaimed by orphan collection")

// ContentStore is the subset of contentstore.Store the collector needs.
type ContentStore interface {
	ListAllHashes(ctx context.Context) ([]asset.Hash, error)
	Size(ctx context.Context, h asset.Hash) (int64, error)
	Remove(ctx context.Context, h asset.Hash) error
}

// Collector removes content files that no mapping references.
type Collector struct {
	content ContentStore
}

// New builds a Collector over content.
func New(content ContentStore) *Collector {
	return &Collector{content: content}
}

// Stats summarizes a single collection pass.
type Stats struct {
	Examined int
	Removed  int
	Errors   int
}

// SweepStartup enumerates every content file and removes those not present
// in inUse. Called once, after the mapping store finishes loading.
func (c *Collector) SweepStartup(ctx context.Context, inUse map[asset.Hash]bool) (Stats, error) {
	hashes, err := c.content.ListAllHashes(ctx)
	if err != nil {
		return Stats{}, err
	}

	var candidates []asset.Hash
	for _, h := range hashes {
		if !inUse[h] {
			candidates = append(candidates, h)
		}
	}

	stats := c.sweep(ctx, candidates, "orphan: startup sweep: failed to unlink, will retry next sweep")
	stats.Examined = len(hashes)
	return stats, nil
}

// SweepCandidates unlinks every hash in candidates. The caller (the router,
// immediately after a successful delete, passing the hashes that
// mapping.Store.Delete returned) has already subtracted any hash still
// referenced by a remaining mapping; this step is purely mechanical removal
// of what's left.
func (c *Collector) SweepCandidates(ctx context.Context, candidates []asset.Hash) Stats {
	return c.sweep(ctx, candidates, "orphan: post-delete sweep: failed to unlink, will retry next startup sweep")
}

// sweep fans Remove calls for candidates out across a bounded errgroup,
// grounded on internal/transfer.Pool's use of errgroup.SetLimit: unlinking a
// file is independent per-hash work, so there is no reason to serialize it
// the way a single in-memory mapping mutation would require.
func (c *Collector) sweep(ctx context.Context, candidates []asset.Hash, warnMsg string) Stats {
	stats := Stats{Examined: len(candidates)}
	if len(candidates) == 0 {
		return stats
	}

	var removed, errored, bytesReclaimed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	for _, h := range candidates {
		h := h
		g.Go(func() error {
			size, _ := c.content.Size(gctx, h)
			if err := c.content.Remove(gctx, h); err != nil {
				atomic.AddInt64(&errored, 1)
				logrus.WithError(err).WithField("hash", h).Warn(warnMsg)
				return nil
			}
			atomic.AddInt64(&removed, 1)
			atomic.AddInt64(&bytesReclaimed, size)
			return nil
		})
	}
	// Remove never returns an error that should abort the sweep; g.Wait's
	// error is always nil, but errgroup.WithContext still gives every Remove
	// call a shared, cancelable context.
	_ = g.Wait()

	if bytesReclaimed > 0 {
		bytesReclaimedCounter.Inc(float64(bytesReclaimed))
	}

	stats.Removed = int(removed)
	stats.Errors = int(errored)
	return stats
}
