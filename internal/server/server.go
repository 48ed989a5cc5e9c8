// Package server wires the asset server's components together: storage
// driver, content store, mapping store, orphan collector, bake queue and
// worker, transfer pool, session registry, and request router. It owns the
// startup sequence (load mappings, run the startup orphan sweep, start the
// bake worker) and the dispatch glue between the router's BakeDispatch hook
// and the bake worker's input channel — the one piece of plumbing no single
// lower package can own, since it closes the loop between Queue.StartNext
// and Worker.In.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vircadia/assetd/internal/bake"
	"github.com/vircadia/assetd/internal/configuration"
	"github.com/vircadia/assetd/internal/contentstore"
	"github.com/vircadia/assetd/internal/mapping"
	"github.com/vircadia/assetd/internal/orphan"
	"github.com/vircadia/assetd/internal/router"
	"github.com/vircadia/assetd/internal/session"
	"github.com/vircadia/assetd/internal/stats"
	"github.com/vircadia/assetd/internal/storagedriver"
	"github.com/vircadia/assetd/internal/storagedriver/filesystem"
	"github.com/vircadia/assetd/internal/transfer"
)

// statsSampleInterval is how often the Stats Sampler republishes
// per-connection transport counters.
const statsSampleInterval = 30 * time.Second

// Server is a fully wired asset server, ready to have inbound messages
// decoded by internal/wire and dispatched through Router. The transport
// that terminates connections and frames messages is an external
// collaborator that this module does not include; Server owns everything from the
// storage root down to the router.
type Server struct {
	Content  *contentstore.Store
	Mappings *mapping.Store
	Orphans  *orphan.Collector
	Bake     *bake.Queue
	Worker   *bake.Worker
	Transfer *transfer.Pool
	Sessions *session.Registry
	Router   *router.Router
	Stats    *stats.Sampler
}

// registrySource adapts session.Registry to stats.Source, reporting a zero
// Counters value for every sender currently holding a session attestation.
// The reliable-stream transport that actually tallies bytes/packets on the
// wire is an external collaborator out of scope here; this keeps the Stats
// Sampler running against real sender identities in the meantime, rather
// than leaving it unconstructed for want of a transport to poll.
type registrySource struct {
	sessions *session.Registry
}

func (s registrySource) ConnectionCounters() map[session.SenderID]stats.Counters {
	senders := s.sessions.Senders()
	out := make(map[session.SenderID]stats.Counters, len(senders))
	for _, id := range senders {
		out[id] = stats.Counters{}
	}
	return out
}

// New builds a Server from cfg. The storage driver is a filesystem driver
// rooted at cfg.Storage.RootDirectory; construct the lower layers directly
// (content store, mapping store, etc.) instead of calling New if a
// different storagedriver.StorageDriver is needed, e.g. inmemory in tests.
func New(cfg *configuration.Configuration) (*Server, error) {
	driver, err := filesystem.New(cfg.Storage.RootDirectory)
	if err != nil {
		return nil, fmt.Errorf("server: open storage root %s: %w", cfg.Storage.RootDirectory, err)
	}
	return NewWithDriver(driver, cfg)
}

// NewWithDriver builds a Server over an already-constructed storage driver,
// the seam tests use to substitute storagedriver/inmemory for the
// filesystem driver New would otherwise open.
func NewWithDriver(driver storagedriver.StorageDriver, cfg *configuration.Configuration) (*Server, error) {
	content := contentstore.New(driver)

	mappings := mapping.New(driver, nil)

	orphans := orphan.New(content)

	bakeQueue := bake.NewQueue()
	worker := bake.NewWorker(content, mappings, bake.NewModelBakerStub(), bake.NewTextureBakerStub())

	transferPool := transfer.New(content, cfg.Assets.TransferWorkers, cfg.Assets.MaxUploadSize)

	sessions := session.NewRegistry()
	pending := session.NewPending()

	s := &Server{
		Content:  content,
		Mappings: mappings,
		Orphans:  orphans,
		Bake:     bakeQueue,
		Worker:   worker,
		Transfer: transferPool,
		Sessions: sessions,
	}

	s.Router = &router.Router{
		Mappings:  mappings,
		Orphans:   orphans,
		Transfer:  transferPool,
		BakeQueue: bakeQueue,
		Dispatch:  s.dispatchBakeJob,
		Sessions:  sessions,
		Pending:   pending,
	}

	s.Stats = stats.NewSampler(registrySource{sessions: sessions}, statsSampleInterval)

	return s, nil
}

// HealthCheck reports whether the content store is reachable. Register it
// with health.RegisterFunc once per process, not once per Server — a
// second registration under the same name panics.
func (s *Server) HealthCheck(ctx context.Context) error {
	_, err := s.Content.ListAllHashes(ctx)
	return err
}

// dispatchBakeJob hands job to the worker's input channel, marking it
// Baking in the queue first so Status reports Baking for the job's whole
// time in the worker's hands, not just once the worker goroutine picks it
// off the channel.
func (s *Server) dispatchBakeJob(job bake.Job) {
	s.Bake.StartNext(job.Source)
	select {
	case s.Worker.In <- job:
	default:
		logrus.WithField("source", job.Source).Warn("server: bake worker input full, job will retry on next mapping change")
		s.Bake.Finish(job.Source)
	}
}

// Start runs the Server's startup sequence: load the mapping document, run
// the startup orphan sweep, and launch the bake worker and its result
// drain. It returns once startup completes; the worker and result drain
// continue running in background goroutines until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Mappings.Load(ctx); err != nil {
		return fmt.Errorf("server: start: %w", err)
	}

	stats, err := s.Orphans.SweepStartup(ctx, s.Mappings.AllHashesInUse())
	if err != nil {
		return fmt.Errorf("server: start: startup orphan sweep: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"examined": stats.Examined,
		"removed":  stats.Removed,
		"errors":   stats.Errors,
	}).Info("server: startup orphan sweep complete")

	go s.Worker.Run(ctx)
	go s.drainBakeResults(ctx)
	go s.Stats.Run(ctx)

	return nil
}

// drainBakeResults clears the Bake queue's baking-state bit as each job
// completes, logging failures. It is the only reader of Worker.Out.
func (s *Server) drainBakeResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-s.Worker.Out:
			if !ok {
				return
			}
			s.Bake.Finish(result.Source)
			if result.Err != nil {
				logrus.WithError(result.Err).WithField("source", result.Source).Warn("server: bake job failed")
			}
		}
	}
}

// Shutdown waits for in-flight transfer jobs to complete. Callers should
// cancel the context passed to Start before calling Shutdown so the bake
// worker and result drain also stop.
func (s *Server) Shutdown() {
	s.Transfer.Wait()
}
