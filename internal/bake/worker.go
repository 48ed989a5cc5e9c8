package bake

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/vircadia/assetd/internal/asset"
)

// Content is the subset of contentstore.Store the worker needs: reading a
// source asset's full bytes and committing baked output bytes under their
// own content hash.
type Content interface {
	OpenRange(ctx context.Context, h asset.Hash, from, to int64) (io.ReadCloser, error)
	Size(ctx context.Context, h asset.Hash) (int64, error)
	Put(ctx context.Context, p []byte) (asset.Hash, error)
}

// MappingWriter is the subset of mapping.Store the worker needs to commit
// baked artifact mappings. It is separate from bake.Mappings (the read-only
// predicate interface) because only the worker is allowed to write under
// the reserved /.baked/ namespace.
type MappingWriter interface {
	SetBaked(ctx context.Context, path asset.Path, hash asset.Hash) error
}

// Result is posted back to the control goroutine once a Job finishes,
// successful or not. It carries no reference to the Job's buffers — only
// identifying fields and outcome — so the control goroutine never reaches
// back into memory the worker goroutine might still be using.
type Result struct {
	Source asset.Hash
	Err    error
}

// Worker is the single goroutine that executes bake jobs sequentially,
// mirroring the original single-threaded bake pool's effective throughput
// without needing any locking around Baker invocations. Jobs arrive on In;
// completions are posted on Out. Both channels are owned by whoever
// constructs the Worker — Run only ever sends on Out and receives on In.
type Worker struct {
	content      Content
	mappings     MappingWriter
	modelBaker   Baker
	textureBaker Baker

	In  chan Job
	Out chan Result
}

// NewWorker constructs a Worker. modelBaker and textureBaker are invoked for
// Kind Model and Kind Texture jobs respectively; pass the real FBX/KTX baker
// implementations in production, or one of the stub constructors below in
// tests and non-baking deployments.
func NewWorker(content Content, mappings MappingWriter, modelBaker, textureBaker Baker) *Worker {
	return &Worker{
		content:      content,
		mappings:     mappings,
		modelBaker:   modelBaker,
		textureBaker: textureBaker,
		In:           make(chan Job, 64),
		Out:          make(chan Result, 64),
	}
}

// Run consumes jobs from w.In until ctx is canceled or In is closed,
// reporting each outcome on w.Out. Intended to run in its own goroutine for
// the lifetime of the server.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.In:
			if !ok {
				return
			}
			err := w.runOne(ctx, job)
			if err != nil {
				logrus.WithError(err).WithField("source", job.Source).Warn("bake: job failed")
			}
			select {
			case w.Out <- Result{Source: job.Source, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) runOne(ctx context.Context, job Job) error {
	baker := w.textureBaker
	if job.Kind == KindModel {
		baker = w.modelBaker
	}
	if baker == nil {
		return fmt.Errorf("bake: no baker configured for kind %v", job.Kind)
	}

	size, err := w.content.Size(ctx, job.Source)
	if err != nil {
		return fmt.Errorf("bake: stat source %s: %w", job.Source, err)
	}
	r, err := w.content.OpenRange(ctx, job.Source, 0, size)
	if err != nil {
		return fmt.Errorf("bake: open source %s: %w", job.Source, err)
	}
	source, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return fmt.Errorf("bake: read source %s: %w", job.Source, err)
	}

	outputs, err := baker.Bake(ctx, source)
	if err != nil {
		return fmt.Errorf("bake: %s: %w", job.Source, err)
	}

	for _, out := range outputs {
		hash, err := w.content.Put(ctx, out.Data)
		if err != nil {
			return fmt.Errorf("bake: store output %s for %s: %w", out.Name, job.Source, err)
		}
		dest := asset.BakedArtifactPath(job.Source, out.Name)
		if err := w.mappings.SetBaked(ctx, dest, hash); err != nil {
			return fmt.Errorf("bake: commit mapping %s: %w", dest, err)
		}
	}

	meta := asset.BakedArtifactPath(job.Source, metaRecordName)
	metaHash, err := w.content.Put(ctx, []byte(fmt.Sprintf(`{"version":%d}`, metaRecordVersion)))
	if err != nil {
		return fmt.Errorf("bake: store meta record for %s: %w", job.Source, err)
	}
	if err := w.mappings.SetBaked(ctx, meta, metaHash); err != nil {
		return fmt.Errorf("bake: commit meta record %s: %w", meta, err)
	}

	return nil
}

// stubBaker is the deterministic placeholder baker behind the stub
// constructors, so that a server can be wired end-to-end and exercised in tests
// without a real FBX/KTX toolchain present.
type stubBaker struct {
	outputName string
}

func (b stubBaker) Bake(ctx context.Context, source []byte) ([]Output, error) {
	return []Output{{Name: b.outputName, Data: source}}, nil
}

// NewModelBakerStub returns a Baker that "bakes" a model by passing its
// source bytes through unchanged under the canonical asset.fbx name. It
// exists so the pipeline can be wired and tested before a real FBX baker
// binary is integrated.
func NewModelBakerStub() Baker {
	return stubBaker{outputName: bakedModelName}
}

// NewTextureBakerStub is NewModelBakerStub's texture-pipeline counterpart,
// producing output under the canonical texture.ktx name.
func NewTextureBakerStub() Baker {
	return stubBaker{outputName: bakedTextureName}
}
