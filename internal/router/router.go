// Package router implements the request dispatcher: it demultiplexes
// decoded inbound messages by kind, executes mapping operations
// synchronously on the control goroutine, and enqueues GET/UPLOAD jobs on
// the transfer pool. Exactly one goroutine — the control goroutine — may
// call the mapping-operation handlers, matching spec.md §4.7's requirement
// that mapping mutations never race.
package router

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/bake"
	"github.com/vircadia/assetd/internal/mapping"
	"github.com/vircadia/assetd/internal/orphan"
	"github.com/vircadia/assetd/internal/session"
	"github.com/vircadia/assetd/internal/transfer"
	"github.com/vircadia/assetd/internal/wire"
)

// Mappings is the subset of mapping.Store the router drives directly.
type Mappings interface {
	Get(path asset.Path) (asset.Hash, bool)
	GetAll() []mapping.Entry
	Set(ctx context.Context, path asset.Path, hash asset.Hash) error
	SetBaked(ctx context.Context, path asset.Path, hash asset.Hash) error
	Delete(ctx context.Context, paths []asset.Path) ([]asset.Hash, error)
	Rename(ctx context.Context, oldPath, newPath asset.Path) error
	BakedArtifact(source asset.Hash, name string) (asset.Hash, bool)
	HasMetaRecord(source asset.Hash) bool
}

// Orphans is the subset of orphan.Collector the router needs after a
// mapping delete. Unlinking failures are logged by the collector
// itself and never surface here.
type Orphans interface {
	SweepCandidates(ctx context.Context, candidates []asset.Hash) orphan.Stats
}

// Transfer is the subset of transfer.Pool the router dispatches GET/UPLOAD
// jobs to.
type Transfer interface {
	SubmitSendAsset(ctx context.Context, sink transfer.ReplySink, messageID uint32, hash asset.Hash, from, to int64)
	SubmitUploadAsset(ctx context.Context, sink transfer.ReplySink, messageID uint32, payload []byte)
}

// BakeQueue is the subset of bake.Queue the router consults when deciding
// whether to enqueue a bake job after a mutating mapping change.
type BakeQueue interface {
	Enqueue(source asset.Hash) bool
	Status(source asset.Hash) bake.Status
}

// BakeDispatch hands a constructed job to the Bake Worker's input channel.
// It's a function rather than an exposed channel so the router never blocks
// indefinitely if the worker's buffer is full without an explicit,
// documented point of contention.
type BakeDispatch func(job bake.Job)

// Router ties the mapping store, content store (via Transfer), orphan
// collector, bake queue, and session registry together. Construct one per
// server instance.
type Router struct {
	Mappings  Mappings
	Orphans   Orphans
	Transfer  Transfer
	BakeQueue BakeQueue
	Dispatch  BakeDispatch
	Sessions  *session.Registry

	// Pending correlates in-flight mapping operations by sender and message
	// ID, logging slow or duplicate replies. Nil disables the check, the
	// zero value used by tests that don't care about it.
	Pending *session.Pending
}

// HandleAssetGet enqueues a SendAsset job for msg on the transfer pool. The
// reply is delivered asynchronously to sink.
func (rt *Router) HandleAssetGet(ctx context.Context, sender session.SenderID, msg wire.AssetGet, sink transfer.ReplySink) {
	rt.Transfer.SubmitSendAsset(ctx, sink, msg.MessageID, msg.Hash, msg.FromInclusive, msg.ToExclusive)
}

// HandleAssetGetInfo replies synchronously with the size of the content
// stored under msg.Hash, or AssetNotFound.
func (rt *Router) HandleAssetGetInfo(ctx context.Context, msg wire.AssetGetInfo, size func(ctx context.Context, h asset.Hash) (int64, error)) wire.AssetGetInfoReply {
	n, err := size(ctx, msg.Hash)
	if err != nil {
		return wire.AssetGetInfoReply{MessageID: msg.MessageID, Hash: msg.Hash, Code: asseterr.As(err)}
	}
	return wire.AssetGetInfoReply{MessageID: msg.MessageID, Hash: msg.Hash, Code: asseterr.NoError, AssetSize: n}
}

// HandleAssetUpload checks the sender's write capability and either
// enqueues an UploadAsset job or replies immediately with PermissionDenied,
// per spec.md §4.6.
func (rt *Router) HandleAssetUpload(ctx context.Context, sender session.SenderID, msg wire.AssetUpload, sink transfer.ReplySink) {
	if !rt.Sessions.CanWrite(sender) {
		sink.UploadAssetReply(ctx, msg.MessageID, "", asseterr.PermissionDenied)
		return
	}
	rt.Transfer.SubmitUploadAsset(ctx, sink, msg.MessageID, msg.Payload)
}

// HandleAssetMappingOperation executes msg synchronously against the
// Mapping Store. Mutating sub-kinds (Set, Delete, Rename) require the
// sender's write capability. If Pending is set, the request is correlated
// by sender and message ID for the duration of the call: a Start that finds
// the ID already in flight logs a duplicate-request warning, and Finish
// logs how long the request took.
func (rt *Router) HandleAssetMappingOperation(ctx context.Context, sender session.SenderID, msg wire.AssetMappingOperation) wire.AssetMappingOperationReply {
	if rt.Pending != nil {
		if !rt.Pending.Start(sender, msg.MessageID, time.Now()) {
			logrus.WithFields(logrus.Fields{"sender": sender, "messageID": msg.MessageID}).
				Warn("router: duplicate mapping operation request while prior one is still in flight")
		}
	}

	reply := rt.dispatchMappingOperation(ctx, sender, msg)

	if rt.Pending != nil {
		if elapsed, ok := rt.Pending.Finish(sender, msg.MessageID, time.Now()); ok {
			logrus.WithFields(logrus.Fields{"sender": sender, "messageID": msg.MessageID, "elapsed": elapsed}).
				Debug("router: mapping operation completed")
		}
	}

	return reply
}

func (rt *Router) dispatchMappingOperation(ctx context.Context, sender session.SenderID, msg wire.AssetMappingOperation) wire.AssetMappingOperationReply {
	switch msg.Op {
	case wire.OpGet:
		return rt.handleGet(msg)
	case wire.OpGetAll:
		return rt.handleGetAll(msg)
	case wire.OpSet:
		return rt.handleSet(ctx, sender, msg)
	case wire.OpDelete:
		return rt.handleDelete(ctx, sender, msg)
	case wire.OpRename:
		return rt.handleRename(ctx, sender, msg)
	default:
		return wire.AssetMappingOperationReply{MessageID: msg.MessageID, Op: msg.Op, Code: asseterr.MappingOperationFailed}
	}
}

// skyboxSuffix is the opt-in query string recognized on a Get sub-op's path,
// per spec.md §4.4's note that "a query parameter ?skybox on a GET request
// causes the handler to create the meta record and then re-evaluate."
const skyboxSuffix = "?skybox"

func (rt *Router) handleGet(msg wire.AssetMappingOperation) wire.AssetMappingOperationReply {
	reply := wire.AssetMappingOperationReply{MessageID: msg.MessageID, Op: wire.OpGet}

	rawPath := msg.GetPath
	skybox := strings.HasSuffix(rawPath, skyboxSuffix)
	lookupPath := strings.TrimSuffix(rawPath, skyboxSuffix)

	path, err := asset.ParseFilePath(lookupPath)
	if err != nil {
		reply.Code = asseterr.MappingOperationFailed
		return reply
	}

	hash, ok := rt.Mappings.Get(path)
	if !ok {
		reply.Code = asseterr.AssetNotFound
		return reply
	}
	reply.Code = asseterr.NoError
	reply.GetHash = hash

	if skybox {
		rt.optInSkybox(context.Background(), path, hash)
	}

	artifactName := bakedArtifactNameFor(path)
	if artifactName != "" {
		if artifactHash, baked := rt.Mappings.BakedArtifact(hash, artifactName); baked {
			reply.WasRedirected = true
			reply.GetHash = artifactHash
			reply.RedirectedPath = asset.BakedArtifactPath(hash, artifactName)
		}
	}

	return reply
}

// optInSkybox creates the meta record for hash if absent, then asks the
// bake queue to re-evaluate, mirroring the original opt-in-then-reevaluate
// sequence.
func (rt *Router) optInSkybox(ctx context.Context, path asset.Path, hash asset.Hash) {
	if !rt.Mappings.HasMetaRecord(hash) {
		meta := asset.BakedArtifactPath(hash, "meta.json")
		if err := rt.Mappings.SetBaked(ctx, meta, hash); err != nil {
			logrus.WithError(err).WithField("hash", hash).Warn("router: failed to create opt-in meta record")
			return
		}
	}
	rt.maybeBake(ctx, path, hash)
}

func bakedArtifactNameFor(path asset.Path) string {
	switch path.Extension() {
	case "fbx":
		return "asset.fbx"
	case "png", "jpg", "jpeg", "tga", "bmp", "gif":
		return "texture.ktx"
	default:
		return ""
	}
}

func (rt *Router) handleGetAll(msg wire.AssetMappingOperation) wire.AssetMappingOperationReply {
	entries := rt.Mappings.GetAll()
	out := make([]wire.MappingEntry, 0, len(entries))
	for _, e := range entries {
		status := bake.StatusNotBaked
		if rt.BakeQueue != nil {
			status = rt.BakeQueue.Status(e.Hash)
		}
		if status == bake.StatusNotBaked {
			if name, ok := bake.CanonicalArtifactName(e.Path); ok {
				if _, baked := rt.Mappings.BakedArtifact(e.Hash, name); baked {
					status = bake.StatusBaked
				}
			}
		}
		out = append(out, wire.MappingEntry{
			Path:         e.Path,
			Hash:         e.Hash,
			BakingStatus: status,
		})
	}
	return wire.AssetMappingOperationReply{MessageID: msg.MessageID, Op: wire.OpGetAll, Code: asseterr.NoError, Entries: out}
}

func (rt *Router) handleSet(ctx context.Context, sender session.SenderID, msg wire.AssetMappingOperation) wire.AssetMappingOperationReply {
	reply := wire.AssetMappingOperationReply{MessageID: msg.MessageID, Op: wire.OpSet}
	if !rt.Sessions.CanWrite(sender) {
		reply.Code = asseterr.PermissionDenied
		return reply
	}

	path := asset.Path(msg.SetPath)
	if err := rt.Mappings.Set(ctx, path, msg.SetHash); err != nil {
		reply.Code = asseterr.As(err)
		return reply
	}

	rt.maybeBake(ctx, path, msg.SetHash)
	reply.Code = asseterr.NoError
	return reply
}

func (rt *Router) handleDelete(ctx context.Context, sender session.SenderID, msg wire.AssetMappingOperation) wire.AssetMappingOperationReply {
	reply := wire.AssetMappingOperationReply{MessageID: msg.MessageID, Op: wire.OpDelete}
	if !rt.Sessions.CanWrite(sender) {
		reply.Code = asseterr.PermissionDenied
		return reply
	}

	paths := make([]asset.Path, len(msg.DeletePaths))
	for i, p := range msg.DeletePaths {
		paths[i] = asset.Path(p)
	}

	orphans, err := rt.Mappings.Delete(ctx, paths)
	if err != nil {
		reply.Code = asseterr.As(err)
		return reply
	}

	if rt.Orphans != nil {
		stats := rt.Orphans.SweepCandidates(ctx, orphans)
		if stats.Errors > 0 {
			logrus.WithField("errors", stats.Errors).Warn("router: post-delete orphan sweep had failures, will retry at next startup sweep")
		}
	}

	reply.Code = asseterr.NoError
	return reply
}

func (rt *Router) handleRename(ctx context.Context, sender session.SenderID, msg wire.AssetMappingOperation) wire.AssetMappingOperationReply {
	reply := wire.AssetMappingOperationReply{MessageID: msg.MessageID, Op: wire.OpRename}
	if !rt.Sessions.CanWrite(sender) {
		reply.Code = asseterr.PermissionDenied
		return reply
	}

	newPath := asset.Path(msg.RenameNewPath)
	err := rt.Mappings.Rename(ctx, asset.Path(msg.RenameOldPath), newPath)
	if err != nil {
		reply.Code = asseterr.As(err)
		return reply
	}

	for _, e := range rt.Mappings.GetAll() {
		if e.Path == newPath || (newPath.IsFolder() && e.Path.HasPrefix(newPath)) {
			rt.maybeBake(ctx, e.Path, e.Hash)
		}
	}

	reply.Code = asseterr.NoError
	return reply
}

// maybeBake evaluates whether hash now warrants a bake job and enqueues one
// if so, per spec.md's maybeBake(path, hash) called after every mutating
// mapping change.
func (rt *Router) maybeBake(ctx context.Context, path asset.Path, hash asset.Hash) {
	if rt.BakeQueue == nil || rt.Dispatch == nil {
		return
	}
	if !bake.NeedsBaking(mappingsAsBakeView{rt.Mappings}, path, hash) {
		return
	}
	if !rt.BakeQueue.Enqueue(hash) {
		return
	}
	rt.Dispatch(bake.NewJob(path, hash))
}

// mappingsAsBakeView adapts Mappings to bake.Mappings, the narrower
// interface NeedsBaking consults.
type mappingsAsBakeView struct {
	m Mappings
}

func (v mappingsAsBakeView) BakedArtifact(source asset.Hash, name string) (asset.Hash, bool) {
	return v.m.BakedArtifact(source, name)
}

func (v mappingsAsBakeView) HasMetaRecord(source asset.Hash) bool {
	return v.m.HasMetaRecord(source)
}
