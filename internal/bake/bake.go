// Package bake implements the baking pipeline: a deduplicated per-source-
// hash job queue (Queue) and a single-worker executor (Worker) that invokes
// an external baker implementation and commits its outputs back through the
// mapping store.
package bake

import (
	"context"

	"github.com/vircadia/assetd/internal/asset"
)

// modelExtensions is the set of file extensions baked into an FBX model.
var modelExtensions = map[string]bool{
	"fbx": true,
}

// textureExtensions is the set of image formats eligible for texture
// baking, mirroring the image formats an external image reader supports.
// Kept small and explicit rather than deferring to a runtime capability
// query, since the asset server core has no image decoder of its own.
var textureExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "tga": true, "bmp": true, "gif": true,
}

const (
	bakedModelName   = "asset.fbx"
	bakedTextureName = "texture.ktx"
	metaRecordName   = "meta.json"

	// metaRecordVersion is the bake format version written into every meta
	// record. Bump it when a change to the baker outputs would make an
	// already-baked artifact stale under the old pipeline.
	metaRecordVersion = 1
)

// Mappings is the subset of mapping.Store that NeedsBaking consults. It is
// a narrow interface so the predicate can be tested without constructing a
// full mapping store.
type Mappings interface {
	BakedArtifact(source asset.Hash, name string) (asset.Hash, bool)
	HasMetaRecord(source asset.Hash) bool
}

// NeedsBaking is a pure predicate: does path/hash warrant enqueuing a bake
// job right now? It never mutates state and never blocks.
func NeedsBaking(m Mappings, path asset.Path, hash asset.Hash) bool {
	if path.IsBaked() {
		return false
	}

	ext := path.Extension()
	if ext == "" {
		return false
	}

	switch {
	case modelExtensions[ext]:
		_, alreadyBaked := m.BakedArtifact(hash, KindModel.canonicalName())
		return !alreadyBaked

	case textureExtensions[ext]:
		if !m.HasMetaRecord(hash) {
			return false
		}
		_, alreadyBaked := m.BakedArtifact(hash, KindTexture.canonicalName())
		return !alreadyBaked

	default:
		return false
	}
}

// kindFor returns the bake kind implied by path's extension. Callers must
// have already confirmed NeedsBaking.
func kindFor(path asset.Path) Kind {
	ext := path.Extension()
	if modelExtensions[ext] {
		return KindModel
	}
	return KindTexture
}

// CanonicalArtifactName returns the filename a baked artifact for path would
// be committed under, and whether path's extension is a bakeable kind at
// all. Unlike kindFor, it makes no assumption that NeedsBaking already
// passed — it exists for callers (GetAll's status lookup) that need to
// check a source path's baked-artifact mapping without enqueuing anything.
func CanonicalArtifactName(path asset.Path) (name string, ok bool) {
	if path.IsBaked() {
		return "", false
	}

	ext := path.Extension()
	switch {
	case modelExtensions[ext]:
		return bakedModelName, true
	case textureExtensions[ext]:
		return bakedTextureName, true
	default:
		return "", false
	}
}

// Kind distinguishes the two bake pipelines.
type Kind int

const (
	KindModel Kind = iota
	KindTexture
)

func (k Kind) canonicalName() string {
	if k == KindModel {
		return bakedModelName
	}
	return bakedTextureName
}

// Output is one artifact produced by a Baker invocation, prior to being
// hashed and committed to the content store.
type Output struct {
	// Name is the artifact's own filename, e.g. "asset.fbx" for the
	// primary model output, or an auxiliary filename for secondary
	// outputs (textures referenced by a baked model, mip chains, ...).
	Name string
	Data []byte
}

// Baker is the contract an external baker implementation fulfills: given
// the raw bytes of a source asset, produce baked output(s), or fail. The
// concrete FBX and KTX bakers are out of scope; this interface is the seam
// they plug into.
type Baker interface {
	Bake(ctx context.Context, source []byte) ([]Output, error)
}
