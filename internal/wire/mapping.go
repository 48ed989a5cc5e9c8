package wire

import (
	"fmt"
	"io"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/bake"
)

// maxDeletePaths bounds how many paths a single AssetDelete body can carry,
// so a malformed or hostile count can never be used to allocate an
// unreasonably large slice before a single path is read.
const maxDeletePaths = 1 << 16

// AssetMappingOperation is the decoded envelope shared by all five
// sub-kinds; exactly one of the typed body fields is populated, matching
// Op.
type AssetMappingOperation struct {
	MessageID uint32
	Op        OpType

	GetPath string // Op == OpGet

	SetPath string // Op == OpSet
	SetHash asset.Hash

	DeletePaths []string // Op == OpDelete

	RenameOldPath string // Op == OpRename
	RenameNewPath string
}

// DecodeAssetMappingOperation parses the envelope and its op-specific body.
func DecodeAssetMappingOperation(r io.Reader) (AssetMappingOperation, error) {
	d := &reader{r: r}
	m := AssetMappingOperation{
		MessageID: d.u32(),
		Op:        OpType(d.u8()),
	}
	if d.err != nil {
		return AssetMappingOperation{}, d.err
	}

	switch m.Op {
	case OpGet:
		m.GetPath = d.string()
	case OpGetAll:
		// empty body
	case OpSet:
		m.SetPath = d.string()
		m.SetHash = d.hash()
	case OpDelete:
		count := d.i32()
		if d.err != nil {
			return AssetMappingOperation{}, d.err
		}
		if count < 0 || count > maxDeletePaths {
			return AssetMappingOperation{}, fmt.Errorf("wire: AssetDelete path count %d out of range [0, %d]", count, maxDeletePaths)
		}
		m.DeletePaths = make([]string, count)
		for i := range m.DeletePaths {
			m.DeletePaths[i] = d.string()
		}
	case OpRename:
		m.RenameOldPath = d.string()
		m.RenameNewPath = d.string()
	default:
		return AssetMappingOperation{}, fmt.Errorf("wire: unknown AssetMappingOperation op_type %d", m.Op)
	}

	return m, d.err
}

// MappingEntry is one (path, hash, baking status) row of a GetAll reply.
type MappingEntry struct {
	Path         asset.Path
	Hash         asset.Hash
	BakingStatus bake.Status
}

// AssetMappingOperationReply is the encoded reply to any AssetMappingOperation.
// Only the fields relevant to Op are consulted.
type AssetMappingOperationReply struct {
	MessageID uint32
	Op        OpType
	Code      asseterr.Code

	// Op == OpGet, Code == NoError
	GetHash        asset.Hash
	WasRedirected  bool
	RedirectedPath asset.Path

	// Op == OpGetAll, Code == NoError
	Entries []MappingEntry
}

func (m AssetMappingOperationReply) Encode() []byte {
	e := &writer{}
	e.u32(m.MessageID)
	e.u8(uint8(m.Code))

	if m.Code != asseterr.NoError {
		return e.bytes()
	}

	switch m.Op {
	case OpGet:
		e.hash(m.GetHash)
		if m.WasRedirected {
			e.u8(1)
			e.string(string(m.RedirectedPath))
		} else {
			e.u8(0)
		}
	case OpGetAll:
		e.i32(int32(len(m.Entries)))
		for _, entry := range m.Entries {
			e.string(string(entry.Path))
			e.hash(entry.Hash)
			e.u8(uint8(entry.BakingStatus))
		}
	}

	return e.bytes()
}
