package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
	"github.com/vircadia/assetd/internal/bake"
)

func TestDecodeAssetMappingOperationGet(t *testing.T) {
	e := &writer{}
	e.u32(1)
	e.u8(uint8(OpGet))
	e.string("/models/chair.fbx")

	got, err := DecodeAssetMappingOperation(bytes.NewReader(e.bytes()))
	require.NoError(t, err)
	require.Equal(t, OpGet, got.Op)
	require.Equal(t, "/models/chair.fbx", got.GetPath)
}

func TestDecodeAssetMappingOperationGetAll(t *testing.T) {
	e := &writer{}
	e.u32(1)
	e.u8(uint8(OpGetAll))

	got, err := DecodeAssetMappingOperation(bytes.NewReader(e.bytes()))
	require.NoError(t, err)
	require.Equal(t, OpGetAll, got.Op)
}

func TestDecodeAssetMappingOperationSet(t *testing.T) {
	e := &writer{}
	e.u32(1)
	e.u8(uint8(OpSet))
	e.string("/a.fbx")
	e.hash(testHash)

	got, err := DecodeAssetMappingOperation(bytes.NewReader(e.bytes()))
	require.NoError(t, err)
	require.Equal(t, OpSet, got.Op)
	require.Equal(t, "/a.fbx", got.SetPath)
	require.Equal(t, testHash, got.SetHash)
}

func TestDecodeAssetMappingOperationDelete(t *testing.T) {
	e := &writer{}
	e.u32(1)
	e.u8(uint8(OpDelete))
	e.i32(2)
	e.string("/a.fbx")
	e.string("/b.fbx")

	got, err := DecodeAssetMappingOperation(bytes.NewReader(e.bytes()))
	require.NoError(t, err)
	require.Equal(t, OpDelete, got.Op)
	require.Equal(t, []string{"/a.fbx", "/b.fbx"}, got.DeletePaths)
}

func TestDecodeAssetMappingOperationDeleteRejectsNegativeCount(t *testing.T) {
	e := &writer{}
	e.u32(1)
	e.u8(uint8(OpDelete))
	e.i32(-1)

	_, err := DecodeAssetMappingOperation(bytes.NewReader(e.bytes()))
	require.Error(t, err)
}

func TestDecodeAssetMappingOperationDeleteRejectsOversizedCount(t *testing.T) {
	e := &writer{}
	e.u32(1)
	e.u8(uint8(OpDelete))
	e.i32(maxDeletePaths + 1)

	_, err := DecodeAssetMappingOperation(bytes.NewReader(e.bytes()))
	require.Error(t, err)
}

func TestDecodeAssetMappingOperationRename(t *testing.T) {
	e := &writer{}
	e.u32(1)
	e.u8(uint8(OpRename))
	e.string("/old.fbx")
	e.string("/new.fbx")

	got, err := DecodeAssetMappingOperation(bytes.NewReader(e.bytes()))
	require.NoError(t, err)
	require.Equal(t, OpRename, got.Op)
	require.Equal(t, "/old.fbx", got.RenameOldPath)
	require.Equal(t, "/new.fbx", got.RenameNewPath)
}

func TestDecodeAssetMappingOperationUnknownOp(t *testing.T) {
	e := &writer{}
	e.u32(1)
	e.u8(99)

	_, err := DecodeAssetMappingOperation(bytes.NewReader(e.bytes()))
	require.Error(t, err)
}

func TestAssetMappingOperationReplyGetNotRedirected(t *testing.T) {
	reply := AssetMappingOperationReply{MessageID: 1, Op: OpGet, Code: asseterr.NoError, GetHash: testHash}
	b := reply.Encode()

	d := &reader{r: bytes.NewReader(b)}
	require.Equal(t, uint32(1), d.u32())
	require.Equal(t, uint8(asseterr.NoError), d.u8())
	require.Equal(t, testHash, d.hash())
	require.Equal(t, uint8(0), d.u8())
	require.NoError(t, d.err)
}

func TestAssetMappingOperationReplyGetRedirected(t *testing.T) {
	reply := AssetMappingOperationReply{
		MessageID:      1,
		Op:             OpGet,
		Code:           asseterr.NoError,
		GetHash:        testHash,
		WasRedirected:  true,
		RedirectedPath: "/.baked/" + asset.Path(strings.Repeat("a", 64)) + "/asset.fbx",
	}
	b := reply.Encode()

	d := &reader{r: bytes.NewReader(b)}
	d.u32()
	d.u8()
	d.hash()
	require.Equal(t, uint8(1), d.u8())
	require.Equal(t, string(reply.RedirectedPath), d.string())
	require.NoError(t, d.err)
}

func TestAssetMappingOperationReplyGetAll(t *testing.T) {
	reply := AssetMappingOperationReply{
		MessageID: 1,
		Op:        OpGetAll,
		Code:      asseterr.NoError,
		Entries: []MappingEntry{
			{Path: "/a.fbx", Hash: testHash, BakingStatus: bake.StatusBaked},
		},
	}
	b := reply.Encode()

	d := &reader{r: bytes.NewReader(b)}
	d.u32()
	d.u8()
	require.Equal(t, int32(1), d.i32())
	require.Equal(t, "/a.fbx", d.string())
	require.Equal(t, testHash, d.hash())
	require.Equal(t, uint8(bake.StatusBaked), d.u8())
	require.NoError(t, d.err)
}

func TestAssetMappingOperationReplyErrorOmitsBody(t *testing.T) {
	reply := AssetMappingOperationReply{MessageID: 1, Op: OpSet, Code: asseterr.MappingOperationFailed}
	b := reply.Encode()
	require.Len(t, b, 4+1)
}
