// Package wire implements the bit-exact binary encoding of every message
// body the asset server reads or writes: AssetGet, AssetGetInfo,
// AssetUpload, AssetMappingOperation, and their replies. All integers are
// little-endian; strings are length-prefixed UTF-8 with no terminator.
//
// This is a hand-written encoding/binary codec rather than a general-purpose
// serialization library, grounded on the fixed-layout readPrimitive/
// writePrimitive/writeString style the original transport used: the wire
// format has no schema description a library like protobuf or msgpack could
// express without changing the bytes actually sent.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vircadia/assetd/internal/asset"
	"github.com/vircadia/assetd/internal/asseterr"
)

// OpType enumerates the AssetMappingOperation sub-kinds.
type OpType uint8

const (
	OpGet OpType = iota
	OpGetAll
	OpSet
	OpDelete
	OpRename
)

func (o OpType) String() string {
	switch o {
	case OpGet:
		return "Get"
	case OpGetAll:
		return "GetAll"
	case OpSet:
		return "Set"
	case OpDelete:
		return "Delete"
	case OpRename:
		return "Rename"
	default:
		return fmt.Sprintf("OpType(%d)", uint8(o))
	}
}

// reader wraps an io.Reader with the read-primitive helpers every message
// body decoder needs, grounded on the original transport's readPrimitive/
// readString pattern.
type reader struct {
	r   io.Reader
	err error
}

func (d *reader) u8() uint8 {
	var b [1]byte
	d.read(b[:])
	return b[0]
}

func (d *reader) u32() uint32 {
	var b [4]byte
	d.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (d *reader) i32() int32 {
	return int32(d.u32())
}

func (d *reader) u64() uint64 {
	var b [8]byte
	d.read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func (d *reader) i64() int64 {
	return int64(d.u64())
}

func (d *reader) hash() asset.Hash {
	var raw [asset.HashLength]byte
	d.read(raw[:])
	if d.err != nil {
		return ""
	}
	h, err := asset.NewHashFromRaw(raw[:])
	if err != nil {
		d.err = err
		return ""
	}
	return h
}

func (d *reader) string() string {
	n := d.u32()
	if d.err != nil {
		return ""
	}
	buf := make([]byte, n)
	d.read(buf)
	return string(buf)
}

func (d *reader) read(buf []byte) {
	if d.err != nil {
		return
	}
	_, d.err = io.ReadFull(d.r, buf)
}

// writer wraps a bytes.Buffer with the write-primitive helpers mirroring
// reader.
type writer struct {
	buf bytes.Buffer
}

func (e *writer) u8(v uint8)   { e.buf.WriteByte(v) }
func (e *writer) u32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); e.buf.Write(b[:]) }
func (e *writer) i32(v int32)  { e.u32(uint32(v)) }
func (e *writer) u64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); e.buf.Write(b[:]) }
func (e *writer) i64(v int64)  { e.u64(uint64(v)) }

func (e *writer) hash(h asset.Hash) {
	if !h.Valid() {
		e.buf.Write(make([]byte, asset.HashLength))
		return
	}
	e.buf.Write(h.Raw())
}

func (e *writer) string(s string) {
	e.u32(uint32(len(s)))
	e.buf.WriteString(s)
}

func (e *writer) bytes() []byte {
	return e.buf.Bytes()
}

// AssetGet is the decoded body of an AssetGet request.
type AssetGet struct {
	MessageID    uint32
	Hash         asset.Hash
	FromInclusive int64
	ToExclusive   int64
}

// DecodeAssetGet parses an AssetGet request body from r.
func DecodeAssetGet(r io.Reader) (AssetGet, error) {
	d := &reader{r: r}
	m := AssetGet{
		MessageID:     d.u32(),
		Hash:          d.hash(),
		FromInclusive: d.i64(),
		ToExclusive:   d.i64(),
	}
	return m, d.err
}

// AssetGetReply is the encoded reply to AssetGet. Payload is written by the
// caller directly after the header this type encodes, since it may be large
// and is streamed rather than buffered whole.
type AssetGetReply struct {
	Hash      asset.Hash
	MessageID uint32
	Code      asseterr.Code
	// PayloadSize is only meaningful when Code == asseterr.NoError.
	PayloadSize int64
}

// EncodeHeader writes everything but the payload bytes themselves.
func (m AssetGetReply) EncodeHeader() []byte {
	e := &writer{}
	e.hash(m.Hash)
	e.u32(m.MessageID)
	e.u8(uint8(m.Code))
	if m.Code == asseterr.NoError {
		e.i64(m.PayloadSize)
	}
	return e.bytes()
}

// AssetGetInfo is the decoded body of an AssetGetInfo request.
type AssetGetInfo struct {
	MessageID uint32
	Hash      asset.Hash
}

func DecodeAssetGetInfo(r io.Reader) (AssetGetInfo, error) {
	d := &reader{r: r}
	m := AssetGetInfo{MessageID: d.u32(), Hash: d.hash()}
	return m, d.err
}

// AssetGetInfoReply is the encoded reply to AssetGetInfo.
type AssetGetInfoReply struct {
	MessageID uint32
	Hash      asset.Hash
	Code      asseterr.Code
	AssetSize int64
}

func (m AssetGetInfoReply) Encode() []byte {
	e := &writer{}
	e.u32(m.MessageID)
	e.hash(m.Hash)
	e.u8(uint8(m.Code))
	if m.Code == asseterr.NoError {
		e.i64(m.AssetSize)
	}
	return e.bytes()
}

// AssetUpload is the decoded body of an AssetUpload request.
type AssetUpload struct {
	MessageID uint32
	Payload   []byte
}

// DecodeAssetUpload parses an AssetUpload request body from r. maxSize is
// the configured upload cap (configuration.Assets.MaxUploadSize); the
// declared payload size is checked against it before any allocation or read
// happens, per spec §4.6.2 step 1 — a client claiming a payload near
// math.MaxUint64 must fail fast with AssetTooLarge rather than drive an
// allocation (or read) of that size.
func DecodeAssetUpload(r io.Reader, maxSize int64) (AssetUpload, error) {
	d := &reader{r: r}
	messageID := d.u32()
	size := d.u64()
	if d.err != nil {
		return AssetUpload{}, d.err
	}
	if maxSize > 0 && size > uint64(maxSize) {
		return AssetUpload{}, asseterr.New(asseterr.AssetTooLarge)
	}
	payload := make([]byte, size)
	d.read(payload)
	return AssetUpload{MessageID: messageID, Payload: payload}, d.err
}

// AssetUploadReply is the encoded reply to AssetUpload.
type AssetUploadReply struct {
	MessageID uint32
	Code      asseterr.Code
	Hash      asset.Hash
}

func (m AssetUploadReply) Encode() []byte {
	e := &writer{}
	e.u32(m.MessageID)
	e.u8(uint8(m.Code))
	if m.Code == asseterr.NoError {
		e.hash(m.Hash)
	}
	return e.bytes()
}
