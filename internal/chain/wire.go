package chain

import (
	"encoding/binary"
)

// Encoder builds the canonical binary encoding shared by every wire type in
// this package: fixed-width little-endian integers, varint-prefixed byte
// strings, and raw fixed-width byte blocks. The buffered, in-memory shape is
// adapted from a streaming Encoder/Decoder pair; since nothing here is
// performance sensitive, it is simplified to build directly into a slice.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// WriteByte appends a single byte.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteBool appends a single byte: 1 for true, 0 for false.
func (e *Encoder) WriteBool(b bool) {
	if b {
		e.WriteByte(1)
		return
	}
	e.WriteByte(0)
}

// WriteUint32LE appends v as 4 little-endian bytes.
func (e *Encoder) WriteUint32LE(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// WriteUint64LE appends v as 8 little-endian bytes.
func (e *Encoder) WriteUint64LE(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// WriteInt64LE appends v as 8 little-endian bytes.
func (e *Encoder) WriteInt64LE(v int64) {
	e.WriteUint64LE(uint64(v))
}

// WriteVarint appends v as a LEB128-style unsigned varint.
func (e *Encoder) WriteVarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

// WriteFixed appends b verbatim, with no length prefix; the reader must know
// the width ahead of time.
func (e *Encoder) WriteFixed(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteBytes appends a varint length prefix followed by b.
func (e *Encoder) WriteBytes(b []byte) {
	e.WriteVarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// =============================================================================

// Decoder reads values out of a buffer in the format written by Encoder. A
// decode failure sets a sticky error that Err reports; subsequent reads
// after a failure return zero values without panicking, so a chain of reads
// can be checked once at the end.
type Decoder struct {
	buf []byte
	pos int
	err error
}

// NewDecoder returns a Decoder positioned at the start of b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Err returns the first error encountered during decoding, if any.
func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) fail(op string) {
	if d.err == nil {
		d.err = Errorf("chain.Decoder."+op, Malformed, "unexpected end of input")
	}
}

// ReadByte reads a single byte, or 0 on error.
func (d *Decoder) ReadByte() byte {
	if d.err != nil || d.pos+1 > len(d.buf) {
		d.fail("ReadByte")
		return 0
	}
	b := d.buf[d.pos]
	d.pos++
	return b
}

// ReadBool reads a single byte and reports whether it was non-zero.
func (d *Decoder) ReadBool() bool {
	return d.ReadByte() != 0
}

// ReadUint32LE reads 4 little-endian bytes, or 0 on error.
func (d *Decoder) ReadUint32LE() uint32 {
	if d.err != nil || d.pos+4 > len(d.buf) {
		d.fail("ReadUint32LE")
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v
}

// ReadUint64LE reads 8 little-endian bytes, or 0 on error.
func (d *Decoder) ReadUint64LE() uint64 {
	if d.err != nil || d.pos+8 > len(d.buf) {
		d.fail("ReadUint64LE")
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v
}

// ReadInt64LE reads 8 little-endian bytes as a signed integer.
func (d *Decoder) ReadInt64LE() int64 {
	return int64(d.ReadUint64LE())
}

// ReadVarint reads a LEB128-style unsigned varint, or 0 on error.
func (d *Decoder) ReadVarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		d.fail("ReadVarint")
		return 0
	}
	d.pos += n
	return v
}

// ReadFixed reads n bytes verbatim, or nil on error.
func (d *Decoder) ReadFixed(n int) []byte {
	if d.err != nil || n < 0 || d.pos+n > len(d.buf) {
		d.fail("ReadFixed")
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

// ReadBytes reads a varint length prefix followed by that many bytes.
func (d *Decoder) ReadBytes() []byte {
	n := d.ReadVarint()
	if d.err != nil {
		return nil
	}
	return d.ReadFixed(int(n))
}

// Remaining reports the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}
