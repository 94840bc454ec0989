package pkgfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Encoder appends fixed-width values in a target byte order.
type Encoder struct {
	buf   bytes.Buffer
	order binary.ByteOrder
}

// NewEncoder returns an Encoder writing in order.
func NewEncoder(order binary.ByteOrder) *Encoder {
	return &Encoder{order: order}
}

// Len returns the number of bytes written.
func (e *Encoder) Len() int { return e.buf.Len() }

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) U8(v uint8) { e.buf.WriteByte(v) }

func (e *Encoder) U16(v uint16) {
	var b [2]byte
	e.order.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U32(v uint32) {
	var b [4]byte
	e.order.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U64(v uint64) {
	var b [8]byte
	e.order.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// Text writes a length-prefixed string. Strings longer than 64 KiB are
// truncated.
func (e *Encoder) Text(s string) {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	e.U16(uint16(len(s)))
	e.buf.WriteString(s)
}

// Raw appends bytes without a prefix.
func (e *Encoder) Raw(b []byte) { e.buf.Write(b) }

// Blob writes a length-prefixed byte slice.
func (e *Encoder) Blob(b []byte) {
	e.U32(uint32(len(b)))
	e.buf.Write(b)
}

var errShort = errors.New("unexpected end of data")

// Decoder reads values written by Encoder. The first error sticks.
type Decoder struct {
	data  []byte
	pos   int
	order binary.ByteOrder
	err   error
}

// NewDecoder reads data in order starting at offset.
func NewDecoder(data []byte, offset int, order binary.ByteOrder) *Decoder {
	d := &Decoder{data: data, pos: offset, order: order}
	if offset < 0 || offset > len(data) {
		d.err = fmt.Errorf("offset %d outside %d bytes", offset, len(data))
	}
	return d
}

// Err returns the first decoding error.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.data) {
		d.err = fmt.Errorf("%w at offset %d", errShort, d.pos)
		return nil
	}
	out := d.data[d.pos : d.pos+n]
	d.pos += n
	return out
}

func (d *Decoder) U8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *Decoder) U16() uint16 {
	if b := d.take(2); b != nil {
		return d.order.Uint16(b)
	}
	return 0
}

func (d *Decoder) U32() uint32 {
	if b := d.take(4); b != nil {
		return d.order.Uint32(b)
	}
	return 0
}

func (d *Decoder) U64() uint64 {
	if b := d.take(8); b != nil {
		return d.order.Uint64(b)
	}
	return 0
}

func (d *Decoder) Text() string {
	n := int(d.U16())
	return string(d.take(n))
}

func (d *Decoder) Blob() []byte {
	n := int(d.U32())
	b := d.take(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
