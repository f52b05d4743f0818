// Package wire implements the little-endian primitives of the persisted
// solver format: fixed-width scalars, u64 length-prefixed sequences, u8
// option flags and u32 tagged-union discriminants.
//
// Writer and Reader keep the first error they encounter and turn every
// subsequent call into a no-op, so callers can encode or decode a whole
// structure and check Err once at the end.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
)

var order = binary.LittleEndian

// MaxLen bounds decoded sequence lengths so a corrupt prefix cannot
// trigger an enormous allocation.
const MaxLen = 1 << 28

// UnexpectedVariantError is returned when a decoded discriminant does not
// name a variant of the expected type.
type UnexpectedVariantError struct {
	Type    string
	Found   uint32
	Allowed []uint32
}

// NewRangeError returns an UnexpectedVariantError for a type whose valid
// discriminants are the contiguous range [min, max].
func NewRangeError(typeName string, found, min, max uint32) *UnexpectedVariantError {
	allowed := make([]uint32, 0, max-min+1)
	for v := min; v <= max; v++ {
		allowed = append(allowed, v)
	}
	return &UnexpectedVariantError{Type: typeName, Found: found, Allowed: allowed}
}

func (e *UnexpectedVariantError) contiguous() bool {
	for i := 1; i < len(e.Allowed); i++ {
		if e.Allowed[i] != e.Allowed[i-1]+1 {
			return false
		}
	}
	return len(e.Allowed) > 0
}

func (e *UnexpectedVariantError) Error() string {
	if e.contiguous() {
		return fmt.Sprintf("unexpected variant %d for %s: expected %d..=%d",
			e.Found, e.Type, e.Allowed[0], e.Allowed[len(e.Allowed)-1])
	}

	vals := make([]string, len(e.Allowed))
	for i, v := range e.Allowed {
		vals[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("unexpected variant %d for %s: expected one of [%s]",
		e.Found, e.Type, strings.Join(vals, ", "))
}

// Writer encodes primitives to an underlying io.Writer.
type Writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered while writing.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.err = errors.Wrap(err, "write failed")
	}
}

func (w *Writer) U8(v uint8) {
	w.buf[0] = v
	w.write(w.buf[:1])
}

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

func (w *Writer) U16(v uint16) {
	order.PutUint16(w.buf[:2], v)
	w.write(w.buf[:2])
}

func (w *Writer) I16(v int16) {
	w.U16(uint16(v))
}

func (w *Writer) U32(v uint32) {
	order.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

func (w *Writer) I32(v int32) {
	w.U32(uint32(v))
}

func (w *Writer) U64(v uint64) {
	order.PutUint64(w.buf[:8], v)
	w.write(w.buf[:8])
}

func (w *Writer) F32(v float32) {
	w.U32(math.Float32bits(v))
}

func (w *Writer) F64(v float64) {
	w.U64(math.Float64bits(v))
}

// Tag writes a tagged-union discriminant.
func (w *Writer) Tag(v uint32) {
	w.U32(v)
}

// Len writes a sequence length prefix.
func (w *Writer) Len(n int) {
	w.U64(uint64(n))
}

// Raw writes b without a length prefix.
func (w *Writer) Raw(b []byte) {
	w.write(b)
}

// Reader decodes primitives from an underlying io.Reader.
type Reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered while reading. A payload that
// ends early reports io.ErrUnexpectedEOF as its cause.
func (r *Reader) Err() error {
	return r.err
}

// Fail records err unless an earlier error is already pending.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) read(n int) []byte {
	if r.err != nil {
		for i := range r.buf[:n] {
			r.buf[i] = 0
		}
		return r.buf[:n]
	}
	if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = errors.Wrap(err, "read failed")
	}
	return r.buf[:n]
}

func (r *Reader) U8() uint8 {
	return r.read(1)[0]
}

// Bool reads a u8 flag, rejecting values other than 0 and 1.
func (r *Reader) Bool(typeName string) bool {
	v := r.U8()
	if v > 1 {
		r.Fail(NewRangeError(typeName, uint32(v), 0, 1))
		return false
	}
	return v == 1
}

func (r *Reader) U16() uint16 {
	return order.Uint16(r.read(2))
}

func (r *Reader) I16() int16 {
	return int16(r.U16())
}

func (r *Reader) U32() uint32 {
	return order.Uint32(r.read(4))
}

func (r *Reader) I32() int32 {
	return int32(r.U32())
}

func (r *Reader) U64() uint64 {
	return order.Uint64(r.read(8))
}

func (r *Reader) F32() float32 {
	return math.Float32frombits(r.U32())
}

func (r *Reader) F64() float64 {
	return math.Float64frombits(r.U64())
}

// Tag reads a discriminant and checks it against [0, max].
func (r *Reader) Tag(typeName string, max uint32) uint32 {
	v := r.U32()
	if r.err == nil && v > max {
		r.Fail(NewRangeError(typeName, v, 0, max))
		return 0
	}
	return v
}

// Len reads a sequence length prefix.
func (r *Reader) Len() int {
	n := r.U64()
	if r.err == nil && n > MaxLen {
		r.Fail(errors.Errorf("sequence length %d exceeds limit %d", n, MaxLen))
		return 0
	}
	return int(n)
}

// Raw fills b from the stream.
func (r *Reader) Raw(b []byte) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.r, b); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = errors.Wrap(err, "read failed")
	}
}
