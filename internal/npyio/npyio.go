// Package npyio writes float32 arrays in the NumPy .npy and .npz formats.
package npyio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
)

var order = binary.LittleEndian

// Write encodes v as a C-ordered float32 array with the given shape. With
// no shape, v is written as a 1-D array.
func Write(w io.Writer, v []float32, shape ...int) error {
	if len(shape) == 0 {
		shape = []int{len(v)}
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(v) {
		return errors.Errorf("shape %v does not match %d elements", shape, len(v))
	}

	if err := writeHeader(w, shape); err != nil {
		return err
	}

	buf := make([]byte, 4*len(v))
	for i, x := range v {
		order.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	_, err := w.Write(buf)
	return err
}

// The following is adapted from: github.com/sbinet/npyio
var magic = [6]byte{'\x93', 'N', 'U', 'M', 'P', 'Y'}

const (
	majorVersion = byte(2)
	minorVersion = byte(0)
)

func shapeString(shape []int) string {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	if len(dims) == 1 {
		return "(" + dims[0] + ",)"
	}
	return "(" + strings.Join(dims, ", ") + ")"
}

func writeHeader(w io.Writer, shape []int) error {
	if err := binary.Write(w, order, magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, order, majorVersion); err != nil {
		return err
	}
	if err := binary.Write(w, order, minorVersion); err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	fmt.Fprintf(buf,
		"{'descr': '<f4', 'fortran_order': False, 'shape': %s, }",
		shapeString(shape))

	// magic + version + u32 header length
	var hdrSize = len(magic) + 2 + 4
	padding := (16 - (hdrSize+buf.Len()+1)%16) % 16
	buf.Write(bytes.Repeat([]byte{'\x20'}, padding))
	buf.WriteByte('\n')

	buflen := int64(buf.Len())
	if err := binary.Write(w, order, uint32(buflen)); err != nil {
		return err
	}

	if n, err := io.Copy(w, buf); err != nil {
		return err
	} else if n < buflen {
		return io.ErrShortWrite
	}

	return nil
}
