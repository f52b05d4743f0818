package npyio

import (
	"io"
	"sort"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// Array is a named float32 array destined for an .npz archive.
type Array struct {
	Data  []float32
	Shape []int
}

// WriteNPZ writes arrays as a zip archive of .npy members, one per name,
// in sorted name order.
func WriteNPZ(w io.Writer, arrays map[string]Array) error {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)

	z := zip.NewWriter(w)
	for _, name := range names {
		fw, err := z.Create(name + ".npy")
		if err != nil {
			return errors.Wrapf(err, "creating %s", name)
		}

		a := arrays[name]
		if err := Write(fw, a.Data, a.Shape...); err != nil {
			return errors.Wrapf(err, "writing %s", name)
		}
	}

	return z.Close()
}
