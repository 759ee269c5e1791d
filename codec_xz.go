//go:build xz

package kernfs

import (
	"io"

	"github.com/ulikunitz/xz"
)

func init() {
	codecWriters[CodecXZ] = func(w io.Writer) (io.WriteCloser, error) {
		return xz.NewWriter(w)
	}
	codecReaders[CodecXZ] = func(r io.Reader) (io.ReadCloser, error) {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	}
}
