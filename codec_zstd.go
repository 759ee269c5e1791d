//go:build zstd

package kernfs

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func init() {
	codecWriters[CodecZstd] = func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	}
	codecReaders[CodecZstd] = func(r io.Reader) (io.ReadCloser, error) {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	}
}
