package decoder

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// MaxUnpackedSize bounds the payload extracted from a compressed container.
const MaxUnpackedSize = 64 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Unwrap returns the module payload of data. Gzip (.mdgz, .gz) and xz
// containers are decompressed; anything else is returned unchanged.
func Unwrap(data []byte) ([]byte, error) {
	var (
		r   io.Reader
		err error
	)
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		r, err = gzip.NewReader(bytes.NewReader(data))
	case bytes.HasPrefix(data, xzMagic):
		r, err = xz.NewReader(bytes.NewReader(data))
	default:
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: container header: %v", ErrCorrupt, err)
	}

	out, err := io.ReadAll(io.LimitReader(r, MaxUnpackedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: container payload: %v", ErrCorrupt, err)
	}
	if len(out) > MaxUnpackedSize {
		return nil, fmt.Errorf("%w: container payload exceeds %d bytes", ErrCorrupt, MaxUnpackedSize)
	}
	return out, nil
}
