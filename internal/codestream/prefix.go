package codestream

import (
	"errors"
	"io"

	log "github.com/sirupsen/logrus"
)

// initialPrefix is the size of the first read of ScanHeader. Each further
// read quadruples the prefix.
const initialPrefix = 64 << 10

// ScanHeader scans the main header and first tile-part header of the
// length-byte codestream at off in r. It reads growing prefixes until one
// holds the first SOD, reading at most limit bytes. A limit of 0 or less
// allows the whole codestream.
func ScanHeader(r io.ReaderAt, off, length, limit int64, opts ScanOptions) (*Codestream, error) {
	if limit <= 0 || limit > length {
		limit = length
	}
	opts.StopAtSOD = true

	quiet := log.New()
	quiet.SetOutput(io.Discard)

	var data []byte
	for size := min(int64(initialPrefix), limit); ; size = min(size*4, limit) {
		grown := make([]byte, size)
		copy(grown, data)
		n, err := r.ReadAt(grown[len(data):], off+int64(len(data)))
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		data = grown[:len(data)+n]

		last := size == limit || int64(len(data)) < size
		if last || hasSOD(data, quiet) {
			opts.Partial = int64(len(data)) < length
			return Scan(data, opts), nil
		}
	}
}

// hasSOD reports whether a scan of the prefix data reaches SOD.
func hasSOD(data []byte, quiet log.FieldLogger) bool {
	cs := Scan(data, ScanOptions{StopAtSOD: true, Partial: true, Logger: quiet})
	return len(cs.SegmentsOf(SOD)) > 0
}
