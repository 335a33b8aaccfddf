package box

import (
	"bytes"
	"testing"
)

// FuzzParse checks that arbitrary input never panics the walker and that
// whatever parses serialises back to the same bytes.
// Run with: go test -fuzz=FuzzParse -fuzztime=60s ./internal/box
func FuzzParse(f *testing.F) {
	f.Add(sampleFile())
	f.Add(Signature().Bytes())
	f.Add([]byte{0, 0, 0, 0, 'j', 'p', '2', 'c', 0xFF, 0x4F})
	f.Add([]byte{0, 0, 0, 1, 'x', 'm', 'l', ' ', 0, 0, 0, 0, 0, 0, 0, 17, 'a'})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		boxes, err := ParseBytes(data)
		if err != nil {
			return
		}
		var buf bytes.Buffer
		if err := Write(&buf, boxes, nil); err != nil {
			t.Fatalf("write after successful parse: %v", err)
		}
		if !bytes.Equal(buf.Bytes(), data) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", buf.Len(), len(data))
		}
	})
}
