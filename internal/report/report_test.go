package report

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
	"github.com/mrjoshuak/go-jp2meta/internal/codestream"
	"github.com/mrjoshuak/go-jp2meta/internal/diag"
)

func segment(m codestream.Marker, params []byte) []byte {
	out := binary.BigEndian.AppendUint16(nil, uint16(m))
	out = binary.BigEndian.AppendUint16(out, uint16(len(params)+2))
	return append(out, params...)
}

// testCodestream is a one-tile, one-component 16x16 codestream.
func testCodestream() []byte {
	var siz []byte
	siz = binary.BigEndian.AppendUint16(siz, 0)
	for _, v := range []uint32{16, 16, 0, 0, 16, 16, 0, 0} {
		siz = binary.BigEndian.AppendUint32(siz, v)
	}
	siz = binary.BigEndian.AppendUint16(siz, 1)
	siz = append(siz, 7, 1, 1)

	data := []byte{0xAA, 0xBB, 0xCC}
	var sot []byte
	sot = binary.BigEndian.AppendUint16(sot, 0)
	sot = binary.BigEndian.AppendUint32(sot, uint32(12+2+len(data)))
	sot = append(sot, 0, 1)

	var out []byte
	out = binary.BigEndian.AppendUint16(out, uint16(codestream.SOC))
	out = append(out, segment(codestream.SIZ, siz)...)
	out = append(out, segment(codestream.COD, []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x05, 0x04, 0x04, 0x00, 0x01})...)
	out = append(out, segment(codestream.QCD, []byte{0x40, 0x48, 0x50, 0x50, 0x58})...)
	out = append(out, segment(codestream.COM, append([]byte{0x00, 0x01}, "Created by test"...))...)
	out = append(out, segment(codestream.SOT, sot)...)
	out = binary.BigEndian.AppendUint16(out, uint16(codestream.SOD))
	out = append(out, data...)
	return binary.BigEndian.AppendUint16(out, uint16(codestream.EOC))
}

var vendorUUID = uuid.MustParse("01234567-89ab-cdef-0123-456789abcdef")

func testFile(t *testing.T) ([]*box.Box, []byte) {
	t.Helper()
	data := box.Assemble(
		box.Signature(),
		box.FileType(),
		box.NewJP2Header(16, 16, 1, 7, 17),
		box.NewXML("<doc>\n  <title>scene</title>\n</doc>\n"),
		box.NewUUID(vendorUUID, []byte("0123456789abcdefXYZ")),
		box.Codestream(testCodestream()),
	)
	boxes, err := box.ParseBytes(data)
	require.NoError(t, err)
	return boxes, data
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		in   []string
		want Options
	}{
		{nil, Options{}},
		{[]string{"ALL=YES"}, Options{BinaryContent: true, TextContent: true, Codestream: true, Digest: true}},
		{[]string{"all=yes", "DIGEST=NO"}, Options{BinaryContent: true, TextContent: true, Codestream: true}},
		{[]string{"CODESTREAM=ON", "STOP_AT_SOD=TRUE"}, Options{Codestream: true, StopAtSOD: true}},
		{[]string{"TEXT_CONTENT=1", "MAX_LINES=20"}, Options{TextContent: true, MaxLines: 20}},
		{[]string{"BINARY_CONTENT = YES"}, Options{BinaryContent: true}},
	}
	for _, tt := range tests {
		got, err := ParseOptions(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}

	for _, bad := range [][]string{{"ALL"}, {"ALL=maybe"}, {"FOO=YES"}, {"MAX_LINES=-1"}, {"MAX_LINES=x"}} {
		_, err := ParseOptions(bad)
		assert.ErrorIs(t, err, ErrBadOption, "%v", bad)
	}
}

func TestReport_Boxes(t *testing.T) {
	boxes, _ := testFile(t)
	res := Report(boxes, nil, Options{})
	assert.False(t, res.Truncated)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, strings.Count(res.Text, "\n"), res.Lines)

	assert.Contains(t, res.Text, `Box "jP  " offset=0 length=12 (12 B) data_offset=8 data_length=4`)
	assert.Contains(t, res.Text, "\n  BR: jp2 \n")
	assert.Contains(t, res.Text, "\nBox \"jp2h\"")
	assert.Contains(t, res.Text, "\n  Box \"ihdr\"")
	assert.Contains(t, res.Text, "\n    HEIGHT: 16\n")
	assert.Contains(t, res.Text, "UUID: 01234567-89AB-CDEF-0123-456789ABCDEF")
	assert.NotContains(t, res.Text, "<title>")
	assert.NotContains(t, res.Text, "Marker")
	assert.NotContains(t, res.Text, "BLAKE3")
}

func TestReport_Contents(t *testing.T) {
	boxes, _ := testFile(t)
	res := Report(boxes, nil, Options{TextContent: true, BinaryContent: true})
	assert.Empty(t, res.Diagnostics)
	assert.Contains(t, res.Text, "\n  <doc>\n    <title>scene</title>\n  </doc>\n")
	assert.Contains(t, res.Text, "\n  00000000  30 31 32 33 34 35 36 37 38 39 61 62 63 64 65 66  |0123456789abcdef|\n")
	assert.Contains(t, res.Text, "\n  00000010  58 59 5a"+strings.Repeat(" ", 39)+"  |XYZ|\n")
}

func TestReport_CodestreamAndDigest(t *testing.T) {
	boxes, _ := testFile(t)
	res := Report(boxes, nil, Options{Codestream: true, Digest: true})
	assert.Empty(t, res.Diagnostics)

	sum := blake3.Sum256(testCodestream())
	assert.Contains(t, res.Text, "BLAKE3: "+hex.EncodeToString(sum[:]))
	for _, want := range []string{
		"\n  Marker SOC offset=0\n",
		"\n  Marker SIZ offset=2 length=41\n",
		"\n    Xsiz: 16\n",
		"\n    Ssiz0: 8 bits, unsigned\n",
		"\n    SPcod_transformation: 1 (5-3 reversible)\n",
		"\n    SGcod_Progress: LRCP\n",
		"\n    Style: 0 (none)\n",
		"\n    GuardBits: 2\n",
		"\n    COM: Created by test\n",
		"\n    Psot: 17\n",
		"\n    Tile data: 3 bytes\n",
		"\n  Marker EOC offset=",
	} {
		assert.Contains(t, res.Text, want)
	}

	res = Report(boxes, nil, Options{Codestream: true, StopAtSOD: true})
	assert.Contains(t, res.Text, "Marker SOD")
	assert.NotContains(t, res.Text, "Marker EOC")
	assert.Contains(t, res.Text, "Stopped at SOD")
}

func TestReport_LazyCodestream(t *testing.T) {
	_, data := testFile(t)
	boxes, err := box.Parse(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	jp2c := box.Find(boxes, box.TypeContCodestream)
	require.NotNil(t, jp2c)
	require.Nil(t, jp2c.Contents)

	res := Report(boxes, bytes.NewReader(data), Options{Codestream: true, Digest: true})
	assert.Empty(t, res.Diagnostics)
	assert.Contains(t, res.Text, "Marker SIZ")
	sum := blake3.Sum256(testCodestream())
	assert.Contains(t, res.Text, hex.EncodeToString(sum[:]))

	res = Report(boxes, nil, Options{Codestream: true})
	assert.Equal(t, 1, diag.Count(res.Diagnostics, diag.KindMalformedContainer))
}

func TestReport_MaxLines(t *testing.T) {
	boxes, _ := testFile(t)
	full := Report(boxes, nil, Options{Codestream: true, TextContent: true})
	require.Greater(t, full.Lines, 10)

	cut := Report(boxes, nil, Options{Codestream: true, TextContent: true, MaxLines: 5})
	assert.True(t, cut.Truncated)
	assert.Equal(t, 5, cut.Lines)
	assert.Equal(t, strings.Join(strings.SplitAfter(full.Text, "\n")[:5], ""), cut.Text)
	require.Len(t, cut.Diagnostics, 1)
	assert.Equal(t, diag.KindStructureTruncated, cut.Diagnostics[0].Kind)
	assert.Equal(t, TruncatedMessage, cut.Diagnostics[0].Message)

	exact := Report(boxes, nil, Options{Codestream: true, TextContent: true, MaxLines: full.Lines})
	assert.False(t, exact.Truncated)
	assert.Equal(t, full.Text, exact.Text)
	assert.Zero(t, diag.Count(exact.Diagnostics, diag.KindStructureTruncated))
}

func TestReportCodestream(t *testing.T) {
	res := ReportCodestream(testCodestream(), Options{})
	assert.Empty(t, res.Diagnostics)
	assert.True(t, strings.HasPrefix(res.Text, "Marker SOC offset=0\nMarker SIZ offset=2 length=41\n  Rsiz: 0\n"))

	res = ReportCodestream([]byte("not a codestream"), Options{})
	assert.Equal(t, 1, diag.Count(res.Diagnostics, diag.KindMalformedCodestream))
}
