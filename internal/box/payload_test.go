package box

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageHeaderBox_Parse(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x01, 0x00, // Height: 256
		0x00, 0x00, 0x02, 0x00, // Width: 512
		0x00, 0x03, // NumComponents: 3
		0x07, // BPC: 8 bits unsigned
		0x07, // Compression: 7
		0x00, // Unknown colorspace
		0x00, // IPR
	}
	var ihdr ImageHeaderBox
	require.NoError(t, ihdr.Parse(data))
	assert.Equal(t, uint32(256), ihdr.Height)
	assert.Equal(t, uint32(512), ihdr.Width)
	assert.Equal(t, uint16(3), ihdr.NumComponents)
	assert.Equal(t, data, ihdr.Bytes())

	fields := ihdr.Fields()
	assert.Equal(t, Field{"BPC", "7 (8 bits, unsigned)"}, fields[3])

	assert.Error(t, (&ImageHeaderBox{}).Parse(data[:10]))
}

func TestColorSpecBox(t *testing.T) {
	var enum ColorSpecBox
	require.NoError(t, enum.Parse([]byte{1, 0, 0, 0, 0, 0, 16}))
	assert.Equal(t, uint32(CSSRGB), enum.EnumeratedColorspace)
	assert.Contains(t, enum.Fields(), Field{"EnumCS", "16 (sRGB)"})

	var icc ColorSpecBox
	require.NoError(t, icc.Parse([]byte{2, 0, 0, 0xAA, 0xBB}))
	assert.Equal(t, []byte{0xAA, 0xBB}, icc.ICCProfile)
	assert.Equal(t, []byte{2, 0, 0, 0xAA, 0xBB}, icc.Bytes())

	assert.Error(t, (&ColorSpecBox{}).Parse([]byte{1, 0}))
	assert.Error(t, (&ColorSpecBox{}).Parse([]byte{1, 0, 0, 0}))
}

func TestColorspaceName(t *testing.T) {
	assert.Equal(t, "greyscale", ColorspaceName(CSGray))
	assert.Equal(t, "sYCC", ColorspaceName(CSsYCC))
	assert.Equal(t, "unknown", ColorspaceName(99))
}

func TestFileTypeBox(t *testing.T) {
	ftyp := &FileTypeBox{Brand: TypeBrandJP2, MinorVersion: 0, Compatibility: []Type{TypeBrandJP2, TypeOf("jpx")}}
	var parsed FileTypeBox
	require.NoError(t, parsed.Parse(ftyp.Bytes()))
	assert.Equal(t, ftyp, &parsed)
	assert.Equal(t, Field{"CL1", "jpx "}, parsed.Fields()[3])
	assert.Error(t, (&FileTypeBox{}).Parse([]byte{1, 2, 3}))
}

func TestPaletteBox_Parse(t *testing.T) {
	data := []byte{
		0x00, 0x02, // 2 entries
		0x02,       // 2 columns
		0x07, 0x0F, // 8 bits, 16 bits
		0x10, 0x01, 0x00,
		0x20, 0x02, 0x00,
	}
	var p PaletteBox
	require.NoError(t, p.Parse(data))
	assert.Equal(t, [][]uint32{{0x10, 0x0100}, {0x20, 0x0200}}, p.Entries)
	assert.Error(t, (&PaletteBox{}).Parse(data[:8]))
}

func TestComponentMapAndChannelDef(t *testing.T) {
	var cmap ComponentMapBox
	require.NoError(t, cmap.Parse([]byte{0, 0, 1, 0, 0, 0, 1, 1}))
	assert.Equal(t, []ComponentMapping{{0, 1, 0}, {0, 1, 1}}, cmap.Mappings)
	assert.Error(t, (&ComponentMapBox{}).Parse([]byte{0, 0, 1}))

	var cdef ChannelDefBox
	require.NoError(t, cdef.Parse([]byte{0, 1, 0, 3, 0, 1, 0, 0}))
	require.Len(t, cdef.Definitions, 1)
	assert.Equal(t, ChannelDefinition{Channel: 3, Type: 1, Association: 0}, cdef.Definitions[0])
	assert.Contains(t, cdef.Fields(), Field{"Typ0", "1 (opacity)"})
	assert.Error(t, (&ChannelDefBox{}).Parse([]byte{0, 2, 0, 0}))
}

func TestResolutionBox(t *testing.T) {
	res := &ResolutionBox{VertNum: 72, VertDen: 1, HorizNum: 72, HorizDen: 1, VertExp: 2, HorizExp: -1}
	b := NewResolution(res)
	require.Len(t, b.Children, 1)

	var parsed ResolutionBox
	require.NoError(t, parsed.Parse(b.Children[0].Contents))
	assert.Equal(t, *res, parsed)
	assert.Equal(t, "72/1 * 10^2 = 7200 grid points per metre", parsed.Fields()[0].Value)
	assert.Equal(t, "72/1 * 10^-1 = 7.2 grid points per metre", parsed.Fields()[1].Value)
}

func TestUUIDBox(t *testing.T) {
	b := NewUUID(UUIDGeoJP2, []byte{1, 2, 3})
	id, data, ok := UUIDOf(b)
	require.True(t, ok)
	assert.Equal(t, UUIDGeoJP2, id)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, "GeoTIFF", UUIDName(id))
	assert.Equal(t, "unknown", UUIDName(uuid.New()))

	var u UUIDBox
	require.NoError(t, u.Parse(b.Contents))
	assert.Equal(t, "B14BF8BD-083D-4B43-A5AE-8CD7D5A6CE03 (GeoTIFF)", u.Fields()[0].Value)

	_, _, ok = UUIDOf(New(TypeUUID, []byte{1, 2}))
	assert.False(t, ok)
	_, _, ok = UUIDOf(NewXML("x"))
	assert.False(t, ok)
}

func TestUUIDListAndURL(t *testing.T) {
	data := append([]byte{0, 1}, UUIDMSIG[:]...)
	var ulst UUIDListBox
	require.NoError(t, ulst.Parse(data))
	assert.Equal(t, []uuid.UUID{UUIDMSIG}, ulst.IDs)
	assert.Error(t, (&UUIDListBox{}).Parse([]byte{0, 2, 1}))

	var url URLBox
	require.NoError(t, url.Parse([]byte{0, 0, 0, 1, 'h', 't', 't', 'p', 0}))
	assert.Equal(t, uint32(1), url.Flags)
	assert.Equal(t, "http", url.Location)
}

func TestDecoderFor(t *testing.T) {
	assert.IsType(t, &ImageHeaderBox{}, DecoderFor(TypeImageHeader))
	assert.IsType(t, &ResolutionBox{}, DecoderFor(TypeDisplayRes))
	assert.IsType(t, &LabelBox{}, DecoderFor(TypeLabel))
	assert.Nil(t, DecoderFor(TypeXML))
}

func TestParseJP2Header(t *testing.T) {
	jp2h := NewJP2Header(640, 480, 3, 7, CSSRGB)
	jp2h.Children = append(jp2h.Children,
		New(TypeBitsPerComp, []byte{7, 7, 7}),
		New(TypeColorSpec, []byte{1, 0, 0, 0, 0, 0, 17}),
		New(TypeOf("zzzz"), []byte{1}))

	h, err := ParseJP2Header(jp2h)
	require.NoError(t, err)
	require.NotNil(t, h.ImageHeader)
	assert.Equal(t, uint32(640), h.ImageHeader.Width)
	assert.Equal(t, uint32(480), h.ImageHeader.Height)
	assert.Equal(t, []uint8{7, 7, 7}, h.BitsPerComp.BitsPerComponent)
	assert.Equal(t, uint32(CSSRGB), h.ColorSpec.EnumeratedColorspace, "first colr wins")
	assert.Nil(t, h.Palette)

	bad := NewSuper(TypeJP2Header, New(TypeImageHeader, []byte{1, 2}))
	_, err = ParseJP2Header(bad)
	assert.ErrorContains(t, err, "ihdr")
}
