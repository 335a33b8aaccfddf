package codestream

import (
	"fmt"
)

// Header collects the decoded main header segments of a codestream.
type Header struct {
	// SIZ marker data
	Profile       uint16
	ImageWidth    uint32
	ImageHeight   uint32
	ImageXOffset  uint32
	ImageYOffset  uint32
	TileWidth     uint32
	TileHeight    uint32
	TileXOffset   uint32
	TileYOffset   uint32
	NumComponents uint16
	ComponentInfo []ComponentInfo

	// COD marker data (default coding style)
	CodingStyle *CodingStyleDefault

	// QCD marker data (default quantization)
	Quantization *QuantizationDefault

	// Per-component coding styles (COC markers)
	ComponentCodingStyles map[uint16]CodingStyleComponent

	// Per-component quantization (QCC markers)
	ComponentQuantization map[uint16]QuantizationComponent

	// CAP marker data (extended capabilities)
	Capabilities *CapabilitiesMarker

	ProgressionOrderChanges []ProgressionOrderChange
	Regions                 []RegionOfInterest
	Registration            []ComponentRegistration
	PacketLengths           []uint32
	PackedPacketHeaders     []byte
	Comments                []Comment
}

func newHeader() *Header {
	return &Header{
		ComponentCodingStyles: make(map[uint16]CodingStyleComponent),
		ComponentQuantization: make(map[uint16]QuantizationComponent),
	}
}

// ComponentInfo holds per-component size information from the SIZ marker.
type ComponentInfo struct {
	// Bit depth of the component (Ssiz).
	// If bit 7 is set, the component is signed.
	BitDepth uint8

	// Horizontal subsampling factor (XRsiz).
	SubsamplingX uint8

	// Vertical subsampling factor (YRsiz).
	SubsamplingY uint8
}

// Precision returns the bit precision (1-38).
func (c ComponentInfo) Precision() int {
	return int(c.BitDepth&0x7F) + 1
}

// IsSigned returns true if the component values are signed.
func (c ComponentInfo) IsSigned() bool {
	return c.BitDepth&0x80 != 0
}

// CodingStyleDefault holds data from the COD marker.
type CodingStyleDefault struct {
	// Scod: Coding style flags
	CodingStyle uint8

	// SGcod: Style for progressions
	ProgressionOrder    ProgressionOrder
	NumLayers           uint16
	MultipleComponentXf uint8

	// SPcod: Coding parameters
	NumDecompositions  uint8
	CodeBlockWidthExp  uint8
	CodeBlockHeightExp uint8
	CodeBlockStyle     uint8
	WaveletTransform   uint8

	// Precinct sizes (if CodingStylePrecincts is set)
	PrecinctSizes []PrecinctSize
}

// CodeBlockWidth returns the code block width.
func (c CodingStyleDefault) CodeBlockWidth() int {
	return 1 << (c.CodeBlockWidthExp + 2)
}

// CodeBlockHeight returns the code block height.
func (c CodingStyleDefault) CodeBlockHeight() int {
	return 1 << (c.CodeBlockHeightExp + 2)
}

// NumResolutions returns the number of resolution levels.
func (c CodingStyleDefault) NumResolutions() int {
	return int(c.NumDecompositions) + 1
}

// IsReversible returns true if the 5-3 reversible wavelet is used.
func (c CodingStyleDefault) IsReversible() bool {
	return c.WaveletTransform == 1
}

// PrecinctSize holds the precinct dimensions for a resolution level.
type PrecinctSize struct {
	WidthExp  uint8 // PPx: width exponent
	HeightExp uint8 // PPy: height exponent
}

// Width returns the precinct width.
func (p PrecinctSize) Width() int {
	return 1 << p.WidthExp
}

// Height returns the precinct height.
func (p PrecinctSize) Height() int {
	return 1 << p.HeightExp
}

// CodingStyleComponent holds data from a COC marker.
type CodingStyleComponent struct {
	ComponentIndex     uint16
	CodingStyle        uint8
	NumDecompositions  uint8
	CodeBlockWidthExp  uint8
	CodeBlockHeightExp uint8
	CodeBlockStyle     uint8
	WaveletTransform   uint8
	PrecinctSizes      []PrecinctSize
}

// QuantizationDefault holds data from the QCD marker.
type QuantizationDefault struct {
	// Sqcd: quantization style (low 5 bits) and guard bits (high 3 bits)
	QuantizationStyle uint8
	NumGuardBits      uint8

	// SPqcd: exponents only for no quantization, mantissa and exponent
	// pairs for the scalar styles
	StepSizes []StepSize
}

// StepSize represents a quantization step size.
type StepSize struct {
	Mantissa uint16 // 11-bit mantissa
	Exponent uint8  // 5-bit exponent
}

// QuantizationComponent holds data from a QCC marker.
type QuantizationComponent struct {
	ComponentIndex uint16
	QuantizationDefault
}

// ProgressionOrderChange holds one entry of a POC marker.
type ProgressionOrderChange struct {
	ResolutionStart  uint8
	ComponentStart   uint16
	LayerEnd         uint16
	ResolutionEnd    uint8
	ComponentEnd     uint16
	ProgressionOrder ProgressionOrder
}

// TileLength holds one tile-part length entry of a TLM marker.
type TileLength struct {
	TileIndex uint16
	Length    uint32

	// Implicit is set when the TLM carried no tile index (ST=0) and
	// TileIndex was inferred from the entry position.
	Implicit bool
}

// RegionOfInterest holds data from an RGN marker.
type RegionOfInterest struct {
	Component uint16
	Style     uint8
	Shift     uint8
}

// ComponentRegistration holds one component offset from a CRG marker.
type ComponentRegistration struct {
	X uint16
	Y uint16
}

// Comment holds a COM marker.
type Comment struct {
	Registration uint16
	// Text is set for Latin-1 comments, decoded to UTF-8.
	Text string
	Data []byte
}

// CapabilitiesMarker holds data from the CAP marker (extended capabilities).
// This marker is used to signal HTJ2K (Part 15) and other extended features.
type CapabilitiesMarker struct {
	// Pcap is a 32-bit field indicating which extended capabilities are used.
	Pcap uint32

	// CCAPi contains extended component capabilities.
	CCAPi []uint16
}

// CapPcapHTJ2K is Pcap bit 15 (counted from the most significant bit),
// set when Part 15 block coding is used.
const CapPcapHTJ2K uint32 = 0x00020000

// IsHTJ2K returns true if the CAP marker indicates HTJ2K mode.
func (c *CapabilitiesMarker) IsHTJ2K() bool {
	if c == nil {
		return false
	}
	return c.Pcap&CapPcapHTJ2K != 0
}

// IsHTJ2K returns true if this header indicates HTJ2K (High-Throughput) mode.
// HTJ2K is detected via the CAP marker or the CodeBlockHT flag in COD/COC.
func (h *Header) IsHTJ2K() bool {
	if h.Capabilities.IsHTJ2K() {
		return true
	}
	if h.CodingStyle != nil && h.CodingStyle.CodeBlockStyle&CodeBlockHT != 0 {
		return true
	}
	for _, coc := range h.ComponentCodingStyles {
		if coc.CodeBlockStyle&CodeBlockHT != 0 {
			return true
		}
	}
	return false
}

// Validate checks the SIZ values for consistency.
func (h *Header) Validate() error {
	if h.ImageWidth <= h.ImageXOffset || h.ImageHeight <= h.ImageYOffset {
		return fmt.Errorf("invalid image area: %dx%d at offset %d,%d",
			h.ImageWidth, h.ImageHeight, h.ImageXOffset, h.ImageYOffset)
	}

	if h.TileWidth == 0 || h.TileHeight == 0 {
		return fmt.Errorf("invalid tile dimensions: %dx%d", h.TileWidth, h.TileHeight)
	}

	if h.NumComponents == 0 || h.NumComponents > 16384 {
		return fmt.Errorf("invalid number of components: %d", h.NumComponents)
	}

	for i, comp := range h.ComponentInfo {
		if comp.SubsamplingX == 0 || comp.SubsamplingY == 0 {
			return fmt.Errorf("component %d: invalid subsampling: %dx%d",
				i, comp.SubsamplingX, comp.SubsamplingY)
		}
		if prec := comp.Precision(); prec > 38 {
			return fmt.Errorf("component %d: invalid precision: %d", i, prec)
		}
	}

	return nil
}

// NumTiles returns the tile grid size.
func (h *Header) NumTiles() (x, y uint32) {
	if h.TileWidth > 0 && h.ImageWidth > h.TileXOffset {
		x = (h.ImageWidth - h.TileXOffset + h.TileWidth - 1) / h.TileWidth
	}
	if h.TileHeight > 0 && h.ImageHeight > h.TileYOffset {
		y = (h.ImageHeight - h.TileYOffset + h.TileHeight - 1) / h.TileHeight
	}
	return x, y
}

// IsReversible reports whether the default coding style uses the 5-3
// reversible wavelet.
func (h *Header) IsReversible() bool {
	return h.CodingStyle != nil && h.CodingStyle.IsReversible()
}
