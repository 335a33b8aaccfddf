// Package jp2meta reads the metadata of JPEG 2000 geospatial rasters.
//
// It parses the JP2 box hierarchy and the codestream headers, resolves
// georeferencing from GeoJP2, GMLJP2, MSIG and world files, extracts
// satellite vendor metadata and renders a structure dump. Pixel data is
// never decoded.
//
// Basic usage:
//
//	ds, err := jp2meta.Open("scene.jp2", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ds.Close()
//	gt, ok := ds.GeoTransform()
//	wkt := ds.Projection()
package jp2meta

import (
	"github.com/mrjoshuak/go-jp2meta/internal/box"
)

// Format constants for JPEG 2000 file formats.
const (
	// FormatJ2K is the raw codestream format (no file wrapper).
	FormatJ2K Format = iota
	// FormatJP2 is the standard JP2 file format with metadata boxes.
	FormatJP2
	// FormatJPX is the extended JP2 format (Part 2).
	FormatJPX
)

// Format represents a JPEG 2000 file format.
type Format int

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatJ2K:
		return "J2K"
	case FormatJP2:
		return "JP2"
	case FormatJPX:
		return "JPX"
	default:
		return "Unknown"
	}
}

// Profile constants for JPEG 2000 profiles (RSIZ parameter).
const (
	// ProfileNone indicates no profile restrictions.
	ProfileNone Profile = 0x0000
	// ProfileCinema2K is the 2K Digital Cinema profile.
	ProfileCinema2K Profile = 0x0003
	// ProfileCinema4K is the 4K Digital Cinema profile.
	ProfileCinema4K Profile = 0x0004
	// ProfileCinemaS2K is the 2K scalable Digital Cinema profile.
	ProfileCinemaS2K Profile = 0x0005
	// ProfileCinemaS4K is the 4K scalable Digital Cinema profile.
	ProfileCinemaS4K Profile = 0x0006
	// ProfileCinemaSLTE is the Long-term extension Digital Cinema profile.
	ProfileCinemaSLTE Profile = 0x0007
	// ProfileBroadcastSingle is single-tile broadcast profile.
	ProfileBroadcastSingle Profile = 0x0100
	// ProfileBroadcastMulti is multi-tile broadcast profile.
	ProfileBroadcastMulti Profile = 0x0200
	// ProfileIMF2K is 2K Interoperable Master Format profile.
	ProfileIMF2K Profile = 0x0400
	// ProfileIMF4K is 4K Interoperable Master Format profile.
	ProfileIMF4K Profile = 0x0500
	// ProfileIMF8K is 8K Interoperable Master Format profile.
	ProfileIMF8K Profile = 0x0600
	// ProfilePart2 indicates Part 2 extensions are used.
	ProfilePart2 Profile = 0x8000
)

// Profile represents a JPEG 2000 profile (RSIZ parameter).
type Profile uint16

// String names the profile as reported in the default metadata domain.
// Rsiz values 1 and 2 are the Part 1 restricted profiles.
func (p Profile) String() string {
	switch {
	case p == ProfileNone:
		return "Unrestricted"
	case p == 1:
		return "Profile 0"
	case p == 2:
		return "Profile 1"
	case p&ProfilePart2 != 0:
		return "Part 2"
	}
	switch p & 0x0F00 {
	case ProfileBroadcastSingle, ProfileBroadcastMulti, 0x0300:
		return "Broadcast"
	case ProfileIMF2K, ProfileIMF4K, ProfileIMF8K:
		return "IMF"
	}
	switch p {
	case ProfileCinema2K, ProfileCinema4K, ProfileCinemaS2K, ProfileCinemaS4K, ProfileCinemaSLTE:
		return "Digital Cinema"
	}
	return "Unknown"
}

// ColorSpace represents the colour space declared by the colr box.
type ColorSpace int

const (
	// ColorSpaceUnknown is an enumerated colour space this package does not
	// name.
	ColorSpaceUnknown ColorSpace = iota - 1

	// ColorSpaceUnspecified is reported for raw codestreams and for JP2
	// files whose colr box uses an ICC profile.
	ColorSpaceUnspecified

	ColorSpaceSRGB
	ColorSpaceGray
	ColorSpaceSYCC
	ColorSpaceEYCC
	ColorSpaceCMYK
	ColorSpaceBilevel
	ColorSpaceYCbCr2
	ColorSpaceYCbCr3
	ColorSpacePhotoYCC
	ColorSpaceCMY
	ColorSpaceYCCK
	ColorSpaceCIELab
	ColorSpaceCIEJab
	ColorSpaceESRGB
	ColorSpaceROMMRGB
	ColorSpaceYPbPr60
	ColorSpaceYPbPr50
)

// colorSpaceOf maps an enumerated colour space of the colr box.
func colorSpaceOf(enumcs uint32) ColorSpace {
	switch enumcs {
	case box.CSBilevel1, box.CSBilevel2:
		return ColorSpaceBilevel
	case box.CSGray:
		return ColorSpaceGray
	case box.CSSRGB:
		return ColorSpaceSRGB
	case box.CSYCbCr1, box.CSsYCC:
		return ColorSpaceSYCC
	case box.CSYCbCr2:
		return ColorSpaceYCbCr2
	case box.CSYCbCr3:
		return ColorSpaceYCbCr3
	case box.CSPhotoYCC:
		return ColorSpacePhotoYCC
	case box.CSCMY:
		return ColorSpaceCMY
	case box.CSCMYK:
		return ColorSpaceCMYK
	case box.CSYCCK:
		return ColorSpaceYCCK
	case box.CSCIELab:
		return ColorSpaceCIELab
	case box.CSCIEJab:
		return ColorSpaceCIEJab
	case box.CSeSRGB:
		return ColorSpaceESRGB
	case box.CSROMMRGB:
		return ColorSpaceROMMRGB
	case box.CSYPbPr1125:
		return ColorSpaceYPbPr60
	case box.CSYPbPr1250:
		return ColorSpaceYPbPr50
	case box.CSeSYCC:
		return ColorSpaceEYCC
	default:
		return ColorSpaceUnknown
	}
}
