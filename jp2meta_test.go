package jp2meta

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
)

func TestFormat_String(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJ2K, "J2K"},
		{FormatJP2, "JP2"},
		{FormatJPX, "JPX"},
		{Format(99), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.format.String()
		if got != tt.want {
			t.Errorf("Format(%d).String() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestProfile_String(t *testing.T) {
	tests := []struct {
		profile Profile
		want    string
	}{
		{ProfileNone, "Unrestricted"},
		{Profile(1), "Profile 0"},
		{Profile(2), "Profile 1"},
		{ProfileCinema2K, "Digital Cinema"},
		{ProfileCinemaSLTE, "Digital Cinema"},
		{ProfileBroadcastSingle | 0x0003, "Broadcast"},
		{ProfileIMF4K | 0x0012, "IMF"},
		{ProfilePart2 | 0x0020, "Part 2"},
		{Profile(0x0009), "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.profile.String(), "Profile(%#04x)", uint16(tt.profile))
	}
}

func TestColorSpaceOf(t *testing.T) {
	tests := []struct {
		enumcs uint32
		want   ColorSpace
	}{
		{box.CSSRGB, ColorSpaceSRGB},
		{box.CSGray, ColorSpaceGray},
		{box.CSsYCC, ColorSpaceSYCC},
		{box.CSYCbCr1, ColorSpaceSYCC},
		{box.CSBilevel2, ColorSpaceBilevel},
		{box.CSCMYK, ColorSpaceCMYK},
		{box.CSCIELab, ColorSpaceCIELab},
		{box.CSeSYCC, ColorSpaceEYCC},
		{99, ColorSpaceUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, colorSpaceOf(tt.enumcs), "enumcs %d", tt.enumcs)
	}
}
