package georef

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrBadFallback is returned for unreadable MSIG payloads and world files.
var ErrBadFallback = errors.New("unreadable fallback georeferencing")

const (
	msigMagic       = "MSIG/"
	msigParamOffset = 22
	msigMinLength   = 70
)

// ParseMSIG decodes the payload of an MSIG uuid box (after the UUID). Six
// little-endian doubles in world-file order follow a 22 byte header and
// give the centre of the top-left pixel.
func ParseMSIG(data []byte) ([6]float64, error) {
	var gt [6]float64
	if len(data) < msigMinLength || !bytes.HasPrefix(data, []byte(msigMagic)) {
		return gt, fmt.Errorf("%w: MSIG payload of %d bytes", ErrBadFallback, len(data))
	}
	var w [6]float64
	for i := range w {
		off := msigParamOffset + 8*i
		w[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
	}
	return fromWorld(w), nil
}

// ParseWorldFile decodes a six-line world file.
func ParseWorldFile(data []byte) ([6]float64, error) {
	var w [6]float64
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() && n < 6 {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return [6]float64{}, fmt.Errorf("%w: line %d: %v", ErrBadFallback, n+1, err)
		}
		w[n] = v
		n++
	}
	if n < 6 {
		return [6]float64{}, fmt.Errorf("%w: %d of 6 world file values", ErrBadFallback, n)
	}
	if w[0] == 0 && w[3] == 0 {
		return [6]float64{}, fmt.Errorf("%w: zero pixel size", ErrBadFallback)
	}
	return fromWorld(w), nil
}

// fromWorld converts world-file parameters (A, D, B, E, C, F), which locate
// the centre of the top-left pixel, to a corner geotransform.
func fromWorld(w [6]float64) [6]float64 {
	gt := [6]float64{w[4], w[0], w[2], w[5], w[1], w[3]}
	gt[0] -= gt[1]*0.5 + gt[2]*0.5
	gt[3] -= gt[4]*0.5 + gt[5]*0.5
	return gt
}
