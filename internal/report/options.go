package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrBadOption is returned by ParseOptions for malformed or unknown options.
var ErrBadOption = errors.New("invalid structure option")

// Options selects what Report renders.
type Options struct {
	// BinaryContent hex-dumps binary payloads, 16 bytes per line.
	BinaryContent bool

	// TextContent prints the lines of XML and other text payloads.
	TextContent bool

	// Codestream lists the marker segments of jp2c boxes.
	Codestream bool

	// StopAtSOD ends each codestream listing at the first SOD.
	StopAtSOD bool

	// Digest prints the BLAKE3-256 digest of every leaf payload.
	Digest bool

	// MaxLines caps the number of lines. 0 means unlimited.
	MaxLines int

	Logger log.FieldLogger
}

// ParseOptions parses KEY=VALUE options: ALL, BINARY_CONTENT,
// TEXT_CONTENT, CODESTREAM, STOP_AT_SOD, DIGEST and MAX_LINES. ALL enables
// every listing except STOP_AT_SOD. Keys are case-insensitive.
func ParseOptions(list []string) (Options, error) {
	var o Options
	for _, item := range list {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return o, fmt.Errorf("%w: %q is not KEY=VALUE", ErrBadOption, item)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if key == "MAX_LINES" {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return o, fmt.Errorf("%w: MAX_LINES=%q", ErrBadOption, value)
			}
			o.MaxLines = n
			continue
		}

		on, err := parseYesNo(value)
		if err != nil {
			return o, fmt.Errorf("%w: %s: %v", ErrBadOption, key, err)
		}
		switch key {
		case "ALL":
			o.BinaryContent, o.TextContent, o.Codestream, o.Digest = on, on, on, on
		case "BINARY_CONTENT":
			o.BinaryContent = on
		case "TEXT_CONTENT":
			o.TextContent = on
		case "CODESTREAM":
			o.Codestream = on
		case "STOP_AT_SOD":
			o.StopAtSOD = on
		case "DIGEST":
			o.Digest = on
		default:
			return o, fmt.Errorf("%w: unknown key %q", ErrBadOption, key)
		}
	}
	return o, nil
}

func parseYesNo(v string) (bool, error) {
	switch strings.ToUpper(v) {
	case "YES", "ON", "TRUE", "1":
		return true, nil
	case "NO", "OFF", "FALSE", "0":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", v)
}
