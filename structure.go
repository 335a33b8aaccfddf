package jp2meta

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
	"github.com/mrjoshuak/go-jp2meta/internal/codestream"
	"github.com/mrjoshuak/go-jp2meta/internal/diag"
	"github.com/mrjoshuak/go-jp2meta/internal/report"
)

// ErrBadOption is returned for malformed structure dump options.
var ErrBadOption = report.ErrBadOption

// StructureAsString renders the box and marker structure of the file at
// path. options are KEY=VALUE strings: BINARY_CONTENT, TEXT_CONTENT,
// CODESTREAM, STOP_AT_SOD, DIGEST, ALL and MAX_LINES. Without MAX_LINES
// the dump is capped at cfg.StructureMaxLines.
//
// A truncated dump is returned along with a StructureTruncated warning in
// the returned events.
func StructureAsString(path string, options []string, cfg *Config) (string, []diag.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return "", nil, err
	}
	return StructureOf(f, fi.Size(), options, cfg)
}

// StructureOf is StructureAsString for an open source of size bytes.
func StructureOf(r io.ReaderAt, size int64, options []string, cfg *Config) (string, []diag.Event, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts, err := report.ParseOptions(options)
	if err != nil {
		return "", nil, err
	}
	if !hasOption(options, "MAX_LINES") {
		opts.MaxLines = cfg.StructureMaxLines
	}
	opts.Logger = cfg.logger()

	head := make([]byte, 4)
	n, _ := r.ReadAt(head, 0)
	var res report.Result
	if codestream.IsCodestream(head[:n]) {
		data := make([]byte, size)
		if _, err := r.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
			return "", nil, fmt.Errorf("reading codestream: %w", err)
		}
		res = report.ReportCodestream(data, opts)
	} else {
		boxes, err := box.Parse(r, size, box.WithMaxPayload(cfg.maxPayload()))
		if err != nil {
			return "", nil, err
		}
		res = report.Report(boxes, r, opts)
	}
	DefaultErrorChannel.Record(res.Diagnostics)
	return res.Text, res.Diagnostics, nil
}

func hasOption(options []string, key string) bool {
	for _, o := range options {
		k, _, ok := strings.Cut(o, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), key) {
			return true
		}
	}
	return false
}
