package jp2meta

import (
	"sync"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
	"github.com/mrjoshuak/go-jp2meta/internal/codestream"
	"github.com/mrjoshuak/go-jp2meta/internal/diag"
	"github.com/mrjoshuak/go-jp2meta/internal/vendor"
)

// Sentinel errors. Typed errors returned by this package unwrap to them.
var (
	// ErrMalformedContainer is fatal to Open.
	ErrMalformedContainer = box.ErrMalformedContainer

	// ErrMalformedCodestream is reported as a warning diagnostic.
	ErrMalformedCodestream = codestream.ErrMalformedCodestream

	// ErrIncompleteMetadata is reported when a vendor domain lacks
	// mandatory content. Open still succeeds.
	ErrIncompleteMetadata = vendor.ErrIncompleteMetadata

	// ErrUnsupportedDialect is reported at debug level for vendor documents
	// that are not understood. Their domains are omitted.
	ErrUnsupportedDialect = vendor.ErrUnsupportedDialect
)

// ErrorChannel keeps the last warning or failure reported across calls,
// for callers that expect last-message error reporting. The zero value is
// ready to use.
type ErrorChannel struct {
	mu   sync.Mutex
	last diag.Event
	set  bool
}

// Record keeps the last event of events at warning severity or above.
func (c *ErrorChannel) Record(events []diag.Event) {
	e, ok := diag.Last(events, diag.SeverityWarning)
	if !ok {
		return
	}
	c.mu.Lock()
	c.last, c.set = e, true
	c.mu.Unlock()
}

// LastErrorMsg returns the message of the last recorded event, or "".
func (c *ErrorChannel) LastErrorMsg() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return ""
	}
	return c.last.Message
}

// LastError returns the last recorded event.
func (c *ErrorChannel) LastError() (diag.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.set
}

// Reset forgets the recorded event.
func (c *ErrorChannel) Reset() {
	c.mu.Lock()
	c.last, c.set = diag.Event{}, false
	c.mu.Unlock()
}

// DefaultErrorChannel records the diagnostics of Open, OpenReader and
// StructureAsString.
var DefaultErrorChannel = &ErrorChannel{}

// LastErrorMsg returns the message of the last warning or failure recorded
// by DefaultErrorChannel.
func LastErrorMsg() string {
	return DefaultErrorChannel.LastErrorMsg()
}
