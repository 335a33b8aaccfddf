// Package diag carries the non-fatal conditions raised while parsing a JP2
// container.
//
// Every engine operation returns the events it produced alongside its primary
// result instead of writing to a shared "last error" slot. Events are logged
// once, through the logrus logger supplied by the caller, when they are added.
package diag

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Kind classifies a diagnostic event.
type Kind int

const (
	// KindMalformedContainer is box framing that could not be honoured.
	KindMalformedContainer Kind = iota
	// KindMalformedCodestream is marker-level corruption in a codestream.
	KindMalformedCodestream
	// KindIncompleteMetadata is a vendor metadata block missing mandatory keys.
	KindIncompleteMetadata
	// KindUnsupportedDialect is a vendor XML document with an unknown root.
	KindUnsupportedDialect
	// KindStructureTruncated is a structure dump cut at its line limit.
	KindStructureTruncated
	// KindGeoreferencing is a georeferencing source that failed to parse.
	KindGeoreferencing
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMalformedContainer:
		return "MalformedContainer"
	case KindMalformedCodestream:
		return "MalformedCodestream"
	case KindIncompleteMetadata:
		return "IncompleteMetadata"
	case KindUnsupportedDialect:
		return "UnsupportedDialect"
	case KindStructureTruncated:
		return "StructureTruncated"
	case KindGeoreferencing:
		return "Georeferencing"
	default:
		return "Unknown"
	}
}

// Severity is how serious an event is.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityWarning
	SeverityFailure
)

// String returns the name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityWarning:
		return "warning"
	case SeverityFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is one diagnostic.
type Event struct {
	Kind      Kind
	Severity  Severity
	Component string
	Message   string
	Err       error
}

// String formats the event for display.
func (e Event) String() string {
	if e.Component != "" {
		return fmt.Sprintf("%s [%s] %s: %s", e.Severity, e.Kind, e.Component, e.Message)
	}
	return fmt.Sprintf("%s [%s] %s", e.Severity, e.Kind, e.Message)
}

// Collector accumulates the events of a single operation.
// The zero value is usable and logs to the standard logrus logger.
type Collector struct {
	component string
	logger    log.FieldLogger
	events    []Event
}

// NewCollector returns a collector tagging events with component.
// A nil logger selects logrus.StandardLogger().
func NewCollector(component string, logger log.FieldLogger) *Collector {
	return &Collector{component: component, logger: logger}
}

// Add records an event and logs it.
func (c *Collector) Add(e Event) {
	if e.Component == "" {
		e.Component = c.component
	}
	c.events = append(c.events, e)

	entry := c.log().WithFields(log.Fields{
		"kind":      e.Kind.String(),
		"component": e.Component,
	})
	if e.Err != nil {
		entry = entry.WithError(e.Err)
	}
	switch e.Severity {
	case SeverityDebug:
		entry.Debug(e.Message)
	case SeverityWarning:
		entry.Warn(e.Message)
	default:
		entry.Error(e.Message)
	}
}

// Debugf records a debug event.
func (c *Collector) Debugf(kind Kind, format string, args ...any) {
	c.Add(Event{Kind: kind, Severity: SeverityDebug, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a warning event.
func (c *Collector) Warnf(kind Kind, format string, args ...any) {
	c.Add(Event{Kind: kind, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

// Failf records a failure event.
func (c *Collector) Failf(kind Kind, format string, args ...any) {
	c.Add(Event{Kind: kind, Severity: SeverityFailure, Message: fmt.Sprintf(format, args...)})
}

// Error records err as an event of the given kind and severity.
func (c *Collector) Error(kind Kind, sev Severity, err error) {
	if err == nil {
		return
	}
	c.Add(Event{Kind: kind, Severity: sev, Message: err.Error(), Err: err})
}

// Merge appends events produced by a sub-operation. They have already been
// logged and are not logged again.
func (c *Collector) Merge(events []Event) {
	c.events = append(c.events, events...)
}

// Events returns the recorded events in order.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Logger returns the logger events are written to.
func (c *Collector) Logger() log.FieldLogger {
	return c.log()
}

func (c *Collector) log() log.FieldLogger {
	if c.logger == nil {
		return log.StandardLogger()
	}
	return c.logger
}

// Count returns how many events in list have the given kind.
func Count(list []Event, kind Kind) int {
	n := 0
	for _, e := range list {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Filter returns the events of the given kind.
func Filter(list []Event, kind Kind) []Event {
	var out []Event
	for _, e := range list {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the last event at or above the given severity.
func Last(list []Event, min Severity) (Event, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Severity >= min {
			return list[i], true
		}
	}
	return Event{}, false
}
