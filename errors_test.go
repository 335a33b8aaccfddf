package jp2meta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrjoshuak/go-jp2meta/internal/diag"
)

func TestErrorChannel(t *testing.T) {
	var c ErrorChannel
	assert.Empty(t, c.LastErrorMsg())
	_, ok := c.LastError()
	assert.False(t, ok)

	c.Record([]diag.Event{{Kind: diag.KindUnsupportedDialect, Severity: diag.SeverityDebug, Message: "skipped"}})
	assert.Empty(t, c.LastErrorMsg())

	c.Record([]diag.Event{
		{Kind: diag.KindMalformedCodestream, Severity: diag.SeverityWarning, Message: "first"},
		{Kind: diag.KindIncompleteMetadata, Severity: diag.SeverityWarning, Message: "second"},
		{Kind: diag.KindUnsupportedDialect, Severity: diag.SeverityDebug, Message: "later debug"},
	})
	assert.Equal(t, "second", c.LastErrorMsg())
	e, ok := c.LastError()
	assert.True(t, ok)
	assert.Equal(t, diag.KindIncompleteMetadata, e.Kind)

	// Events without warnings keep the previous message.
	c.Record(nil)
	assert.Equal(t, "second", c.LastErrorMsg())

	c.Reset()
	assert.Empty(t, c.LastErrorMsg())
}

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{ErrMalformedContainer, ErrMalformedCodestream, ErrIncompleteMetadata, ErrUnsupportedDialect} {
		assert.NotNil(t, err)
	}
	assert.False(t, errors.Is(ErrIncompleteMetadata, ErrUnsupportedDialect))
}
