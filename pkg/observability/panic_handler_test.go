package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(ErrorLevel, buf)

	require.NotPanics(t, func() {
		defer RecoverPanic(logger, "sweep")
		panic("sweep bug")
	})

	out := buf.String()
	assert.Contains(t, out, "PANIC recovered")
	assert.Contains(t, out, "sweep bug")
	assert.Contains(t, out, "sweep")
}

func TestRecoverPanicNoPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(ErrorLevel, buf)

	func() {
		defer RecoverPanic(logger, "sweep")
	}()
	assert.Zero(t, buf.Len())
}
