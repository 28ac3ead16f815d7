package simlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsLoggerAtLevel(t *testing.T) {
	l, err := New("debug")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New("not-a-level")
	assert.Error(t, err)
}

func TestNoopDoesNotPanic(t *testing.T) {
	l := Noop()
	assert.NotPanics(t, func() {
		l.Infow("hello", "k", "v")
	})
}

func TestWithRunAndKindAttachFields(t *testing.T) {
	l := Noop()
	tagged := WithKind(WithRun(l, "run-123"), KindTraceExhausted)
	assert.NotNil(t, tagged)
}
