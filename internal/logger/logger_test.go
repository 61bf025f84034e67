package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"development", "production", "PROD", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		assert.NotNil(t, l.SugaredLogger)
	}
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("category_id", "abc").Warn("cascade partial", "failed", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "cascade partial", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["category_id"])
	assert.EqualValues(t, 2, fields["failed"])
}
