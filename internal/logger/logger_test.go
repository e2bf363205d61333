package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	l, err := New("warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))

	l, err = New("")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.InfoLevel))

	_, err = New("loud")
	assert.Error(t, err)
}
