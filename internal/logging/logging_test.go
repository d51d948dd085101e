package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	cases := []struct {
		cfg     Config
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{Config{Level: "info", Format: "json"}, zapcore.InfoLevel, zapcore.DebugLevel},
		{Config{Level: "DEBUG", Format: "console"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{Config{Level: "warn"}, zapcore.WarnLevel, zapcore.InfoLevel},
	}
	for _, c := range cases {
		l, err := New(c.cfg)
		require.NoError(t, err, "config %+v", c.cfg)
		assert.True(t, l.Core().Enabled(c.enabled), "config %+v should enable %s", c.cfg, c.enabled)
		assert.False(t, l.Core().Enabled(c.muted), "config %+v should mute %s", c.cfg, c.muted)
	}
}

func TestNewRejectsUnknown(t *testing.T) {
	_, err := New(Config{Level: "loud", Format: "json"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
