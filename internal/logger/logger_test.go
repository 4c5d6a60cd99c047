package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		format  Format
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "debug console", level: LevelDebug, format: FormatConsole, enabled: zapcore.DebugLevel},
		{name: "warn structured", level: LevelWarn, format: FormatStructured, enabled: zapcore.WarnLevel},
		{name: "bad level", level: "verbose", format: FormatConsole, wantErr: true},
		{name: "bad format", level: LevelInfo, format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.enabled))
			assert.False(t, log.Core().Enabled(tt.enabled-1))
		})
	}
}
