package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithOutput(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		logDebug   bool
		expectJSON bool
		expectLine bool
	}{
		{name: "json info drops debug", cfg: Config{Level: "info", Format: "json"}, logDebug: true, expectJSON: true, expectLine: false},
		{name: "json debug keeps debug", cfg: Config{Level: "debug", Format: "json"}, logDebug: true, expectJSON: true, expectLine: true},
		{name: "console info", cfg: Config{Level: "info", Format: "console"}, expectLine: true},
		{name: "bad level falls back to info", cfg: Config{Level: "loud", Format: "json"}, expectJSON: true, expectLine: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithOutput(tt.cfg, &buf)

			if tt.logDebug {
				log.Debug("hello", zap.String("file_path", "a.py"))
			} else {
				log.Info("hello", zap.String("file_path", "a.py"))
			}
			require.NoError(t, log.Sync())

			out := strings.TrimSpace(buf.String())
			if !tt.expectLine {
				assert.Empty(t, out)
				return
			}
			assert.Contains(t, out, "hello")
			assert.Contains(t, out, "a.py")
			if tt.expectJSON {
				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &entry))
				assert.Equal(t, "a.py", entry["file_path"])
			}
		})
	}
}
