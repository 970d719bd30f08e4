package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"INFO", false, true},
		{"warn", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tt.level, "json")
			l.Debug("d")
			l.Info("i")
			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, `"msg":"d"`))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, `"msg":"i"`))
		})
	}
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json").Info("hello", "root", "/r")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "/r", rec["root"])

	buf.Reset()
	New(&buf, "info", "TEXT").Info("hello", "root", "/r")
	assert.Contains(t, buf.String(), "msg=hello root=/r")
}
