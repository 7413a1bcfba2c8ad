package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Component loggers are package vars everywhere, so they exist before Initialize.
var earlyLogger = GetForComponent("early")

func TestComponentLoggerFollowsFormat(t *testing.T) {
	t.Cleanup(func() { setOutput(os.Stdout, "") })

	var buf bytes.Buffer
	setOutput(&buf, "json")
	earlyLogger.Info().Str("k", "v").Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "early", line["component"])
	assert.Equal(t, "hello", line["message"])
	assert.Contains(t, line, "caller")

	buf.Reset()
	setOutput(&buf, "console")
	earlyLogger.Info().Msg("hello")
	assert.NotContains(t, buf.String(), `"message"`)
	assert.Contains(t, buf.String(), "hello")
}

func TestWithRequestID(t *testing.T) {
	t.Cleanup(func() { setOutput(os.Stdout, "") })

	var buf bytes.Buffer
	setOutput(&buf, "json")
	WithRequestID(GetForComponent("host"), "req-1").Info().Msg("op")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "host", line["component"])
}
