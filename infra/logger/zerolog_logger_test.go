package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestDebugwWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "dispatch", "debug")
	l.Debugw("planned charge", map[string]any{"minimal_charge_power": 412.5})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatch", line["component"])
	assert.Equal(t, "planned charge", line["message"])
	assert.InDelta(t, 412.5, line["minimal_charge_power"], 1e-9)
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "dispatch", "info")
	l.Debugw("hidden", map[string]any{"k": 1})
	l.Debugf("hidden")
	l.Infof("shown")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(""))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("nonsense"))
}

func TestConfigureOverridesEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	Configure("error", false)
	defer Configure("", false)
	l, ok := NewZerologLogger("cfg").(*ZerologLogger)
	require.True(t, ok)
	assert.Equal(t, zerolog.ErrorLevel, l.log.GetLevel())
}
