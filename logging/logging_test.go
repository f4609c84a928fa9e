package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info().Msg("suppressed")
	logger.Warn().Msg("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn message should pass at warn level")
	}
}

func TestNewConsoleLevel(t *testing.T) {
	if got := NewConsole("error").GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("GetLevel() = %v, want error", got)
	}
	if got := NewConsole("").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("GetLevel() = %v, want info", got)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(&buf, "info"), "gateway")
	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"component":"gateway"`) {
		t.Errorf("output missing component field: %s", buf.String())
	}
}
