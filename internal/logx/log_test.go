package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"all":     zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		"none":    zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "json", &buf)
	log.Debug().Msg("hidden")
	log.Info().Str("runner", "r1").Msg("hello")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if m["message"] != "hello" || m["runner"] != "r1" || m["level"] != "info" {
		t.Fatalf("fields = %v", m)
	}
}

func TestNewConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "console", &buf)
	log.Debug().Msg("readable")
	if !strings.Contains(buf.String(), "readable") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("console output = %q", buf.String())
	}
}
