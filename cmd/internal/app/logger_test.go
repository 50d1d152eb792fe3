package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, "info", "json", false).Info("auth.login", "outcome", "ok")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json output not parseable: %v (%q)", err, buf.String())
	}
	if line["msg"] != "auth.login" || line["outcome"] != "ok" {
		t.Fatalf("unexpected json line: %v", line)
	}

	buf.Reset()
	newLogger(&buf, "info", "pretty", false).Info("auth.login", "outcome", "ok")
	out := buf.String()
	if !strings.Contains(out, "[INFO]") || !strings.Contains(out, "outcome=ok") {
		t.Fatalf("unexpected pretty line: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("colorless pretty output contains escapes: %q", out)
	}

	buf.Reset()
	newLogger(&buf, "warn", "text", false).Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %q", buf.String())
	}
}
