package zerolog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/go-uthreads/uthreads/core"
	"github.com/rs/zerolog"
)

func TestLoggerWritesLevelMessageAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))

	l.Info("dispatch", core.F("tid", 3), core.F("quantaRun", 2))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal: %v (raw: %s)", err, buf.String())
	}
	if got["level"] != "info" {
		t.Errorf("level = %v, want info", got["level"])
	}
	if got["message"] != "dispatch" {
		t.Errorf("message = %v, want dispatch", got["message"])
	}
	if got["tid"] != float64(3) {
		t.Errorf("tid field = %v, want 3", got["tid"])
	}
	if got["quantaRun"] != float64(2) {
		t.Errorf("quantaRun field = %v, want 2", got["quantaRun"])
	}
}

func TestLoggerImplementsCoreLogger(t *testing.T) {
	var _ core.Logger = New(zerolog.Logger{})
}

func TestLoggerLevelsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf).Level(zerolog.DebugLevel))

	l.Debug("d")
	l.Warn("w")
	l.Error("e")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("got %d log lines, want 3", len(lines))
	}
	wantLevels := []string{"debug", "warn", "error"}
	for i, line := range lines {
		var got map[string]any
		if err := json.Unmarshal(line, &got); err != nil {
			t.Fatalf("json.Unmarshal line %d: %v", i, err)
		}
		if got["level"] != wantLevels[i] {
			t.Errorf("line %d level = %v, want %v", i, got["level"], wantLevels[i])
		}
	}
}
