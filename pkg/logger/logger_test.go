package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{zl: zerolog.New(&buf)}

	l.Warn("interval substituted",
		String("from", "50m"),
		String("to", "1h"),
		Int("attempt", 2),
		Float64("price", 101.5),
		Bool("closed", true),
		Duration("delay", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	checks := map[string]interface{}{
		"level":   "warn",
		"message": "interval substituted",
		"from":    "50m",
		"to":      "1h",
		"attempt": float64(2),
		"price":   101.5,
		"closed":  true,
		"delay":   float64(1500),
		"error":   "boom",
	}
	for k, want := range checks {
		if rec[k] != want {
			t.Errorf("%s = %v, want %v", k, rec[k], want)
		}
	}
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := (&Logger{zl: zerolog.New(&buf)}).With(String("component", "stream"))
	l.Info("connected")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["component"] != "stream" {
		t.Fatalf("component = %v", rec["component"])
	}
}
