package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestNbFormatterOrdersFields(t *testing.T) {
	t.Parallel()

	entry := log.NewEntry(log.New()).WithFields(log.Fields{
		"user":      int64(7),
		"chat":      int64(-100),
		"component": "moderation",
		"error":     errors.New("boom"),
	})
	entry.Level = log.WarnLevel
	entry.Time = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entry.Message = "line one\nline two"

	out, err := (&NbFormatter{NoColor: true}).Format(entry)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	want := `level=WARN ts=2024-05-01 12:00:00.000 component="moderation" chat=-100 error="boom" user=7 msg="line one\nline two"` + "\n"
	if string(out) != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", out, want)
	}
}

func TestNbFormatterSingleLine(t *testing.T) {
	t.Parallel()

	entry := log.NewEntry(log.New())
	entry.Level = log.InfoLevel
	entry.Message = "a\r\nb"
	out, err := (&NbFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if strings.Count(string(out), "\n") != 1 {
		t.Fatalf("expected one line, got %q", out)
	}
}
