package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_DevEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "dev")

	if !log.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug level enabled in dev")
	}
	log.Debug("site resolved", "site", "blog")
	if !strings.Contains(buf.String(), `"site":"blog"`) {
		t.Fatalf("expected JSON record with attributes, got %q", buf.String())
	}
}

func TestNewLogger_ProdFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug filtered, got %q", buf.String())
	}
	log.Info("visible")
	if !strings.Contains(buf.String(), `"msg":"visible"`) {
		t.Fatalf("expected info record, got %q", buf.String())
	}
}
