package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestWithBuildID(t *testing.T) {
	ctx := WithBuildID(context.Background(), "build-123")

	lc := GetContext(ctx)
	if lc.BuildID != "build-123" {
		t.Errorf("expected build-123, got %s", lc.BuildID)
	}
}

func TestMultipleContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithBuildID(ctx, "b1")
	ctx = WithMode(ctx, "production")
	ctx = WithStage(ctx, "bundle")

	lc := GetContext(ctx)
	if lc.BuildID != "b1" || lc.Mode != "production" || lc.Stage != "bundle" {
		t.Errorf("unexpected log context: %+v", lc)
	}

	// Later stages replace earlier ones without dropping other fields.
	ctx = WithStage(ctx, "publish")
	lc = GetContext(ctx)
	if lc.Stage != "publish" || lc.BuildID != "b1" {
		t.Errorf("unexpected log context after stage change: %+v", lc)
	}
}

func TestInfoContextIncludesAttributes(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	ctx := WithStage(WithBuildID(context.Background(), "b42"), "sink")
	InfoContext(ctx, "artifact written", slog.String("path", "/out/index.js"))

	out := buf.String()
	for _, want := range []string{"build.id=b42", "stage=sink", "path=/out/index.js", "artifact written"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "json")
	logger.Info("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["k"] != "v" {
		t.Errorf("expected k=v, got %v", rec["k"])
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn, "text")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
}
