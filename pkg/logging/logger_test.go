// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{"  Info ", LevelInfo},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"ERROR", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(42), slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := tt.level.toSlogLevel(); got != tt.want {
			t.Errorf("toSlogLevel(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelDebug,
		LogDir:  dir,
		Service: "confx-test",
		Quiet:   true,
	})
	defer logger.Close()

	logger.Info("hello from the test", "key", "value")

	name := "confx-test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("Log entry is not valid JSON: %v", err)
	}
	if entry["msg"] != "hello from the test" {
		t.Errorf("msg = %v, want %q", entry["msg"], "hello from the test")
	}
	if entry["service"] != "confx-test" {
		t.Errorf("service = %v, want %q", entry["service"], "confx-test")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

func TestNew_LevelFiltersFileOutput(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "confx-test",
		Quiet:   true,
	})
	defer logger.Close()

	logger.Debug("should be dropped")
	logger.Info("should also be dropped")
	logger.Warn("should survive")

	name := "confx-test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Errorf("Below-level messages reached the file: %s", content)
	}
	if !strings.Contains(content, "should survive") {
		t.Errorf("Warn message missing from file: %s", content)
	}
}

func TestNew_BadLogDirFallsBack(t *testing.T) {
	// A regular file where the directory should be makes MkdirAll
	// fail; the logger must still be usable.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	logger := New(Config{LogDir: blocker, Service: "confx-test", Quiet: true})
	defer logger.Close()

	logger.Info("this must not panic")
}

func TestClose_Idempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Service: "confx-test", Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("First Close() failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Second Close() failed: %v", err)
	}
}

// =============================================================================
// multiHandler Tests
// =============================================================================

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	handler := newMultiHandler(
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(handler)

	logger.Debug("debug message")
	logger.Warn("warn message")

	if got := strings.Count(a.String(), "\n"); got != 2 {
		t.Errorf("First handler got %d records, want 2", got)
	}
	if got := strings.Count(b.String(), "\n"); got != 1 {
		t.Errorf("Second handler got %d records, want 1", got)
	}
	if !strings.Contains(b.String(), "warn message") {
		t.Errorf("Second handler missing warn record: %s", b.String())
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	handler := newMultiHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)

	if !handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled(Info) = false, want true when any handler accepts")
	}
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(Debug) = true, want false when no handler accepts")
	}
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := newMultiHandler(
		slog.NewJSONHandler(&buf, nil),
	).WithAttrs([]slog.Attr{slog.String("component", "distributor")})

	slog.New(handler).Info("attributed")

	if !strings.Contains(buf.String(), `"component":"distributor"`) {
		t.Errorf("Attribute missing from output: %s", buf.String())
	}
}
