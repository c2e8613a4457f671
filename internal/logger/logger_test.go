package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolveLogFilePathDefaultDir(t *testing.T) {
	tmpDir := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("get wd failed: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}

	got, err := resolveLogFilePath(Options{})
	if err != nil {
		t.Fatalf("resolve default log path failed: %v", err)
	}

	realTmpDir, err := filepath.EvalSymlinks(tmpDir)
	if err != nil {
		t.Fatalf("resolve tmp dir symlink failed: %v", err)
	}
	realGot, err := filepath.EvalSymlinks(filepath.Dir(got))
	if err != nil {
		t.Fatalf("resolve got dir symlink failed: %v", err)
	}
	expectedDir := filepath.Join(realTmpDir, defaultLogDirName)
	if realGot != expectedDir {
		t.Fatalf("unexpected log dir: got=%s expected=%s", realGot, expectedDir)
	}
	if filepath.Base(got) != defaultLogFilename {
		t.Fatalf("unexpected log filename: %s", filepath.Base(got))
	}
	if _, err := os.Stat(filepath.Dir(got)); err != nil {
		t.Fatalf("expected log dir to be created: %v", err)
	}
}

func TestNewReleaseWritesToConfiguredFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Options{
		Dir:      tmpDir,
		Filename: "release.log",
	}
	log := New("release", cfg)
	log.Info("release-log-test")
	_ = log.Sync()

	content, err := os.ReadFile(filepath.Join(tmpDir, "release.log"))
	if err != nil {
		t.Fatalf("read release log failed: %v", err)
	}
	if !strings.Contains(string(content), "release-log-test") {
		t.Fatalf("expected log content to contain message, got=%s", string(content))
	}
}

func TestNewDebugDoesNotWriteFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Options{
		Dir:      tmpDir,
		Filename: "debug.log",
	}
	log := New("debug", cfg)
	log.Info("debug-log-test")
	_ = log.Sync()

	if _, err := os.Stat(filepath.Join(tmpDir, "debug.log")); !os.IsNotExist(err) {
		t.Fatalf("debug mode should not create log file")
	}
}

func TestNewReleaseTagsServiceName(t *testing.T) {
	tmpDir := t.TempDir()
	log := New("release", Options{Dir: tmpDir, Filename: "svc.log", Service: "mlm-worker"})
	log.Info("service-tag-test")
	_ = log.Sync()

	content, err := os.ReadFile(filepath.Join(tmpDir, "svc.log"))
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	if !strings.Contains(string(content), `"service":"mlm-worker"`) {
		t.Fatalf("expected service field in log line, got=%s", string(content))
	}
}

func TestServiceNameFallback(t *testing.T) {
	if got := serviceName(Options{Service: "  "}); got != defaultServiceName {
		t.Fatalf("expected default service name, got %s", got)
	}
}

func TestContextLoggerCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	previous := L
	L = zap.New(core)
	t.Cleanup(func() { L = previous })

	ctx := WithContext(context.Background(), "request_id", "req-9")
	ctx = WithContext(ctx, "as_of", "2026-01-02")
	FromContext(ctx).Infow("accrual_started")
	FromContext(context.Background()).Infow("plain")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("want 2 entries got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-9" || fields["as_of"] != "2026-01-02" {
		t.Fatalf("context fields missing: %v", fields)
	}
	if len(entries[1].ContextMap()) != 0 {
		t.Fatalf("plain context should not carry fields: %v", entries[1].ContextMap())
	}
}

func TestResolveLevel(t *testing.T) {
	if got := resolveLevel("", true); got != zapcore.DebugLevel {
		t.Fatalf("debug mode default want debug got %s", got)
	}
	if got := resolveLevel("WARN", false); got != zapcore.WarnLevel {
		t.Fatalf("explicit level want warn got %s", got)
	}
	if got := resolveLevel("loud", false); got != zapcore.InfoLevel {
		t.Fatalf("unknown level should fall back to info, got %s", got)
	}
}
