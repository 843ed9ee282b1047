package rhi

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/rhi/backend"
)

// captureLogs routes every package's logging into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &buf
}

// bindMesh opens a recording device and binds one mesh root on it.
func bindMesh(t *testing.T) {
	t.Helper()
	d, err := Open(backend.BackendRecording, WithLabel("logs"))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer d.Close()
	root, err := d.NewRootObject(meshProgram(d.Session()))
	if err != nil {
		t.Fatalf("NewRootObject() = %v", err)
	}
	defer root.Release()
	data, err := d.Bind(root)
	if err != nil {
		t.Fatalf("Bind() = %v", err)
	}
	data.Release()
}

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger enabled for %v", level)
		}
	}
}

func TestSetLoggerPropagatesToSubPackages(t *testing.T) {
	buf := captureLogs(t)
	bindMesh(t)

	out := buf.String()
	for _, want := range []string{"backend: opened device", "binding:", "recording:logs"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestSetLoggerNilSilencesSubPackages(t *testing.T) {
	buf := captureLogs(t)
	SetLogger(nil)

	if Logger() == nil {
		t.Fatal("SetLogger(nil) left a nil logger")
	}
	bindMesh(t)
	if buf.Len() != 0 {
		t.Errorf("SetLogger(nil) still logs:\n%s", buf.String())
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Logger().Debug("concurrent read")
		}()
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}
	wg.Wait()
}
