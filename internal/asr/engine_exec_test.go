package asr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecArgs(t *testing.T) {
	args := execArgs(GenerateRequest{
		Input:            "/tmp/a.wav",
		Language:         "auto",
		UseITN:           true,
		BatchSizeSeconds: 60,
		Params:           map[string]string{"vad_model": "fsmn", "device": "cuda"},
	})
	want := []string{
		"--input", "/tmp/a.wav",
		"--language", "auto",
		"--use-itn=true",
		"--batch-size-s", "60",
		"--device=cuda",
		"--vad_model=fsmn",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", args, want)
	}
}

func TestExecEngineGenerate(t *testing.T) {
	script := writeScript(t, `printf '[{"key":"%s","text":"<|en|>from exec"}]' "$2"`)
	engine, err := NewExecEngine(script)
	if err != nil {
		t.Fatalf("new exec engine: %v", err)
	}

	results, err := engine.Generate(context.Background(), GenerateRequest{Input: "/tmp/x.wav", Language: "auto"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(results) != 1 || results[0].Key != "/tmp/x.wav" || results[0].Text != "<|en|>from exec" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestExecEngineSingleObject(t *testing.T) {
	script := writeScript(t, `echo '{"text":"single"}'`)
	engine, err := NewExecEngine(script)
	if err != nil {
		t.Fatalf("new exec engine: %v", err)
	}
	results, err := engine.Generate(context.Background(), GenerateRequest{Input: "/tmp/x.wav"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(results) != 1 || results[0].Text != "single" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestExecEngineFailure(t *testing.T) {
	script := writeScript(t, "echo 'cuda out of memory' >&2\nexit 3\n")
	engine, err := NewExecEngine(script)
	if err != nil {
		t.Fatalf("new exec engine: %v", err)
	}
	if _, err := engine.Generate(context.Background(), GenerateRequest{Input: "/tmp/x.wav"}); err == nil {
		t.Fatal("expected error from failing command")
	}
}

func TestNewExecEngineEmptyCommand(t *testing.T) {
	if _, err := NewExecEngine("   "); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestExecEngineQueuedCallHonorsDeadline(t *testing.T) {
	script := writeScript(t, "touch \"$0.started\"\nexec sleep 5\n")
	engine, err := NewExecEngine(script)
	if err != nil {
		t.Fatalf("new exec engine: %v", err)
	}

	busyCtx, cancelBusy := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.Generate(busyCtx, GenerateRequest{Input: "/tmp/busy.wav"})
	}()
	t.Cleanup(func() {
		cancelBusy()
		<-done
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(script + ".started"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first inference never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = engine.Generate(ctx, GenerateRequest{Input: "/tmp/queued.wav"})
	elapsed := time.Since(start)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("queued call returned after %s, want about 100ms", elapsed)
	}
}
