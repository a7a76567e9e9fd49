package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWriteFramesPreservesPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.wav")
	frames := [][]byte{
		{0x01, 0x00, 0xff, 0x7f},
		{},
		{0x00, 0x80, 0x10, 0x20, 0x30, 0x40},
	}

	if err := NewFileWriter(newLogger()).Write(frames, path); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want := bytes.Join(frames, nil)
	if len(data) != 44+len(want) {
		t.Fatalf("expected %d bytes, got %d", 44+len(want), len(data))
	}
	if !bytes.Equal(data[44:], want) {
		t.Fatalf("payload mismatch: got %x want %x", data[44:], want)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("unexpected header layout: %q", data[:44])
	}
	if size := binary.LittleEndian.Uint32(data[4:8]); int(size) != len(data)-8 {
		t.Fatalf("riff size %d, want %d", size, len(data)-8)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); int(size) != len(want) {
		t.Fatalf("data size %d, want %d", size, len(want))
	}

	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("read info: %v", err)
	}
	if info.Channels != 1 || info.BitDepth != 16 || info.SampleRate != 16000 {
		t.Fatalf("unexpected format: %+v", info)
	}
	if info.PCMBytes != int64(len(want)) {
		t.Fatalf("pcm length %d, want %d", info.PCMBytes, len(want))
	}
}

func TestWriteEmptySequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := NewFileWriter(newLogger()).Write(nil, path); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) != 44 {
		t.Fatalf("expected bare 44 byte header, got %d bytes", len(data))
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != 0 {
		t.Fatalf("expected zero data size, got %d", size)
	}
	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("read info: %v", err)
	}
	if info.PCMBytes != 0 {
		t.Fatalf("expected zero duration, got %d bytes", info.PCMBytes)
	}
}

func TestWriteSampleSplitAcrossFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "split.wav")
	frames := [][]byte{{0x34}, {0x12, 0x78}, {0x56}}

	if err := NewFileWriter(newLogger()).Write(frames, path); err != nil {
		t.Fatalf("write: %v", err)
	}
	pcm, err := ReadPCM(path)
	if err != nil {
		t.Fatalf("read pcm: %v", err)
	}
	if !bytes.Equal(pcm, []byte{0x34, 0x12, 0x78, 0x56}) {
		t.Fatalf("unexpected pcm %x", pcm)
	}
}

func TestWriteRejectsMisalignedPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.wav")
	err := NewFileWriter(newLogger()).Write([][]byte{{0x01, 0x02, 0x03}}, path)
	if !errors.Is(err, ErrMisalignedPCM) {
		t.Fatalf("expected ErrMisalignedPCM, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("expected no file to be created, stat err %v", statErr)
	}
}

func TestWriteUnwritableDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "out.wav")
	err := NewFileWriter(newLogger()).Write([][]byte{{0, 0}}, path)

	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *WriteError, got %T: %v", err, err)
	}
	if writeErr.Path != path {
		t.Fatalf("expected path %q in error, got %q", path, writeErr.Path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist cause, got %v", err)
	}
}

func TestWriteLogsDestination(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	path := filepath.Join(t.TempDir(), "logged.wav")

	if err := NewFileWriter(log).Write([][]byte{{0, 0}}, path); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(logs.String(), path) {
		t.Fatalf("expected log to mention %q, got %q", path, logs.String())
	}
}

func TestNewFileNameFormat(t *testing.T) {
	now := time.Date(2025, 3, 7, 23, 59, 0, 0, time.UTC)
	a := NewFileName(now)
	b := NewFileName(now)

	if a == b {
		t.Fatalf("expected distinct names within the same instant, got %q twice", a)
	}
	if !strings.HasPrefix(a, "asr-2025-03-07@") || !strings.HasSuffix(a, ".wav") {
		t.Fatalf("unexpected name %q", a)
	}
	id := strings.TrimSuffix(strings.TrimPrefix(a, "asr-2025-03-07@"), ".wav")
	if len(id) != 32 {
		t.Fatalf("expected 32 hex chars, got %q", id)
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("non-hex rune %q in id %q", r, id)
		}
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(32000); got != time.Second {
		t.Fatalf("expected 1s for 32000 bytes, got %v", got)
	}
	if got := Duration(16000); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms for 16000 bytes, got %v", got)
	}
}
