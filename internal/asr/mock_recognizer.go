package asr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-asr/internal/audio"
)

type mockRecognizer struct {
	outputDir string
	writer    *audio.FileWriter
}

// NewMockRecognizer saves the audio like the real recognizer but answers
// with a synthetic description instead of running inference.
func NewMockRecognizer(outputDir string, log *slog.Logger) Recognizer {
	return &mockRecognizer{outputDir: outputDir, writer: audio.NewFileWriter(log)}
}

func (m *mockRecognizer) Recognize(_ context.Context, frames [][]byte) (Transcription, bool) {
	path := audio.NewFilePath(m.outputDir, time.Now())
	if err := m.writer.Write(frames, path); err != nil {
		return Transcription{}, false
	}
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	return Transcription{
		Text: fmt.Sprintf("[transcript length=%d duration=%s]", total, audio.Duration(total)),
		Path: path,
	}, true
}
