// Package asr turns recorded PCM frames into text by persisting them as a
// WAV file and handing the file to an external inference engine.
package asr

import (
	"context"

	"github.com/loqalabs/loqa-asr/internal/protocol"
)

// Transcription is a successful recognition: the cleaned text and the WAV
// file it was produced from.
type Transcription struct {
	Text string
	Path string
}

// Recognizer abstracts speech recognition backends. Recognize never fails
// loudly: when no transcription is available it returns false and callers
// must not use the Transcription.
type Recognizer interface {
	Recognize(ctx context.Context, frames [][]byte) (Transcription, bool)
}

// GenerateRequest carries the inference parameters sent with every file.
type GenerateRequest struct {
	Input            string
	Language         string
	UseITN           bool
	BatchSizeSeconds int
	// Params are engine load parameters passed through uninterpreted.
	Params map[string]string
}

// EngineResult is one recognized item.
type EngineResult = protocol.EngineResult

// Engine is the external inference capability. Implementations are owned
// by the host and shared by the recognizer.
type Engine interface {
	Generate(ctx context.Context, req GenerateRequest) ([]EngineResult, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req GenerateRequest) ([]EngineResult, error)

func (f EngineFunc) Generate(ctx context.Context, req GenerateRequest) ([]EngineResult, error) {
	return f(ctx, req)
}
