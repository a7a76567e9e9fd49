package asr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-asr/internal/audio"
)

// Fixed inference parameters.
const (
	DefaultLanguage         = "auto"
	DefaultUseITN           = true
	DefaultBatchSizeSeconds = 60
)

var errNoResults = errors.New("engine returned no results")

// Options configure an EngineRecognizer.
type Options struct {
	OutputDir        string
	Language         string
	UseITN           bool
	BatchSizeSeconds int
	Params           map[string]string
	Postprocess      func(string) string
}

// DefaultOptions returns the fixed parameter set with rich postprocessing.
func DefaultOptions(outputDir string) Options {
	return Options{
		OutputDir:        outputDir,
		Language:         DefaultLanguage,
		UseITN:           DefaultUseITN,
		BatchSizeSeconds: DefaultBatchSizeSeconds,
		Postprocess:      RichTranscription,
	}
}

// EngineRecognizer saves each request as a WAV file and transcribes it with
// an injected Engine.
type EngineRecognizer struct {
	engine Engine
	opts   Options
	writer *audio.FileWriter
	log    *slog.Logger
	clock  func() time.Time
}

func NewEngineRecognizer(engine Engine, opts Options, log *slog.Logger) *EngineRecognizer {
	if opts.Postprocess == nil {
		opts.Postprocess = RichTranscription
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.BatchSizeSeconds <= 0 {
		opts.BatchSizeSeconds = DefaultBatchSizeSeconds
	}
	return &EngineRecognizer{
		engine: engine,
		opts:   opts,
		writer: audio.NewFileWriter(log),
		log:    log.With(slog.String("component", "asr-recognizer")),
		clock:  time.Now,
	}
}

func (r *EngineRecognizer) Recognize(ctx context.Context, frames [][]byte) (result Transcription, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("asr recognition failed", slog.String("error", fmt.Sprintf("panic: %v", rec)))
			result, ok = Transcription{}, false
		}
	}()

	result, err := r.recognize(ctx, frames)
	if err != nil {
		r.log.Error("asr recognition failed", slog.String("error", err.Error()))
		return Transcription{}, false
	}
	r.log.Info("asr recognized text", slog.String("text", result.Text), slog.String("path", result.Path))
	return result, true
}

func (r *EngineRecognizer) recognize(ctx context.Context, frames [][]byte) (Transcription, error) {
	path := audio.NewFilePath(r.opts.OutputDir, r.clock())
	if err := r.writer.Write(frames, path); err != nil {
		return Transcription{}, err
	}

	results, err := r.engine.Generate(ctx, GenerateRequest{
		Input:            path,
		Language:         r.opts.Language,
		UseITN:           r.opts.UseITN,
		BatchSizeSeconds: r.opts.BatchSizeSeconds,
		Params:           r.opts.Params,
	})
	if err != nil {
		return Transcription{}, fmt.Errorf("engine generate: %w", err)
	}
	if len(results) == 0 {
		return Transcription{}, errNoResults
	}

	return Transcription{Text: r.opts.Postprocess(results[0].Text), Path: path}, nil
}
