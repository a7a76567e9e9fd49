package asr

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type openaiEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine targets an OpenAI-compatible transcription endpoint, such
// as a local inference server exposing /v1/audio/transcriptions. ITN and
// batching are server-side concerns there and are not forwarded.
func NewOpenAIEngine(endpoint, apiKey, model string) Engine {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &openaiEngine{client: openai.NewClientWithConfig(cfg), model: model}
}

func (e *openaiEngine) Generate(ctx context.Context, req GenerateRequest) ([]EngineResult, error) {
	areq := openai.AudioRequest{
		Model:    e.model,
		FilePath: req.Input,
		Format:   openai.AudioResponseFormatJSON,
	}
	if req.Language != "" && req.Language != DefaultLanguage {
		areq.Language = req.Language
	}
	resp, err := e.client.CreateTranscription(ctx, areq)
	if err != nil {
		return nil, fmt.Errorf("create transcription: %w", err)
	}
	return []EngineResult{{Key: req.Input, Text: resp.Text}}, nil
}
