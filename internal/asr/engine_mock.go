package asr

import (
	"context"
	"errors"
)

type mockEngine struct {
	text string
	err  error
}

// NewMockEngine returns text for every file, or fails with errText when set.
func NewMockEngine(text, errText string) Engine {
	m := &mockEngine{text: text}
	if errText != "" {
		m.err = errors.New(errText)
	}
	return m
}

func (m *mockEngine) Generate(_ context.Context, req GenerateRequest) ([]EngineResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []EngineResult{{Key: req.Input, Text: m.text}}, nil
}
