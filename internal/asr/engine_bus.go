package asr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-asr/internal/protocol"
	"github.com/nats-io/nats.go"
)

type busEngine struct {
	conn    *nats.Conn
	subject string
}

// NewBusEngine delegates inference to a worker answering requests on
// subject. The worker must see the same filesystem as this process.
func NewBusEngine(conn *nats.Conn, subject string) (Engine, error) {
	if conn == nil {
		return nil, errors.New("bus engine requires a connection")
	}
	if subject == "" {
		subject = protocol.SubjectEngineGenerate
	}
	return &busEngine{conn: conn, subject: subject}, nil
}

func (e *busEngine) Generate(ctx context.Context, req GenerateRequest) ([]EngineResult, error) {
	payload, err := json.Marshal(protocol.EngineRequest{
		Input:            req.Input,
		Language:         req.Language,
		UseITN:           req.UseITN,
		BatchSizeSeconds: req.BatchSizeSeconds,
		Params:           req.Params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal engine request: %w", err)
	}

	msg, err := e.conn.RequestWithContext(ctx, e.subject, payload)
	if err != nil {
		return nil, fmt.Errorf("engine request %s: %w", e.subject, err)
	}

	var reply protocol.EngineReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode engine reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("engine error: %s", reply.Error)
	}
	return reply.Results, nil
}
