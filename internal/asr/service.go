package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-asr/internal/bus"
	"github.com/loqalabs/loqa-asr/internal/eventstore"
	"github.com/loqalabs/loqa-asr/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Recorder persists recognition outcomes.
type Recorder interface {
	Append(ctx context.Context, rec eventstore.Record) error
}

// Service answers recognition requests arriving on the bus. Without a bus
// client it still serves Handle calls from other surfaces.
type Service struct {
	bus        *bus.Client
	recognizer Recognizer
	recorder   Recorder
	logger     *slog.Logger
	sub        *nats.Subscription
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	ready      bool
}

func NewService(parent context.Context, busClient *bus.Client, recognizer Recognizer, recorder Recorder, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:        busClient,
		recognizer: recognizer,
		recorder:   recorder,
		logger:     logger.With(slog.String("component", "asr-service")),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Service) Start() error {
	if s.bus == nil {
		return nil
	}
	sub, err := s.bus.Conn().QueueSubscribe(protocol.SubjectRecognize, protocol.QueueASR, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe recognize requests: %w", err)
	}
	s.mu.Lock()
	s.sub = sub
	s.ready = true
	s.mu.Unlock()
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	sub := s.sub
	s.ready = false
	s.mu.Unlock()
	if sub != nil {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	if s.bus == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.RecognizeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode recognize request", slogError(err))
		s.respond(msg, protocol.RecognizeReply{})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		reply := s.Handle(s.ctx, req)
		s.respond(msg, reply)
	}()
}

// Handle runs one recognition, records it and broadcasts the transcript.
func (s *Service) Handle(ctx context.Context, req protocol.RecognizeRequest) protocol.RecognizeReply {
	result, ok := s.recognizer.Recognize(ctx, req.Frames)
	reply := protocol.RecognizeReply{SessionID: req.SessionID, OK: ok}
	if ok {
		reply.Text = result.Text
		reply.Path = result.Path
		s.publishTranscript(req.SessionID, result)
	}
	if s.recorder != nil {
		rec := eventstore.Record{SessionID: req.SessionID, AudioPath: reply.Path, Text: reply.Text, OK: ok}
		if err := s.recorder.Append(ctx, rec); err != nil {
			s.logger.Warn("failed to record recognition", slogError(err))
		}
	}
	return reply
}

func (s *Service) respond(msg *nats.Msg, reply protocol.RecognizeReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to marshal recognize reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond to recognize request", slogError(err))
	}
}

func (s *Service) publishTranscript(sessionID string, result Transcription) {
	if s.bus == nil || result.Text == "" {
		return
	}
	msg := protocol.Transcript{
		SessionID: sessionID,
		Text:      result.Text,
		AudioPath: result.Path,
		Partial:   false,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("failed to marshal transcript", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectTranscriptFinal, data); err != nil {
		s.logger.Warn("failed to publish transcript", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
