package asr

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/loqalabs/loqa-asr/internal/config"
	"github.com/nats-io/nats.go"
)

// Deps are the resources a Factory may use. Engine is constructed and
// owned by the caller.
type Deps struct {
	Config config.ASRConfig
	Engine Engine
	Logger *slog.Logger
}

// Factory builds a Recognizer.
type Factory func(Deps) (Recognizer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"funasr": newFunASR,
		"mock":   newMock,
	}
)

// Register makes a recognizer available under name, replacing any previous
// registration.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Providers lists registered names in sorted order.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the recognizer registered under name.
func New(name string, deps Deps) (Recognizer, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("asr provider %q not found", name)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return factory(deps)
}

func newFunASR(deps Deps) (Recognizer, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("asr provider funasr requires an engine")
	}
	cfg := deps.Config
	return NewEngineRecognizer(deps.Engine, Options{
		OutputDir:        cfg.OutputDir,
		Language:         cfg.Language,
		UseITN:           cfg.UseITN,
		BatchSizeSeconds: cfg.BatchSizeS,
		Params:           cfg.Engine.Params,
		Postprocess:      PostprocessFunc(cfg.Postprocess),
	}, deps.Logger), nil
}

func newMock(deps Deps) (Recognizer, error) {
	return NewMockRecognizer(deps.Config.OutputDir, deps.Logger), nil
}

// NewEngine builds the inference engine selected by cfg.Mode. conn is only
// required for the bus mode.
func NewEngine(cfg config.EngineConfig, conn *nats.Conn) (Engine, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecEngine(cfg.Command)
	case "bus":
		return NewBusEngine(conn, cfg.Subject)
	case "openai":
		return NewOpenAIEngine(cfg.Endpoint, cfg.APIKey, cfg.Model), nil
	case "mock", "":
		return NewMockEngine(cfg.MockText, cfg.MockError), nil
	default:
		return nil, fmt.Errorf("unknown asr engine mode %q", cfg.Mode)
	}
}
