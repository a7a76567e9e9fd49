package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-asr/internal/asr"
	"github.com/loqalabs/loqa-asr/internal/bus"
	"github.com/loqalabs/loqa-asr/internal/capability"
	"github.com/loqalabs/loqa-asr/internal/config"
	"github.com/loqalabs/loqa-asr/internal/eventstore"
	"github.com/loqalabs/loqa-asr/internal/natsserver"
	"github.com/nats-io/nats.go"
)

type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	embedded      *natsserver.EmbeddedServer
	bus           *bus.Client
	registry      *capability.Registry
	store         *eventstore.Store
	service       *asr.Service
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	maxBody       int64
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:     cfg,
		logger:  logger,
		maxBody: maxRecognizeBody,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if err := r.init(ctx); err != nil {
		r.close(context.Background())
		return err
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.httpServer, "http")

	if metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.serve(r.metricsServer, "metrics")
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	for _, srv := range []*http.Server{r.httpServer, r.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()
	r.close(shutdownCtx)

	return nil
}

func (r *Runtime) serve(srv *http.Server, name string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("server", name), slog.String("error", err.Error()))
		}
	}()
}

// init brings up the bus, the event store and the recognizer stack.
func (r *Runtime) init(ctx context.Context) error {
	var conn *nats.Conn
	if r.cfg.Bus.Enabled {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return err
		}
		r.embedded = embedded

		busCfg := r.cfg.Bus
		if embedded != nil {
			busCfg.Servers = []string{embedded.ClientURL()}
		}
		client, err := bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return err
		}
		r.bus = client
		conn = client.Conn()

		registry, err := capability.NewRegistry(ctx, r.cfg.Node, capability.ASRCapabilities(r.cfg.ASR), client, r.logger)
		if err != nil {
			return fmt.Errorf("start capability registry: %w", err)
		}
		r.registry = registry
	}

	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	r.store = store

	if !r.cfg.ASR.Enabled {
		return nil
	}
	recognizer, err := BuildRecognizer(r.cfg.ASR, conn, r.logger)
	if err != nil {
		return err
	}
	r.service = asr.NewService(ctx, r.bus, recognizer, r.store, r.logger)
	return r.service.Start()
}

func (r *Runtime) close(ctx context.Context) {
	if r.service != nil {
		r.service.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("event store close error", slog.String("error", err.Error()))
		}
	}
	if r.registry != nil {
		r.registry.Close()
	}
	r.bus.Close()
	r.embedded.Shutdown()
	if r.tracerClose != nil {
		if err := r.tracerClose(ctx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

// BuildRecognizer constructs the configured engine and recognizer, wrapped
// with instrumentation. The output directory is created if missing.
func BuildRecognizer(cfg config.ASRConfig, conn *nats.Conn, logger *slog.Logger) (asr.Recognizer, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create asr output dir: %w", err)
	}
	engine, err := asr.NewEngine(cfg.Engine, conn)
	if err != nil {
		return nil, fmt.Errorf("create asr engine: %w", err)
	}
	recognizer, err := asr.New(cfg.Provider, asr.Deps{Config: cfg, Engine: engine, Logger: logger})
	if err != nil {
		return nil, err
	}
	instrumented, err := asr.Instrument(recognizer, cfg.Provider)
	if err != nil {
		logger.Warn("failed to instrument recognizer", slog.String("error", err.Error()))
		return recognizer, nil
	}
	return instrumented, nil
}

func (r *Runtime) healthy() bool {
	if r.service != nil && !r.service.Healthy() {
		return false
	}
	if r.cfg.Bus.Enabled && (r.registry == nil || !r.registry.Healthy()) {
		return false
	}
	return true
}
