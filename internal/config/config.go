package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Node        NodeConfig       `yaml:"node"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	ASR         ASRConfig        `yaml:"asr"`
}

// NodeConfig identifies this worker on the bus. An empty ID is replaced by a
// random one at startup.
type NodeConfig struct {
	ID                string `yaml:"id"`
	Role              string `yaml:"role"`
	HeartbeatInterval int    `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int    `yaml:"heartbeat_timeout_ms"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRecords    int    `yaml:"max_records"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// ASRConfig configures the recognizer. OutputDir keeps the historical
// output_file key even though it names a directory.
type ASRConfig struct {
	Enabled     bool         `yaml:"enabled"`
	Provider    string       `yaml:"provider"`
	OutputDir   string       `yaml:"output_file"`
	Postprocess string       `yaml:"postprocess"` // rich, plain
	Language    string       `yaml:"language"`
	UseITN      bool         `yaml:"use_itn"`
	BatchSizeS  int          `yaml:"batch_size_s"`
	Engine      EngineConfig `yaml:"engine"`
}

// EngineConfig selects and parameterizes the external inference engine.
// Params are passed through to the engine untouched.
type EngineConfig struct {
	Mode      string            `yaml:"mode"` // exec, bus, openai, mock
	Command   string            `yaml:"command"`
	Subject   string            `yaml:"subject"`
	Endpoint  string            `yaml:"endpoint"`
	APIKey    string            `yaml:"api_key"`
	Model     string            `yaml:"model"`
	MockText  string            `yaml:"mock_text"`
	MockError string            `yaml:"mock_error"`
	Params    map[string]string `yaml:"params"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-asr",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Node: NodeConfig{
			Role:              "asr",
			HeartbeatInterval: 5000,
			HeartbeatTimeout:  15000,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Host:           "0.0.0.0",
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/loqa-asr.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxRecords:    10000,
		},
		ASR: ASRConfig{
			Enabled:     true,
			Provider:    "funasr",
			OutputDir:   "./data/asr",
			Postprocess: "rich",
			Language:    "auto",
			UseITN:      true,
			BatchSizeS:  60,
			Engine: EngineConfig{
				Mode:    "mock",
				Subject: "asr.engine.generate",
				Model:   "whisper-1",
			},
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "LOQA_TELEMETRY_PROMETHEUS_BIND")
	overrideString(&cfg.Node.ID, "LOQA_NODE_ID")
	overrideString(&cfg.Node.Role, "LOQA_NODE_ROLE")
	overrideInt(&cfg.Node.HeartbeatInterval, "LOQA_NODE_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Node.HeartbeatTimeout, "LOQA_NODE_HEARTBEAT_TIMEOUT_MS")
	overrideBool(&cfg.Bus.Enabled, "LOQA_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LOQA_BUS_EMBEDDED")
	overrideString(&cfg.Bus.Host, "LOQA_BUS_HOST")
	overrideInt(&cfg.Bus.Port, "LOQA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "LOQA_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LOQA_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LOQA_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxRecords, "LOQA_EVENT_STORE_MAX_RECORDS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LOQA_EVENT_STORE_VACUUM_ON_START")
	overrideBool(&cfg.ASR.Enabled, "LOQA_ASR_ENABLED")
	overrideString(&cfg.ASR.Provider, "LOQA_ASR_PROVIDER")
	overrideString(&cfg.ASR.OutputDir, "LOQA_ASR_OUTPUT_FILE")
	overrideString(&cfg.ASR.Postprocess, "LOQA_ASR_POSTPROCESS")
	overrideString(&cfg.ASR.Language, "LOQA_ASR_LANGUAGE")
	overrideBool(&cfg.ASR.UseITN, "LOQA_ASR_USE_ITN")
	overrideInt(&cfg.ASR.BatchSizeS, "LOQA_ASR_BATCH_SIZE_S")
	overrideString(&cfg.ASR.Engine.Mode, "LOQA_ASR_ENGINE_MODE")
	overrideString(&cfg.ASR.Engine.Command, "LOQA_ASR_ENGINE_COMMAND")
	overrideString(&cfg.ASR.Engine.Subject, "LOQA_ASR_ENGINE_SUBJECT")
	overrideString(&cfg.ASR.Engine.Endpoint, "LOQA_ASR_ENGINE_ENDPOINT")
	overrideString(&cfg.ASR.Engine.APIKey, "LOQA_ASR_ENGINE_API_KEY")
	overrideString(&cfg.ASR.Engine.Model, "LOQA_ASR_ENGINE_MODEL")
	overrideString(&cfg.ASR.Engine.MockText, "LOQA_ASR_ENGINE_MOCK_TEXT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Bus.Enabled {
		if cfg.Node.HeartbeatInterval <= 0 {
			return errors.New("node.heartbeat_interval_ms must be > 0")
		}
		if cfg.Node.HeartbeatTimeout < cfg.Node.HeartbeatInterval {
			return errors.New("node.heartbeat_timeout_ms must be >= node.heartbeat_interval_ms")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.ASR.Enabled {
		if cfg.ASR.Provider == "" {
			return errors.New("asr.provider must not be empty")
		}
		if cfg.ASR.OutputDir == "" {
			return errors.New("asr.output_file must not be empty")
		}
		switch cfg.ASR.Postprocess {
		case "rich", "plain":
		default:
			return errors.New("asr.postprocess must be one of rich|plain")
		}
		if cfg.ASR.BatchSizeS < 0 {
			return errors.New("asr.batch_size_s must be >= 0 (0 selects the default of 60)")
		}
		switch cfg.ASR.Engine.Mode {
		case "mock":
		case "exec":
			if cfg.ASR.Engine.Command == "" {
				return errors.New("asr.engine.command must be set when mode=exec")
			}
		case "bus":
			if !cfg.Bus.Enabled {
				return errors.New("bus.enabled must be true when asr.engine.mode=bus")
			}
			if cfg.ASR.Engine.Subject == "" {
				return errors.New("asr.engine.subject must be set when mode=bus")
			}
		case "openai":
			if cfg.ASR.Engine.Endpoint == "" {
				return errors.New("asr.engine.endpoint must be set when mode=openai")
			}
		default:
			return errors.New("asr.engine.mode must be one of mock|exec|bus|openai")
		}
	}
	return nil
}
