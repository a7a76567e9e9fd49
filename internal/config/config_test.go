package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ASR.OutputDir != "./data/asr" {
		t.Fatalf("expected default output dir, got %q", cfg.ASR.OutputDir)
	}
	if cfg.ASR.Language != "auto" || !cfg.ASR.UseITN || cfg.ASR.BatchSizeS != 60 {
		t.Fatalf("unexpected default engine parameters: %+v", cfg.ASR)
	}
	if len(cfg.ASR.Engine.Params) != 0 {
		t.Fatalf("expected no default engine params, got %v", cfg.ASR.Engine.Params)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_BUS_ENABLED", "true")
	t.Setenv("LOQA_BUS_EMBEDDED", "false")
	t.Setenv("LOQA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQA_BUS_USERNAME", "alice")
	t.Setenv("LOQA_BUS_PASSWORD", "secret")
	t.Setenv("LOQA_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("LOQA_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("LOQA_EVENT_STORE_MAX_RECORDS", "123")
	t.Setenv("LOQA_ASR_OUTPUT_FILE", "/var/lib/asr")
	t.Setenv("LOQA_ASR_ENGINE_MODE", "bus")
	t.Setenv("LOQA_ASR_USE_ITN", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.EventStore.RetentionMode != "persistent" || cfg.EventStore.MaxRecords != 123 {
		t.Fatalf("expected event store overrides, got %+v", cfg.EventStore)
	}
	if cfg.ASR.OutputDir != "/var/lib/asr" {
		t.Fatalf("expected output dir override, got %q", cfg.ASR.OutputDir)
	}
	if cfg.ASR.Engine.Mode != "bus" {
		t.Fatalf("expected engine mode override")
	}
	if cfg.ASR.UseITN {
		t.Fatalf("expected use_itn override false")
	}
}

func TestLoadFileWithEngineParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asr.yaml")
	data := []byte(`
asr:
  output_file: /tmp/recordings
  engine:
    mode: exec
    command: "python3 -m funasr_bridge"
    params:
      model: /models/SenseVoiceSmall
      model_revision: v2.0.4
      device: cuda
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ASR.OutputDir != "/tmp/recordings" {
		t.Fatalf("expected output dir from file, got %q", cfg.ASR.OutputDir)
	}
	if cfg.ASR.Engine.Params["model_revision"] != "v2.0.4" {
		t.Fatalf("expected params passthrough, got %v", cfg.ASR.Engine.Params)
	}
	if cfg.ASR.Provider != "funasr" {
		t.Fatalf("expected default provider to survive partial file, got %q", cfg.ASR.Provider)
	}
}

func TestValidateRejectsExecWithoutCommand(t *testing.T) {
	t.Setenv("LOQA_ASR_ENGINE_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for exec mode without command")
	}
}

func TestValidateRejectsBusEngineWithoutBus(t *testing.T) {
	t.Setenv("LOQA_ASR_ENGINE_MODE", "bus")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for bus engine with bus disabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsShortHeartbeatTimeout(t *testing.T) {
	cfg := Default()
	cfg.Bus.Enabled = true
	cfg.Node.HeartbeatInterval = 5000
	cfg.Node.HeartbeatTimeout = 1000
	if err := validate(cfg); err == nil {
		t.Fatal("expected heartbeat timeout shorter than interval to fail")
	}
}

func TestValidateBatchSize(t *testing.T) {
	cfg := Default()
	cfg.ASR.BatchSizeS = -1
	if err := validate(cfg); err == nil {
		t.Fatal("expected negative batch size to fail")
	}
	cfg.ASR.BatchSizeS = 0
	if err := validate(cfg); err != nil {
		t.Fatalf("zero batch size selects the default, got %v", err)
	}
}
