package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "zephyrus.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("server address = %q", cfg.Server.Address)
	}
	if cfg.RunStore.Driver != "memory" || cfg.RunStore.Retries != 3 {
		t.Fatalf("run store defaults = %+v", cfg.RunStore)
	}
	if cfg.RunQueue.Driver != "memory" || cfg.RunQueue.Workers != 4 {
		t.Fatalf("run queue defaults = %+v", cfg.RunQueue)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.OpenAI.APIKeyEnv != "OPENAI_API_KEY" {
		t.Fatalf("llm defaults = %+v", cfg.LLM)
	}
	if cfg.Scheduler.IntervalSeconds != 60 {
		t.Fatalf("scheduler interval = %d", cfg.Scheduler.IntervalSeconds)
	}
}

func TestLoadResolvesRelativeNetworksFile(t *testing.T) {
	path := writeConfig(t, `{"chain":{"networks_file":"networks.yaml"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join(filepath.Dir(path), "networks.yaml")
	if cfg.Chain.NetworksFile != want {
		t.Fatalf("networks file = %q, want %q", cfg.Chain.NetworksFile, want)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"address": ":9091"},
		"run_store": {"driver": "mysql", "dsn": "user:pass@tcp(localhost:3306)/zephyrus", "retries": 5},
		"run_queue": {"driver": "redis", "workers": 8}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":9091" {
		t.Fatalf("server address = %q", cfg.Server.Address)
	}
	if cfg.RunStore.Driver != "mysql" || cfg.RunStore.Retries != 5 {
		t.Fatalf("run store = %+v", cfg.RunStore)
	}
	if cfg.RunQueue.Driver != "redis" || cfg.RunQueue.Workers != 8 {
		t.Fatalf("run queue = %+v", cfg.RunQueue)
	}
}
