package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8977 {
		t.Errorf("Server.Port = %d, want 8977", cfg.Server.Port)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Model.Provider != "ollama" {
		t.Errorf("Model.Provider = %q, want ollama", cfg.Model.Provider)
	}
	if cfg.Model.Endpoint != "http://127.0.0.1:11434" {
		t.Errorf("Model.Endpoint = %q", cfg.Model.Endpoint)
	}
	if cfg.ModelTimeout() != 120*time.Second {
		t.Errorf("ModelTimeout = %v, want 120s", cfg.ModelTimeout())
	}
	if cfg.Analysis.Workers != 2 || cfg.Analysis.MaxRetries != 2 {
		t.Errorf("Analysis = %+v, want workers=2 retries=2", cfg.Analysis)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9000
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: lens
  password: secret
  name: companylens
model:
  provider: openai
  endpoint: https://api.example.com/v1
  model: gpt-4o-mini
  apiKey: sk-test
  timeoutSeconds: 30
analysis:
  workers: 4
  maxRetries: 1
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Model.Provider != "openai" || cfg.Model.APIKey != "sk-test" {
		t.Errorf("Model = %+v", cfg.Model)
	}
	if cfg.ModelTimeout() != 30*time.Second {
		t.Errorf("ModelTimeout = %v", cfg.ModelTimeout())
	}
	if cfg.Analysis.Workers != 4 || cfg.Analysis.MaxRetries != 1 {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}

	want := "host=db.internal port=5432 user=lens password=secret dbname=companylens sslmode=disable"
	if got := cfg.PostgresDSN(); got != want {
		t.Errorf("PostgresDSN = %q, want %q", got, want)
	}
	// openai provider gets no ollama endpoint default
	if cfg.Model.Endpoint != "https://api.example.com/v1" {
		t.Errorf("Model.Endpoint = %q", cfg.Model.Endpoint)
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := &Config{}
	cfg.Database.User = "root"
	cfg.Database.Password = "pw"
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 3306
	cfg.Database.Name = "lens"

	want := "root:pw@tcp(127.0.0.1:3306)/lens?parseTime=true&charset=utf8mb4&loc=UTC"
	if got := cfg.MySQLDSN(); got != want {
		t.Errorf("MySQLDSN = %q, want %q", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load on missing file: want error")
	}
}
