package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadConfigMergesEnvAndSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  password: ${DB_PASS_SECRET}
storage:
  driver: postgres
`)
	writeFile(t, dir, "test.yaml", `
db:
  host: db.internal
`)
	writeFile(t, dir, "secrets.env", "# comment\nDB_PASS_SECRET=\"s3cret\"\n")

	cfgMap, err := LoadConfig("test", dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	var cfg struct {
		DB      DBConfig      `yaml:"db"`
		Storage StorageConfig `yaml:"storage"`
	}
	if err := Decode(cfgMap, &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if cfg.DB.Host != "db.internal" {
		t.Fatalf("host = %q, want db.internal", cfg.DB.Host)
	}
	if cfg.DB.Port != 5432 {
		t.Fatalf("port = %d, want 5432", cfg.DB.Port)
	}
	if cfg.DB.Password != "s3cret" {
		t.Fatalf("password = %q, want s3cret", cfg.DB.Password)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
}

func TestSystemEnvWinsOverSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "jwt:\n  secret: ${JHUB_TEST_JWT}\n")
	writeFile(t, dir, "secrets.env", "JHUB_TEST_JWT=from-file\n")
	t.Setenv("JHUB_TEST_JWT", "from-env")

	cfgMap, err := LoadConfig("", dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	var cfg struct {
		JWT JWTConfig `yaml:"jwt"`
	}
	if err := Decode(cfgMap, &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Fatalf("secret = %q, want from-env", cfg.JWT.Secret)
	}
}

func TestUnknownPlaceholderKept(t *testing.T) {
	got := substituteString("x-${NOT_SET_ANYWHERE}-y", map[string]string{})
	if got != "x-${NOT_SET_ANYWHERE}-y" {
		t.Fatalf("got %q", got)
	}
}

func TestOverrideSMTPFromEnv(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.org")
	t.Setenv("SMTP_PORT", "2525")

	var cfg SMTPConfig
	OverrideSMTPFromEnv(&cfg)
	if !cfg.Enabled() || cfg.Port != 2525 {
		t.Fatalf("unexpected smtp config: %+v", cfg)
	}
}

func TestOutboxPollIntervalDefault(t *testing.T) {
	if got := (OutboxConfig{}).PollInterval().String(); got != "1s" {
		t.Fatalf("PollInterval = %s", got)
	}
}
