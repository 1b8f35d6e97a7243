package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	os.Unsetenv("CONFIG_FILE")
	os.Unsetenv("MAIL_TRANSPORT")
	os.Unsetenv("MAIL_SEND_TIMEOUT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MailTransport != "log" {
		t.Errorf("MailTransport = %q, want %q", cfg.MailTransport, "log")
	}
	if cfg.MailSendTimeout != 30*time.Second {
		t.Errorf("MailSendTimeout = %v, want 30s", cfg.MailSendTimeout)
	}
	if cfg.MessageReadRetries != 3 {
		t.Errorf("MessageReadRetries = %d, want 3", cfg.MessageReadRetries)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MAIL_SEND_TIMEOUT", "5")
	t.Setenv("LOCK_TTL", "90s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MailSendTimeout != 5*time.Second {
		t.Errorf("MailSendTimeout = %v, want 5s", cfg.MailSendTimeout)
	}
	if cfg.LockTTL != 90*time.Second {
		t.Errorf("LockTTL = %v, want 90s", cfg.LockTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestConfig_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "http_port: 8088\nmail_from: coach@club.example\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MailFrom != "coach@club.example" {
		t.Errorf("MailFrom = %q, want value from file", cfg.MailFrom)
	}
	if cfg.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, env should win over file", cfg.HTTPPort)
	}
}

func TestConfig_InvalidTransport(t *testing.T) {
	t.Setenv("MAIL_TRANSPORT", "pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported transport")
	}
}

func TestConfig_SMTPRequiresHost(t *testing.T) {
	t.Setenv("MAIL_TRANSPORT", "smtp")
	t.Setenv("SMTP_HOST", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when SMTP_HOST is missing")
	}
}
