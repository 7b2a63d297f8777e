package defs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfDefaults(t *testing.T) {
	c, err := LoadConf(NewViper(), "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Listen != ":8080" || c.MaxRetries != 3 || c.ViewLifetime != 2*time.Hour || c.Capture != CaptureFFmpeg {
		t.Errorf("unexpected defaults %+v", c)
	}
}

func TestLoadConfFileAndEnv(t *testing.T) {
	name := filepath.Join(t.TempDir(), "portal.yaml")
	cont := "api_url: https://api.example.com/token\nws: wss://lk.example.com\nconnect_timeout: 3s\n"
	if err := os.WriteFile(name, []byte(cont), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VITE_AUTH_TOKEN", "secret-bearer")
	t.Setenv("VIDPORTAL_WS", "wss://override.example.com")

	c, err := LoadConf(NewViper(), name)
	if err != nil {
		t.Fatal(err)
	}
	if c.ApiUrl != "https://api.example.com/token" {
		t.Errorf("api_url %q", c.ApiUrl)
	}
	if c.AuthToken != "secret-bearer" {
		t.Errorf("auth_token %q", c.AuthToken)
	}
	if c.Ws != "wss://override.example.com" {
		t.Errorf("ws %q", c.Ws)
	}
	if c.ConnectTimeout != 3*time.Second {
		t.Errorf("connect_timeout %v", c.ConnectTimeout)
	}
	if !c.CanIssueTokens() {
		t.Error("token endpoint configured but CanIssueTokens is false")
	}
}

func TestLoadConfBadCapture(t *testing.T) {
	v := NewViper()
	v.Set("capture", "gstreamer")
	if _, err := LoadConf(v, ""); err == nil {
		t.Fatal("unknown capture accepted")
	}
}
