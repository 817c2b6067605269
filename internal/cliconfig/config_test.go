package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-track/pkg/store"
)

func TestLoadMissingOptionalFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadMissingRequiredFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml"), true); err == nil {
		t.Fatalf("expected error for missing required file")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackctl.toml")
	content := `
format = "json"

[store]
kind = "s3"
bucket = "settings"
prefix = "desktop/"
region = "eu-west-1"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Config{Format: "json", Store: store.Config{
		Kind:   store.KindS3,
		Path:   "tracking.json",
		Bucket: "settings",
		Prefix: "desktop/",
		Region: "eu-west-1",
	}}
	if cfg != want {
		t.Fatalf("unexpected config:\nwant %+v\ngot  %+v", want, cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackctl.toml")
	if err := os.WriteFile(path, []byte("[store]\nflavour = \"x\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, true); err == nil {
		t.Fatalf("expected unknown key error")
	}
}
