//go:build !darwin

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	b := newPlatformBackend()
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("log.level", "debug"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	// a fresh backend reads what the first one wrote
	cfg, err := loadWith(newPlatformBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4300 || cfg.Log.Level != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := b.Delete("server.port"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newPlatformBackend().GetInt("server.port"); ok {
		t.Error("server.port still present after Delete")
	}

	info, err := os.Stat(configFilePath())
	if err != nil {
		t.Fatalf("stat config file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestFileBackend_BadIntType(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "rhiz", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"server.port": 12.5}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadWith(newPlatformBackend()); err == nil {
		t.Fatal("expected error for fractional port")
	}
}

func TestFileKeychain(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	kc := NewKeychain()

	if _, err := kc.Get("rhiz", "api_token"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("Get before store = %v, want ErrSecretNotFound", err)
	}
	tok, err := GetAPIToken(kc)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	got, err := kc.Get("rhiz", "api_token")
	if err != nil || got != tok {
		t.Errorf("Get = %q, %v; want %q", got, err, tok)
	}
}

func TestFileKeychain_CorruptFileKeepsError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	path := filepath.Join(dir, "rhiz", "secrets.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := GetAPIToken(NewKeychain()); err == nil {
		t.Fatal("expected error for unreadable secrets file")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "{not json" {
		t.Errorf("secrets file rewritten: %q, %v", data, err)
	}
}

func TestFileBackend_NonStringValue(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "rhiz", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"log.level": 3}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := newPlatformBackend().GetString("log.level"); err == nil {
		t.Fatal("expected error for numeric log.level")
	}
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, "out.json")
	if err := writeFileAtomic(path, []byte("one")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := writeFileAtomic(path, []byte("two")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "two" {
		t.Errorf("content = %q, %v", data, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}
