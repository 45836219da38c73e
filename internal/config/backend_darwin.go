//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.rhiz.app"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "rhiz")
	}
	return "rhiz-data"
}

func secretStoreHint() string {
	return "macOS Keychain (service: " + secretService + ")"
}

type darwinBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return &darwinBackend{domain: defaultsDomain}
}

// defaults runs defaults(1) against the rhiz domain. A missing key makes
// "read" and "delete" exit 1, reported as ok == false.
func (b *darwinBackend) defaults(verb, key string, args ...string) (out string, ok bool, err error) {
	argv := append([]string{verb, b.domain, key}, args...)
	raw, err := exec.Command("defaults", argv...).CombinedOutput()
	out = strings.TrimSpace(string(raw))
	if err != nil {
		var exitErr *exec.ExitError
		if verb != "write" && errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults %s %s: %w: %s", verb, key, err, out)
	}
	return out, true, nil
}

func (b *darwinBackend) GetString(key string) (string, bool, error) {
	return b.defaults("read", key)
}

func (b *darwinBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.defaults("read", key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *darwinBackend) SetString(key, val string) error {
	_, _, err := b.defaults("write", key, "-string", val)
	return err
}

func (b *darwinBackend) SetInt(key string, val int) error {
	_, _, err := b.defaults("write", key, "-int", strconv.Itoa(val))
	return err
}

// Delete of an unset key is a no-op.
func (b *darwinBackend) Delete(key string) error {
	_, _, err := b.defaults("delete", key)
	return err
}
