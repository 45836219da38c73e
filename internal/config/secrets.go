package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	secretService   = "rhiz"
	apiTokenAccount = "api_token"
)

// ErrSecretNotFound is returned by a Keychain when no value is stored.
var ErrSecretNotFound = errors.New("secret not found")

// Keychain reads and writes secrets in the platform secret store.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

type platformKeychain struct{}

// NewKeychain returns the macOS Keychain on darwin and a 0600 secrets file elsewhere.
func NewKeychain() Keychain { return platformKeychain{} }

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the bearer token for the local API, generating and
// storing one on first use. An unreadable secret store is an error: minting a
// new token there would lock out every client holding the old one.
func GetAPIToken(kc Keychain) (string, error) {
	tok, err := kc.Get(secretService, apiTokenAccount)
	switch {
	case err == nil && tok != "":
		return tok, nil
	case err != nil && !errors.Is(err, ErrSecretNotFound):
		return "", fmt.Errorf("reading API token from %s: %w", secretStoreHint(), err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	tok = hex.EncodeToString(buf)
	if err := kc.Set(secretService, apiTokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token in %s: %w", secretStoreHint(), err)
	}
	return tok, nil
}
