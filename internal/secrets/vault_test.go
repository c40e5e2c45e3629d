package secrets

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/helmsman-ai/helmsman/internal/config"
)

func TestSealRevealRoundTrip(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), ".age-key")
	vault, err := Open(keyPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	blob, err := vault.Seal("sk-super-secret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(blob) {
		t.Fatalf("expected sealed blob, got %q", blob)
	}
	if strings.Contains(blob, "super-secret") {
		t.Fatal("plaintext leaked into blob")
	}

	plain, err := vault.Reveal(blob)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if plain != "sk-super-secret" {
		t.Fatalf("Reveal = %q", plain)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), ".age-key")
	v1, err := Open(keyPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	v2, err := Open(keyPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if v1.Recipient() != v2.Recipient() {
		t.Fatal("reopening generated a different identity")
	}
}

func TestRevealRejectsPlaintext(t *testing.T) {
	vault, err := Open(filepath.Join(t.TempDir(), ".age-key"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := vault.Reveal("plain text"); err == nil {
		t.Fatal("expected error for unsealed input")
	}
}

func TestRevealProviderKeys(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), ".age-key")
	vault, err := Open(keyPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sealed, err := vault.Seal("sk-live-123")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	providers := map[string]config.ProviderConfig{
		"claude": {Driver: "anthropic", Auth: config.AuthConfig{APIKey: sealed}},
		"local":  {Driver: "ollama"},
	}
	if err := RevealProviderKeys(providers, keyPath); err != nil {
		t.Fatalf("RevealProviderKeys: %v", err)
	}
	if providers["claude"].Auth.APIKey != "sk-live-123" {
		t.Fatalf("sealed key not revealed: %q", providers["claude"].Auth.APIKey)
	}
	if providers["local"].Auth.APIKey != "" {
		t.Fatal("untouched provider gained a key")
	}
}
