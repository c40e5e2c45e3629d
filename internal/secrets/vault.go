// Package secrets seals provider credentials at rest. Values in .env may
// be stored as ENC[age:...] blobs; the server reveals them at startup
// using the age identity kept next to the config.
package secrets

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/helmsman-ai/helmsman/internal/config"
)

const sealedPrefix = "ENC[age:"
const sealedSuffix = "]"

// KeyPath returns the default age key file path: $HELMSMAN_PATH/.age-key.
func KeyPath() string {
	return filepath.Join(config.HelmsmanPath(), ".age-key")
}

// Vault seals and reveals secrets with a single X25519 identity.
type Vault struct {
	identity *age.X25519Identity
}

// Open loads the identity at path, generating one with 0o600 permissions
// on first use.
func Open(path string) (*Vault, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat age key: %w", err)
		}
		if err := generateIdentity(path); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open age key: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in %s", path)
	}
	id, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("unexpected identity type in %s", path)
	}
	return &Vault{identity: id}, nil
}

func generateIdentity(path string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generate age identity: %w", err)
	}

	content := fmt.Sprintf("# created by helmsman\n# public key: %s\n%s\n",
		identity.Recipient().String(), identity.String())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write age key: %w", err)
	}
	return nil
}

// Recipient returns the public key for out-of-band encryption.
func (v *Vault) Recipient() string {
	return v.identity.Recipient().String()
}

// Seal encrypts plaintext into an ENC[age:...] blob.
func (v *Vault) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, v.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("age encrypt init: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("age encrypt write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age encrypt close: %w", err)
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()) + sealedSuffix, nil
}

// Reveal decrypts an ENC[age:...] blob back to plaintext.
func (v *Vault) Reveal(blob string) (string, error) {
	if !IsSealed(blob) {
		return "", fmt.Errorf("not a sealed blob")
	}

	encoded := blob[len(sealedPrefix) : len(blob)-len(sealedSuffix)]
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), v.identity)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read decrypted: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether the string is an ENC[age:...] blob.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, sealedPrefix) && strings.HasSuffix(s, sealedSuffix)
}

// RevealProviderKeys replaces sealed api keys in the provider map in
// place. Missing key file is fine when nothing is sealed.
func RevealProviderKeys(providers map[string]config.ProviderConfig, keyPath string) error {
	var vault *Vault
	for name, p := range providers {
		if !IsSealed(p.Auth.APIKey) {
			continue
		}
		if vault == nil {
			v, err := Open(keyPath)
			if err != nil {
				return fmt.Errorf("provider %s: %w", name, err)
			}
			vault = v
		}
		plain, err := vault.Reveal(p.Auth.APIKey)
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		p.Auth.APIKey = plain
		providers[name] = p
	}
	return nil
}
