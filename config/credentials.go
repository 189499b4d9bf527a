package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

// CredentialStore keeps the API key encrypted at rest. The AES-256-GCM key
// is derived from a user passphrase with scrypt; without the passphrase
// the file on disk is opaque.
type CredentialStore struct {
	path string
}

// credentialFile is the on-disk shape: everything needed to re-derive the
// key except the passphrase itself.
type credentialFile struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

const credentialFileName = "credentials.json"

// scrypt parameters per the package's recommended interactive settings.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// NewCredentialStore creates a store rooted at dataDir.
func NewCredentialStore(dataDir string) *CredentialStore {
	return &CredentialStore{path: filepath.Join(dataDir, credentialFileName)}
}

// HasKey reports whether a credential file exists.
func (cs *CredentialStore) HasKey() bool {
	_, err := os.Stat(cs.path)
	return err == nil
}

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
}

// SaveAPIKey encrypts and persists the API key. 0600 - this is the
// credential.
func (cs *CredentialStore) SaveAPIKey(apiKey, passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required")
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	cf := credentialFile{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, []byte(apiKey), nil),
	}

	data, err := json.Marshal(cf)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cs.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(cs.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// LoadAPIKey decrypts the persisted API key with the given passphrase.
func (cs *CredentialStore) LoadAPIKey(passphrase string) (string, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return "", fmt.Errorf("failed to read credentials: %w", err)
	}

	var cf credentialFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return "", fmt.Errorf("failed to parse credentials: %w", err)
	}

	key, err := deriveKey(passphrase, cf.Salt)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, cf.Nonce, cf.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credentials (wrong passphrase?): %w", err)
	}
	return string(plaintext), nil
}
