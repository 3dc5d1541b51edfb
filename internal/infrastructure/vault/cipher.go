package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100_000
	keyLength     = 32
	saltLength    = 16
	saltFilename  = "vault.salt"
)

// boxCipher seals and opens credential entries with AES-256-GCM. The key is
// derived once per process and cached; key material is never logged.
type boxCipher struct {
	aead cipher.AEAD
}

// newBoxCipher derives the encryption key from the master secret and a
// per-installation random salt stored next to the encrypted entries. Earlier
// generations of this store used a fixed salt; a missing salt file therefore
// always means a fresh install and a new salt is generated.
func newBoxCipher(dir, masterSecret string) (*boxCipher, error) {
	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFilename))
	if err != nil {
		return nil, fmt.Errorf("vault salt: %w", err)
	}

	key := pbkdf2.Key([]byte(masterSecret), salt, kdfIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &boxCipher{aead: aead}, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltLength {
			return nil, fmt.Errorf("corrupt salt file %s", path)
		}
		return salt, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	salt = make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}

func (c *boxCipher) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *boxCipher) open(sealed []byte) ([]byte, error) {
	if len(sealed) < c.aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	return c.aead.Open(nil, nonce, ciphertext, nil)
}
