package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/scrypt"

	"slicehouse/pkg/errors"
	"slicehouse/pkg/models"
)

const (
	encryptedPrefix = "ENC["
	encryptedSuffix = "]"

	// EnvEncryptionKey supplies the passphrase passwords are encrypted under.
	// Without it a machine-derived passphrase is used.
	EnvEncryptionKey = "SLICEHOUSE_ENCRYPTION_KEY"
)

// encryptionKey derives a 32-byte AES key with scrypt. The salt is fixed per
// machine so the same host can decrypt what it encrypted.
func encryptionKey() ([]byte, error) {
	passphrase := os.Getenv(EnvEncryptionKey)
	if passphrase == "" {
		hostname, _ := os.Hostname()
		home, _ := os.UserHomeDir()
		passphrase = fmt.Sprintf("%s-%s-slicehouse", hostname, home)
	}
	salt := sha256.Sum256([]byte("slicehouse-config-v1"))
	return scrypt.Key([]byte(passphrase), salt[:16], 1<<15, 8, 1, 32)
}

// EncryptPassword encrypts a password with AES-256-GCM. Empty and
// already-encrypted values pass through unchanged.
func EncryptPassword(password string) (string, error) {
	if password == "" || IsEncrypted(password) {
		return password, nil
	}

	key, err := encryptionKey()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to derive encryption key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to create GCM")
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to generate nonce")
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(password), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext) + encryptedSuffix, nil
}

// DecryptPassword reverses EncryptPassword. Plain values pass through.
func DecryptPassword(encrypted string) (string, error) {
	if encrypted == "" || !IsEncrypted(encrypted) {
		return encrypted, nil
	}

	encoded := strings.TrimSuffix(strings.TrimPrefix(encrypted, encryptedPrefix), encryptedSuffix)
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to decode encrypted password")
	}

	key, err := encryptionKey()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to derive encryption key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to create GCM")
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", errors.New(errors.ErrCodeEncryptionFailed, "ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to decrypt password")
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether a value carries the encryption envelope.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix) && strings.HasSuffix(value, encryptedSuffix)
}

// EncryptConfigPasswords encrypts secrets held in the config in place.
func EncryptConfigPasswords(cfg *models.Config) error {
	encrypted, err := EncryptPassword(cfg.Snowflake.Password)
	if err != nil {
		return err
	}
	cfg.Snowflake.Password = encrypted
	return nil
}
