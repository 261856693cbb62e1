package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"dataguard/internal/entity"
)

const (
	// AES-256 requires 32-byte keys
	KeySize = 32

	// GCM standard nonce size
	NonceSize = 12

	// Salt size for PBKDF2
	SaltSize = 32

	// PBKDF2 iterations (OWASP recommended minimum)
	PBKDF2Iterations = 600000

	// Prefix marking an encrypted field value
	fieldPrefix = "enc:v1:"
)

// AESEncryptor implements AES-256-GCM encryption
type AESEncryptor struct{}

// NewAESEncryptor creates a new AES-256-GCM encryptor
func NewAESEncryptor() *AESEncryptor {
	return &AESEncryptor{}
}

// Algorithm returns the algorithm name
func (e *AESEncryptor) Algorithm() EncryptionAlgorithm {
	return AlgorithmAES256GCM
}

// DeriveKey derives a 32-byte key from a password using PBKDF2-SHA256
func DeriveKey(password []byte, salt []byte) []byte {
	return pbkdf2.Key(password, salt, PBKDF2Iterations, KeySize, sha256.New)
}

// GenerateSalt generates a random salt
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateNonce generates a random nonce for GCM
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// ValidateKey checks if a key is the correct length
func ValidateKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("invalid key length: expected %d bytes, got %d bytes", KeySize, len(key))
	}
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptBytes encrypts a payload. The nonce is prepended to the ciphertext.
func (e *AESEncryptor) EncryptBytes(data, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// DecryptBytes decrypts a payload produced by EncryptBytes
func (e *AESEncryptor) DecryptBytes(data, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(data) < NonceSize {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(data))
	}

	nonce, ciphertext := data[:NonceSize], data[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong key?): %w", err)
	}
	return plaintext, nil
}

// EncryptFields encrypts the configured sensitive fields of a record in place.
// Only string values are encrypted; already-encrypted values are left alone.
func (e *AESEncryptor) EncryptFields(record entity.Record, fields []string, key []byte) error {
	for _, field := range fields {
		value, ok := record[field].(string)
		if !ok || value == "" || IsEncryptedValue(value) {
			continue
		}

		ciphertext, err := e.EncryptBytes([]byte(value), key)
		if err != nil {
			return fmt.Errorf("failed to encrypt field %s: %w", field, err)
		}
		record[field] = fieldPrefix + base64.StdEncoding.EncodeToString(ciphertext)
	}
	return nil
}

// DecryptFields decrypts any encrypted field values of a record in place
func (e *AESEncryptor) DecryptFields(record entity.Record, key []byte) error {
	for field, raw := range record {
		value, ok := raw.(string)
		if !ok || !IsEncryptedValue(value) {
			continue
		}

		ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, fieldPrefix))
		if err != nil {
			return fmt.Errorf("field %s: invalid encrypted value: %w", field, err)
		}

		plaintext, err := e.DecryptBytes(ciphertext, key)
		if err != nil {
			return fmt.Errorf("failed to decrypt field %s: %w", field, err)
		}
		record[field] = string(plaintext)
	}
	return nil
}

// IsEncryptedValue reports whether a field value carries the encrypted marker
func IsEncryptedValue(value string) bool {
	return strings.HasPrefix(value, fieldPrefix)
}
