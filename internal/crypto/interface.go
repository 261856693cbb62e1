package crypto

// EncryptionAlgorithm represents the encryption algorithm used
type EncryptionAlgorithm string

const (
	AlgorithmAES256GCM EncryptionAlgorithm = "aes-256-gcm"
)

// EncryptionConfig holds encryption configuration
type EncryptionConfig struct {
	// Enabled indicates whether encryption is enabled
	Enabled bool

	// KeyEnvVar is the name of an environment variable containing the key
	KeyEnvVar string

	// Algorithm specifies the encryption algorithm to use
	Algorithm EncryptionAlgorithm

	// SensitiveFields lists record fields encrypted before persistence
	SensitiveFields []string

	// Key is the actual encryption key
	Key []byte
}

// Encryptor provides encryption and decryption of backup payloads and
// individual sensitive field values
type Encryptor interface {
	// EncryptBytes encrypts a payload; output embeds the nonce
	EncryptBytes(data, key []byte) ([]byte, error)

	// DecryptBytes decrypts a payload produced by EncryptBytes
	DecryptBytes(data, key []byte) ([]byte, error)

	// Algorithm returns the encryption algorithm used by this encryptor
	Algorithm() EncryptionAlgorithm
}
