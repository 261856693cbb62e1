package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/entity"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	salt, err := GenerateSalt()
	require.NoError(t, err)
	return DeriveKey([]byte("correct horse battery staple"), salt)
}

func TestEncryptDecryptBytes(t *testing.T) {
	e := NewAESEncryptor()
	key := testKey(t)
	plaintext := []byte(`{"id":"u1","email":"alice@example.com"}`)

	ciphertext, err := e.EncryptBytes(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)
	assert.Greater(t, len(ciphertext), len(plaintext))

	decrypted, err := e.DecryptBytes(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptBytesWrongKey(t *testing.T) {
	e := NewAESEncryptor()
	ciphertext, err := e.EncryptBytes([]byte("secret"), testKey(t))
	require.NoError(t, err)

	_, err = e.DecryptBytes(ciphertext, testKey(t))
	assert.Error(t, err)
}

func TestDecryptBytesTruncatedCiphertext(t *testing.T) {
	e := NewAESEncryptor()
	_, err := e.DecryptBytes([]byte("short"), testKey(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestEncryptBytesNonceRandomization(t *testing.T) {
	e := NewAESEncryptor()
	key := testKey(t)

	first, err := e.EncryptBytes([]byte("same input"), key)
	require.NoError(t, err)
	second, err := e.EncryptBytes([]byte("same input"), key)
	require.NoError(t, err)

	assert.False(t, bytes.Equal(first, second))
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	first := DeriveKey([]byte("password"), salt)
	second := DeriveKey([]byte("password"), salt)
	assert.Equal(t, first, second)
	assert.Len(t, first, KeySize)

	otherSalt, err := GenerateSalt()
	require.NoError(t, err)
	assert.NotEqual(t, first, DeriveKey([]byte("password"), otherSalt))
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey(make([]byte, KeySize)))
	assert.Error(t, ValidateKey(make([]byte, 16)))
	assert.Error(t, ValidateKey(nil))
}

func TestEncryptDecryptFields(t *testing.T) {
	e := NewAESEncryptor()
	key := testKey(t)

	record := entity.Record{
		"id":    "u1",
		"name":  "Alice",
		"email": "alice@example.com",
		"phone": "+15551234567",
	}
	require.NoError(t, e.EncryptFields(record, []string{"email", "phone"}, key))

	// Sensitive fields carry the marker; the rest stay plain
	assert.True(t, IsEncryptedValue(record["email"].(string)))
	assert.True(t, IsEncryptedValue(record["phone"].(string)))
	assert.Equal(t, "Alice", record["name"])
	assert.Equal(t, "u1", record["id"])

	require.NoError(t, e.DecryptFields(record, key))
	assert.Equal(t, "alice@example.com", record["email"])
	assert.Equal(t, "+15551234567", record["phone"])
}

func TestEncryptFieldsIdempotent(t *testing.T) {
	e := NewAESEncryptor()
	key := testKey(t)

	record := entity.Record{"id": "u1", "email": "alice@example.com"}
	require.NoError(t, e.EncryptFields(record, []string{"email"}, key))
	once := record["email"]

	// A second pass leaves already-encrypted values alone
	require.NoError(t, e.EncryptFields(record, []string{"email"}, key))
	assert.Equal(t, once, record["email"])
}

func TestEncryptFieldsSkipsMissingAndNonString(t *testing.T) {
	e := NewAESEncryptor()
	key := testKey(t)

	record := entity.Record{"id": "u1", "age": 42}
	require.NoError(t, e.EncryptFields(record, []string{"email", "age"}, key))
	assert.Equal(t, 42, record["age"])
	assert.NotContains(t, record, "email")
}

func TestIsEncryptedValue(t *testing.T) {
	assert.True(t, IsEncryptedValue("enc:v1:abcdef"))
	assert.False(t, IsEncryptedValue("alice@example.com"))
	assert.False(t, IsEncryptedValue(""))
}
