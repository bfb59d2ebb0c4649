package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Questions []string       `json:"questions"`
	Score     int            `json:"score"`
	Meta      map[string]int `json:"meta,omitempty"`
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	in := payload{Questions: []string{"a", "b"}, Score: 7, Meta: map[string]int{"x": 1}}

	sealed, err := Encrypt(in, key)
	require.NoError(t, err)

	var out payload
	require.NoError(t, Decrypt(sealed, key, &out))
	assert.Equal(t, in, out)
}

func TestNonceFreshness(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	in := payload{Score: 1}
	first, err := Encrypt(in, key)
	require.NoError(t, err)
	second, err := Encrypt(in, key)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "identical input must produce distinct ciphertext")

	var a, b payload
	require.NoError(t, Decrypt(first, key, &a))
	require.NoError(t, Decrypt(second, key, &b))
	assert.Equal(t, a, b)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := Encrypt(payload{Score: 3}, k1)
	require.NoError(t, err)

	var out payload
	assert.ErrorIs(t, Decrypt(sealed, k2, &out), ErrIntegrity)
}

func TestDecryptMalformedPayload(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	var out payload
	assert.ErrorIs(t, Decrypt("not-base64!!!", key, &out), ErrMalformedPayload)
	assert.ErrorIs(t, Decrypt("c2hvcnQ=", key, &out), ErrMalformedPayload)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := Encrypt(payload{Score: 5}, key)
	require.NoError(t, err)

	// Flip a character in the middle of the base64 body.
	tampered := []byte(sealed)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	var out payload
	err = Decrypt(string(tampered), key, &out)
	assert.Error(t, err)
}

func TestKeyExportImportRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	restored, err := ImportKey(ExportKey(key))
	require.NoError(t, err)
	assert.Equal(t, key, restored)

	sealed, err := Encrypt(payload{Score: 2}, key)
	require.NoError(t, err)
	var out payload
	require.NoError(t, Decrypt(sealed, restored, &out))
	assert.Equal(t, 2, out.Score)
}

func TestImportKeyRejectsBadMaterial(t *testing.T) {
	_, err := ImportKey("???")
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = ImportKey("c2hvcnQ=") // valid base64, wrong length
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestHashVerify(t *testing.T) {
	in := payload{Questions: []string{"q1"}, Score: 4}

	h, err := Hash(in)
	require.NoError(t, err)

	h2, err := Hash(in)
	require.NoError(t, err)
	assert.Equal(t, h, h2, "hash must be deterministic")

	ok, err := VerifyHash(in, h)
	require.NoError(t, err)
	assert.True(t, ok)

	mutated := in
	mutated.Score = 5
	ok, err = VerifyHash(mutated, h)
	require.NoError(t, err)
	assert.False(t, ok, "any field mutation must invalidate the hash")
}
