package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	sealed, err := Encrypt("gho_exampletoken", "key-one")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "gho_exampletoken")

	plain, err := Decrypt(sealed, "key-one")
	require.NoError(t, err)
	assert.Equal(t, "gho_exampletoken", plain)

	again, err := Encrypt("gho_exampletoken", "key-one")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")
}

func TestDecryptWrongKey(t *testing.T) {
	sealed, err := Encrypt("secret", "key-one")
	require.NoError(t, err)

	_, err = Decrypt(sealed, "key-two")
	assert.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	_, err := Decrypt("AAAA", "key")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = Decrypt("not base64!", "key")
	assert.Error(t, err)
}
