package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func TestNewTOTPManager_KeyLength(t *testing.T) {
	_, err := NewTOTPManager([]byte("short"), "FletoAds")
	assert.Error(t, err)

	_, err = NewTOTPManager(testEncryptionKey, "FletoAds")
	assert.NoError(t, err)
}

func TestTOTPManager_EncryptDecryptRoundTrip(t *testing.T) {
	tm, err := NewTOTPManager(testEncryptionKey, "FletoAds")
	require.NoError(t, err)

	encrypted, nonce, err := tm.EncryptSecret([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	require.NotEmpty(t, nonce)

	plain, err := tm.DecryptSecret(encrypted, nonce)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", string(plain))
}

func TestTOTPManager_GenerateAndValidate(t *testing.T) {
	tm, err := NewTOTPManager(testEncryptionKey, "FletoAds")
	require.NoError(t, err)

	encrypted, nonce, secret, qrDataURL, err := tm.GenerateSecretWithQR("a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	assert.True(t, strings.HasPrefix(qrDataURL, "data:image/png;base64,"))

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	valid, err := tm.ValidateCode(encrypted, nonce, code)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTOTPManager_ValidateRejectsWrongCode(t *testing.T) {
	tm, err := NewTOTPManager(testEncryptionKey, "FletoAds")
	require.NoError(t, err)

	encrypted, nonce, _, _, err := tm.GenerateSecretWithQR("a@x.com")
	require.NoError(t, err)

	valid, err := tm.ValidateCode(encrypted, nonce, "000000")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTOTPManager_ClockSkewTolerance(t *testing.T) {
	tm, err := NewTOTPManager(testEncryptionKey, "FletoAds")
	require.NoError(t, err)

	encrypted, nonce, secret, _, err := tm.GenerateSecretWithQR("a@x.com")
	require.NoError(t, err)

	// A code from the previous 30s step is inside the ±1 skew window.
	code, err := totp.GenerateCode(secret, time.Now().Add(-30*time.Second))
	require.NoError(t, err)

	valid, err := tm.ValidateCode(encrypted, nonce, code)
	require.NoError(t, err)
	assert.True(t, valid)
}
