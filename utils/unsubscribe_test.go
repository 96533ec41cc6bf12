package utils

import (
	"testing"

	"leadmailer/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsubscribeTokenRoundTrip(t *testing.T) {
	config.AppConfig.EncryptionKey = "test-signing-key"
	config.AppConfig.PublicBaseURL = "https://app.example.com"

	token, err := GetOrCreateUnsubscribeToken(42)
	require.NoError(t, err)

	leadID, err := ParseUnsubscribeToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, leadID)
}

func TestUnsubscribeTokenIsDeterministic(t *testing.T) {
	config.AppConfig.EncryptionKey = "test-signing-key"

	// No timestamps in the claims: links in old emails keep working
	a, err := GetOrCreateUnsubscribeToken(7)
	require.NoError(t, err)
	b, err := GetOrCreateUnsubscribeToken(7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseUnsubscribeTokenRejectsTampering(t *testing.T) {
	config.AppConfig.EncryptionKey = "test-signing-key"

	token, err := GetOrCreateUnsubscribeToken(42)
	require.NoError(t, err)

	config.AppConfig.EncryptionKey = "different-key"
	_, err = ParseUnsubscribeToken(token)
	assert.Error(t, err)

	config.AppConfig.EncryptionKey = "test-signing-key"
	_, err = ParseUnsubscribeToken(token + "x")
	assert.Error(t, err)
}

func TestUnsubscribeURL(t *testing.T) {
	config.AppConfig.EncryptionKey = "test-signing-key"
	config.AppConfig.PublicBaseURL = "https://app.example.com"

	url, err := UnsubscribeURL(42)
	require.NoError(t, err)
	assert.Contains(t, url, "https://app.example.com/unsubscribe/")
}
