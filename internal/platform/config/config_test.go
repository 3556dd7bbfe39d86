package config

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idledger/pkg/errors"
)

func validConfig() Server {
	return Server{
		Addr:             ":8080",
		AdminToken:       "token",
		JWTSigningKey:    "signing-key",
		JWTIssuer:        "idledger",
		EncryptionKeyHex: hex.EncodeToString(make([]byte, 32)),
		HMACSecretHex:    hex.EncodeToString(make([]byte, 32)),
		Network:          "identity-channel",
		Contract:         "identity-contract",
		WalletDir:        "wallet",
		IdentityLabel:    "appUser",
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("IDLEDGER_ADDR", "")
	t.Setenv("IDLEDGER_KAFKA_BROKERS", "")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "identity-channel", cfg.Network)
	assert.Equal(t, "identity-contract", cfg.Contract)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, uint64(3), cfg.MaxRetries)
	assert.Equal(t, "idledger.events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("IDLEDGER_ADDR", ":9999")
	t.Setenv("IDLEDGER_REQUEST_TIMEOUT", "2s")
	t.Setenv("IDLEDGER_MAX_RETRIES", "5")
	t.Setenv("IDLEDGER_KAFKA_BROKERS", "broker1:9092, broker2:9092")

	cfg := FromEnv()
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, uint64(5), cfg.MaxRetries)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateEnumeratesEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.AdminToken = ""
	cfg.JWTSigningKey = ""
	cfg.EncryptionKeyHex = "not-hex"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "admin token"))
	assert.True(t, strings.Contains(msg, "JWT signing key"))
	assert.True(t, strings.Contains(msg, "encryption key is not valid hex"))
}

func TestKeyDecoding(t *testing.T) {
	cfg := validConfig()

	key, err := cfg.EncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	cfg.HMACSecretHex = "zz"
	_, err = cfg.HMACSecret()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}
