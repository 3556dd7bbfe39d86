// Package config loads service configuration from the environment so main
// stays lean. Validation never stops at the first problem: a misconfigured
// deployment gets the full list of issues in one pass.
package config

import (
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"

	dErrors "idledger/pkg/errors"
)

// Server captures the full service configuration.
type Server struct {
	Addr     string
	LogLevel string

	// AdminToken guards the /admin surface. JWTSigningKey signs and
	// verifies issuer tokens on the public surface.
	AdminToken    string
	JWTSigningKey string
	JWTIssuer     string

	// Hex-encoded key material for the key service.
	EncryptionKeyHex string
	HMACSecretHex    string

	// Ledger network session.
	Network        string
	Contract       string
	WalletDir      string
	IdentityLabel  string
	RequestTimeout time.Duration
	MaxRetries     uint64

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// RedisConfig configures the optional Redis state and mapping stores. An
// empty URL means Redis is not configured.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional durable off-chain store. An empty
// DSN means Postgres is not configured.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig configures the optional event stream. No brokers means
// events stay in-process.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:     envOr("IDLEDGER_ADDR", ":8080"),
		LogLevel: envOr("IDLEDGER_LOG_LEVEL", "info"),

		AdminToken:    os.Getenv("IDLEDGER_ADMIN_TOKEN"),
		JWTSigningKey: os.Getenv("IDLEDGER_JWT_SIGNING_KEY"),
		JWTIssuer:     envOr("IDLEDGER_JWT_ISSUER", "idledger"),

		EncryptionKeyHex: os.Getenv("IDLEDGER_ENCRYPTION_KEY"),
		HMACSecretHex:    os.Getenv("IDLEDGER_HMAC_SECRET"),

		Network:        envOr("IDLEDGER_NETWORK", "identity-channel"),
		Contract:       envOr("IDLEDGER_CONTRACT", "identity-contract"),
		WalletDir:      envOr("IDLEDGER_WALLET_DIR", "wallet"),
		IdentityLabel:  envOr("IDLEDGER_IDENTITY", "appUser"),
		RequestTimeout: envDuration("IDLEDGER_REQUEST_TIMEOUT", 10*time.Second),
		MaxRetries:     uint64(envInt("IDLEDGER_MAX_RETRIES", 3)),

		Redis: RedisConfig{
			URL:          os.Getenv("IDLEDGER_REDIS_URL"),
			PoolSize:     envInt("IDLEDGER_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("IDLEDGER_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("IDLEDGER_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("IDLEDGER_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("IDLEDGER_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("IDLEDGER_POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Topic: envOr("IDLEDGER_KAFKA_TOPIC", "idledger.events"),
		},
	}
	if brokers := os.Getenv("IDLEDGER_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	return cfg
}

// EncryptionKey decodes the hex-encoded encryption key.
func (s Server) EncryptionKey() ([]byte, error) {
	key, err := hex.DecodeString(s.EncryptionKeyHex)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "encryption key is not valid hex")
	}
	return key, nil
}

// HMACSecret decodes the hex-encoded HMAC secret.
func (s Server) HMACSecret() ([]byte, error) {
	secret, err := hex.DecodeString(s.HMACSecretHex)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "HMAC secret is not valid hex")
	}
	return secret, nil
}

// Validate enumerates every configuration problem. The key service
// re-validates key lengths; this catches what would fail before it gets
// there.
func (s Server) Validate() error {
	var problems []string
	if s.Addr == "" {
		problems = append(problems, "listen address is required")
	}
	if s.Network == "" {
		problems = append(problems, "network name is required")
	}
	if s.Contract == "" {
		problems = append(problems, "contract name is required")
	}
	if s.WalletDir == "" {
		problems = append(problems, "wallet directory is required")
	}
	if s.IdentityLabel == "" {
		problems = append(problems, "identity label is required")
	}
	if s.AdminToken == "" {
		problems = append(problems, "admin token is required")
	}
	if s.JWTSigningKey == "" {
		problems = append(problems, "JWT signing key is required")
	}
	if s.EncryptionKeyHex == "" {
		problems = append(problems, "encryption key is required")
	} else if _, err := s.EncryptionKey(); err != nil {
		problems = append(problems, "encryption key is not valid hex")
	}
	if s.HMACSecretHex == "" {
		problems = append(problems, "HMAC secret is required")
	} else if _, err := s.HMACSecret(); err != nil {
		problems = append(problems, "HMAC secret is not valid hex")
	}
	if len(problems) > 0 {
		return dErrors.New(dErrors.CodeConfiguration, "invalid configuration: "+strings.Join(problems, "; "))
	}
	return nil
}
