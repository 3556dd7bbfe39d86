// Package keys implements the key and signature service: symmetric
// encryption, keyed-hash signatures, one-way privacy hashing, and key
// rotation with archived generations.
//
// The service is an explicitly constructed component — no package-level
// state — so tests can run isolated instances and the server owns exactly
// one. Rotation archives the prior generation instead of deleting it, so
// ciphertext and signatures produced under an old key stay
// decryptable/verifiable indefinitely.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	dErrors "idledger/pkg/errors"
)

const (
	// AlgorithmID identifies the signature scheme in receipts and stored
	// signatures.
	AlgorithmID = "HMAC-SHA256"

	// MinKeyLen is the minimum byte length for both the encryption key and
	// the HMAC secret. AES-256 requires exactly 32; HMAC secrets shorter
	// than the hash block weaken the MAC.
	MinKeyLen = 32
)

// Ciphertext is the result of Encrypt. The IV is generated per call and must
// travel with the data; Generation selects the key that produced it so
// rotation does not orphan old ciphertext.
type Ciphertext struct {
	Data       []byte `json:"data"`
	IV         []byte `json:"iv"`
	Generation int    `json:"generation"`
}

// Signature is a deterministic keyed MAC over the canonical field
// concatenation plus timestamp.
type Signature struct {
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
	Algorithm string `json:"algorithm"`
}

// Service holds the active key material and every archived generation.
// Methods are safe for concurrent use; rotation swaps the active reference
// under the write lock so in-flight operations see either the old or the new
// generation, never a partial state.
type Service struct {
	mu          sync.RWMutex
	encKeys     [][]byte // index = generation, last entry is active
	hmacSecrets [][]byte
}

// Option configures a Service.
type Option func(*Service)

// WithEncryptionKey sets the initial (generation 0) encryption key.
func WithEncryptionKey(key []byte) Option {
	return func(s *Service) { s.encKeys = [][]byte{key} }
}

// WithHMACSecret sets the initial (generation 0) HMAC secret.
func WithHMACSecret(secret []byte) Option {
	return func(s *Service) { s.hmacSecrets = [][]byte{secret} }
}

// NewService builds a key service. A service constructed without key
// material still answers ValidateKeyConfiguration — deployments must call it
// at startup and fail fast on issues rather than operate with weak keys.
func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) activeEncKey() ([]byte, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.encKeys) == 0 {
		return nil, 0, dErrors.New(dErrors.CodeConfiguration, "no encryption key configured")
	}
	gen := len(s.encKeys) - 1
	return s.encKeys[gen], gen, nil
}

func (s *Service) keyForGeneration(gen int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if gen < 0 || gen >= len(s.encKeys) {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown key generation %d", gen)
	}
	return s.encKeys[gen], nil
}

// Encrypt seals plaintext with the active key under AES-GCM, generating a
// fresh IV for every call. Empty plaintext is valid.
func (s *Service) Encrypt(plaintext []byte) (Ciphertext, error) {
	key, gen, err := s.activeEncKey()
	if err != nil {
		return Ciphertext{}, err
	}
	ct, err := seal(plaintext, key)
	if err != nil {
		return Ciphertext{}, err
	}
	ct.Generation = gen
	return ct, nil
}

// EncryptWithKey seals plaintext with an explicit key instead of the active
// one. The resulting Generation is -1: the caller owns the key.
func (s *Service) EncryptWithKey(plaintext, key []byte) (Ciphertext, error) {
	ct, err := seal(plaintext, key)
	if err != nil {
		return Ciphertext{}, err
	}
	ct.Generation = -1
	return ct, nil
}

// Decrypt opens a ciphertext using the key generation recorded on it.
// Archived generations remain available after rotation.
func (s *Service) Decrypt(ct Ciphertext) ([]byte, error) {
	key, err := s.keyForGeneration(ct.Generation)
	if err != nil {
		return nil, err
	}
	return open(ct, key)
}

// DecryptWithKey opens a ciphertext with an explicit key.
func (s *Service) DecryptWithKey(ct Ciphertext, key []byte) ([]byte, error) {
	return open(ct, key)
}

func seal(plaintext, key []byte) (Ciphertext, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return Ciphertext{}, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid encryption key")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Ciphertext{}, dErrors.Wrap(err, dErrors.CodeInternal, "init GCM")
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Ciphertext{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate IV")
	}
	return Ciphertext{Data: gcm.Seal(nil, iv, plaintext, nil), IV: iv}, nil
}

func open(ct Ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid encryption key")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "init GCM")
	}
	plaintext, err := gcm.Open(nil, ct.IV, ct.Data, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "decrypt failed")
	}
	return plaintext, nil
}

// canonicalPayload is the exact byte sequence signed for an asset. Field
// order is part of the wire contract; changing it invalidates every stored
// signature.
func canonicalPayload(assetID, kycHash, issuerID string, ts int64) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%d", assetID, kycHash, issuerID, ts))
}

// GenerateSignature produces a deterministic keyed MAC authorizing a ledger
// mutation for the given asset fields at the given time.
func (s *Service) GenerateSignature(assetID, kycHash, issuerID string, at time.Time) (Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.hmacSecrets) == 0 {
		return Signature{}, dErrors.New(dErrors.CodeConfiguration, "no HMAC secret configured")
	}
	secret := s.hmacSecrets[len(s.hmacSecrets)-1]
	ts := at.Unix()
	mac := hmac.New(sha256.New, secret)
	mac.Write(canonicalPayload(assetID, kycHash, issuerID, ts))
	return Signature{
		Value:     hex.EncodeToString(mac.Sum(nil)),
		Timestamp: ts,
		Algorithm: AlgorithmID,
	}, nil
}

// VerifySignature recomputes the MAC and compares in constant time. Archived
// secrets are checked too, so signatures generated just before a rotation
// still verify.
func (s *Service) VerifySignature(assetID, kycHash, issuerID, signature string, ts int64) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	payload := canonicalPayload(assetID, kycHash, issuerID, ts)

	s.mu.RLock()
	defer s.mu.RUnlock()
	// Newest first: the active secret is the overwhelmingly common case.
	for i := len(s.hmacSecrets) - 1; i >= 0; i-- {
		mac := hmac.New(sha256.New, s.hmacSecrets[i])
		mac.Write(payload)
		if hmac.Equal(mac.Sum(nil), sig) {
			return true
		}
	}
	return false
}

// HashForPrivacy returns the hex SHA-256 of data. Only this hash crosses
// into the ledger; the raw value stays off-chain.
func HashForPrivacy(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
