package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	dErrors "idledger/pkg/errors"
)

// generateKey derives fresh 32-byte key material from a random seed through
// HKDF. The label separates encryption keys from HMAC secrets so the two
// never collide even if seeds were ever reused.
func generateKey(label string) ([]byte, error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read entropy")
	}
	key := make([]byte, MinKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte(label)), key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "derive key")
	}
	return key, nil
}

// RotateEncryptionKey archives the current encryption key and activates
// newKey. A nil newKey generates material. Existing off-chain records are
// not re-encrypted; their recorded generation keeps them decryptable.
func (s *Service) RotateEncryptionKey(newKey []byte) (int, error) {
	if newKey == nil {
		generated, err := generateKey("idledger/encryption")
		if err != nil {
			return 0, err
		}
		newKey = generated
	}
	if len(newKey) < MinKeyLen {
		return 0, dErrors.Newf(dErrors.CodeValidation, "encryption key must be at least %d bytes", MinKeyLen)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encKeys = append(s.encKeys, newKey)
	return len(s.encKeys) - 1, nil
}

// RotateHMACSecret archives the current HMAC secret and activates newSecret.
// A nil newSecret generates material. Signatures under archived secrets keep
// verifying; new signatures use the new secret only.
func (s *Service) RotateHMACSecret(newSecret []byte) (int, error) {
	if newSecret == nil {
		generated, err := generateKey("idledger/hmac")
		if err != nil {
			return 0, err
		}
		newSecret = generated
	}
	if len(newSecret) < MinKeyLen {
		return 0, dErrors.Newf(dErrors.CodeValidation, "HMAC secret must be at least %d bytes", MinKeyLen)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hmacSecrets = append(s.hmacSecrets, newSecret)
	return len(s.hmacSecrets) - 1, nil
}

// Issue names one key-configuration problem.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Report is the result of ValidateKeyConfiguration.
type Report struct {
	Issues []Issue `json:"issues,omitempty"`
}

// OK reports whether the configuration passed with no issues.
func (r Report) OK() bool { return len(r.Issues) == 0 }

// Err converts a failing report into a single configuration error naming
// every issue, suitable for failing fast at startup.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	msg := "key configuration invalid:"
	for _, issue := range r.Issues {
		msg += " " + issue.Field + " (" + issue.Reason + ");"
	}
	return dErrors.New(dErrors.CodeConfiguration, msg)
}

// ValidateKeyConfiguration enumerates every missing or too-short key and
// secret. It never stops at the first problem — operators need the full
// list in one pass.
func (s *Service) ValidateKeyConfiguration() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var report Report
	if len(s.encKeys) == 0 {
		report.Issues = append(report.Issues, Issue{Field: "encryption_key", Reason: "not configured"})
	} else if len(s.encKeys[len(s.encKeys)-1]) < MinKeyLen {
		report.Issues = append(report.Issues, Issue{Field: "encryption_key", Reason: "shorter than 32 bytes"})
	}
	if len(s.hmacSecrets) == 0 {
		report.Issues = append(report.Issues, Issue{Field: "hmac_secret", Reason: "not configured"})
	} else if len(s.hmacSecrets[len(s.hmacSecrets)-1]) < MinKeyLen {
		report.Issues = append(report.Issues, Issue{Field: "hmac_secret", Reason: "shorter than 32 bytes"})
	}
	return report
}
