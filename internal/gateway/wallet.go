package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"idledger/pkg/platform/sentinel"
)

// Identity is a named credential stored in a wallet. Connect refuses an
// identity label the wallet does not hold.
type Identity struct {
	Label       string `json:"label"`
	MSPID       string `json:"mspId"`
	Certificate string `json:"certificate"`
	PrivateKey  string `json:"privateKey"`
}

// Wallet is a file-system credential store. Each identity lives in its own
// <label>.id JSON file under the wallet directory.
type Wallet struct {
	dir string
}

// NewFileSystemWallet opens (creating if needed) a wallet directory.
func NewFileSystemWallet(dir string) (*Wallet, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create wallet directory: %w", err)
	}
	return &Wallet{dir: dir}, nil
}

func (w *Wallet) path(label string) string {
	return filepath.Join(w.dir, filepath.Clean(label)+".id")
}

// Put stores an identity under its label, overwriting any previous entry.
func (w *Wallet) Put(identity Identity) error {
	if identity.Label == "" {
		return fmt.Errorf("identity label is required")
	}
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := os.WriteFile(w.path(identity.Label), raw, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

// Get loads an identity by label.
func (w *Wallet) Get(label string) (Identity, error) {
	raw, err := os.ReadFile(w.path(label))
	if errors.Is(err, os.ErrNotExist) {
		return Identity{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("read identity: %w", err)
	}
	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	return identity, nil
}

// Exists reports whether the wallet holds an identity under label.
func (w *Wallet) Exists(label string) bool {
	_, err := os.Stat(w.path(label))
	return err == nil
}
