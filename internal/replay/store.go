package replay

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record tracks one consumed payment transaction.
type Record struct {
	PaymentTxID string    `json:"paymentTxId"`
	UserAccount string    `json:"userAccount"`
	MintTxID    string    `json:"mintTxId,omitempty"`
	ConsumedAt  time.Time `json:"consumedAt"`
}

// Store is the durable set of payment transaction identifiers that have
// been claimed for minting. Consume is an atomic check-and-insert: it is
// what turns verify-then-mint into an exactly-once operation under
// concurrent or retried requests.
type Store interface {
	// Consume claims the payment. Returns false if it was already claimed.
	Consume(ctx context.Context, paymentTxID, userAccount string) (bool, error)
	// Complete records the mint signature against the claimed payment.
	Complete(ctx context.Context, paymentTxID, mintTxID string) error
	// Release gives the claim back after a mint that verifiably did not
	// reach the ledger, so the payment can be retried.
	Release(ctx context.Context, paymentTxID string) error
}

// MemoryStore is mostly for testing.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

func (m *MemoryStore) Consume(_ context.Context, paymentTxID, userAccount string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[paymentTxID]; ok {
		return false, nil
	}
	m.data[paymentTxID] = Record{
		PaymentTxID: paymentTxID,
		UserAccount: userAccount,
		ConsumedAt:  time.Now().UTC(),
	}
	return true, nil
}

func (m *MemoryStore) Complete(_ context.Context, paymentTxID, mintTxID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[paymentTxID]
	if !ok {
		return errors.New("payment not claimed")
	}
	rec.MintTxID = mintTxID
	m.data[paymentTxID] = rec
	return nil
}

func (m *MemoryStore) Release(_ context.Context, paymentTxID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, paymentTxID)
	return nil
}

// FileStore persists claims to disk. Suitable for local dev; production
// deployments use the Postgres store.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]Record
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, data: make(map[string]Record)}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		return nil
	}
	return json.Unmarshal(blob, &f.data)
}

func (f *FileStore) persist() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, blob, 0o600)
}

func (f *FileStore) Consume(_ context.Context, paymentTxID, userAccount string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[paymentTxID]; ok {
		return false, nil
	}
	f.data[paymentTxID] = Record{
		PaymentTxID: paymentTxID,
		UserAccount: userAccount,
		ConsumedAt:  time.Now().UTC(),
	}
	return true, f.persist()
}

func (f *FileStore) Complete(_ context.Context, paymentTxID, mintTxID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.data[paymentTxID]
	if !ok {
		return errors.New("payment not claimed")
	}
	rec.MintTxID = mintTxID
	f.data[paymentTxID] = rec
	return f.persist()
}

func (f *FileStore) Release(_ context.Context, paymentTxID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, paymentTxID)
	return f.persist()
}
