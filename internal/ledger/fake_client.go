package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// FakeClient serves scripted transactions and records mint submissions.
// It stands in for the RPC node in tests and local development.
type FakeClient struct {
	mu           sync.Mutex
	transactions map[string]*TransactionDetail
	submitErr    error
	confirmErr   error
	Submissions  []MintSubmission
}

func NewFakeClient() *FakeClient {
	return &FakeClient{transactions: make(map[string]*TransactionDetail)}
}

// AddTransaction scripts a ledger transaction for later fetches.
func (f *FakeClient) AddTransaction(detail *TransactionDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions[detail.Signature] = detail
}

// FailSubmit makes every subsequent SubmitMint return err.
func (f *FakeClient) FailSubmit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

// FailConfirm makes every subsequent ConfirmSignature return err.
func (f *FakeClient) FailConfirm(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmErr = err
}

func (f *FakeClient) FetchTransaction(_ context.Context, txID string) (*TransactionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	detail, ok := f.transactions[txID]
	if !ok {
		return nil, nil
	}
	return detail, nil
}

func (f *FakeClient) SubmitMint(_ context.Context, req MintSubmission) (MintReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return MintReceipt{}, f.submitErr
	}
	f.Submissions = append(f.Submissions, req)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", req.DestinationOwner, len(f.Submissions))))
	return MintReceipt{
		Signature:            hex.EncodeToString(sum[:]),
		LastValidBlockHeight: 1_000_000,
	}, nil
}

func (f *FakeClient) ConfirmSignature(_ context.Context, _ string, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmErr
}

func (f *FakeClient) Ping(context.Context) error { return nil }

// SubmitCount reports how many mint instructions reached the ledger.
func (f *FakeClient) SubmitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Submissions)
}
