package ledger

import (
	"context"
	"errors"
)

// ErrBlockhashExpired signals that the reference blockhash passed its last
// valid block height before the transaction was observed confirmed. The
// caller must resubmit with fresh reference data, not assume failure.
var ErrBlockhashExpired = errors.New("blockhash expired before confirmation")

// Client abstracts the on-chain interaction.
type Client interface {
	// FetchTransaction looks up a transaction at confirmed commitment or
	// stronger. Returns (nil, nil) when the ledger has no record of it.
	FetchTransaction(ctx context.Context, txID string) (*TransactionDetail, error)
	// SubmitMint builds, signs and sends a mint instruction crediting the
	// destination owner's associated token account.
	SubmitMint(ctx context.Context, req MintSubmission) (MintReceipt, error)
	// ConfirmSignature blocks until the signature is confirmed, the
	// blockhash expires (ErrBlockhashExpired) or the context ends.
	ConfirmSignature(ctx context.Context, signature string, lastValidBlockHeight uint64) error
}

// HealthChecker is implemented by clients that can probe the RPC node.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// TransactionDetail is the subset of a fetched transaction the verifier
// needs: outcome plus per-account balance movement.
type TransactionDetail struct {
	Signature    string
	Slot         uint64
	Failed       bool
	AccountKeys  []string
	PreBalances  []int64
	PostBalances []int64
}

// LamportsReceived reports how many lamports the given account gained in
// this transaction. Zero when the account does not appear or lost funds.
func (d *TransactionDetail) LamportsReceived(account string) uint64 {
	for i, key := range d.AccountKeys {
		if key != account {
			continue
		}
		if i >= len(d.PreBalances) || i >= len(d.PostBalances) {
			return 0
		}
		delta := d.PostBalances[i] - d.PreBalances[i]
		if delta <= 0 {
			return 0
		}
		return uint64(delta)
	}
	return 0
}

// MintSubmission describes one mint instruction to be signed and sent.
type MintSubmission struct {
	DestinationOwner string
	AtomicAmount     uint64
}

// MintReceipt is returned on successful submission; the block height bounds
// how long confirmation may be awaited before resubmission.
type MintReceipt struct {
	Signature            string
	LastValidBlockHeight uint64
}

// TransferInstruction is a base-currency transfer the wallet capability
// signs and submits on the user's behalf.
type TransferInstruction struct {
	From     string
	To       string
	Lamports uint64
}
