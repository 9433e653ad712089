package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Subham-Satapathy/lunchpad/internal/ledger"
	"github.com/Subham-Satapathy/lunchpad/internal/protocol"
)

// Signer is the wallet capability contract. Implementations may suspend
// pending user interaction and may refuse.
type Signer interface {
	// SignAndSubmit signs the instruction with the user's key, submits it
	// and returns the transaction identifier.
	SignAndSubmit(ctx context.Context, instr ledger.TransferInstruction) (string, error)
	// CurrentAccount returns the connected account, or false when no
	// wallet session is active.
	CurrentAccount() (string, bool)
}

// ConfirmationStatus of a submitted payment.
type ConfirmationStatus string

const (
	StatusPending   ConfirmationStatus = "pending"
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusFailed    ConfirmationStatus = "failed"
)

// PaymentRequest is a validated transfer waiting for a signature.
type PaymentRequest struct {
	PayerAccount       string
	Amount             float64
	DestinationAccount string
}

// PaymentReceipt is produced on submission and settles to confirmed or
// failed; once terminal it is never mutated again.
type PaymentReceipt struct {
	TransactionID string
	PayerAccount  string
	Amount        float64
	Status        ConfirmationStatus
}

// Bounds are the per-deployment purchase limits.
type Bounds struct {
	Min float64
	Max float64
}

// Initiator builds and submits payments toward the launch receiving
// account. It never holds minting authority.
type Initiator struct {
	bounds       Bounds
	destination  string
	ledger       ledger.Client
	pollInterval time.Duration
}

func NewInitiator(bounds Bounds, destination string, lc ledger.Client, pollInterval time.Duration) *Initiator {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Initiator{
		bounds:       bounds,
		destination:  destination,
		ledger:       lc,
		pollInterval: pollInterval,
	}
}

// BuildPayment validates the amount against the shared gate and the
// configured purchase limits. No network interaction happens here.
func (i *Initiator) BuildPayment(amount float64) (PaymentRequest, error) {
	if err := protocol.ValidateAmount(amount); err != nil {
		return PaymentRequest{}, err
	}
	if amount < i.bounds.Min || amount > i.bounds.Max {
		return PaymentRequest{}, protocol.ErrOutOfBounds.Wrapf(
			"amount %v outside purchase limits [%v, %v]", amount, i.bounds.Min, i.bounds.Max)
	}
	return PaymentRequest{
		Amount:             amount,
		DestinationAccount: i.destination,
	}, nil
}

// SubmitPayment obtains a signature via the wallet capability and submits
// the transfer. The returned receipt is pending; this call does not block
// for confirmation. Submission debits the payer: a repeat call produces a
// distinct debit, so callers must not retry blindly.
func (i *Initiator) SubmitPayment(ctx context.Context, req PaymentRequest, signer Signer) (PaymentReceipt, error) {
	payer, ok := signer.CurrentAccount()
	if !ok {
		return PaymentReceipt{}, protocol.ErrSigningDeclined.Wrapf("no wallet session")
	}

	instr := ledger.TransferInstruction{
		From:     payer,
		To:       req.DestinationAccount,
		Lamports: protocol.ToLamports(req.Amount),
	}

	txID, err := signer.SignAndSubmit(ctx, instr)
	if err != nil {
		if errors.Is(err, protocol.ErrSigningDeclined) || errors.Is(err, context.DeadlineExceeded) {
			return PaymentReceipt{}, protocol.ErrSigningDeclined.Wrap(err)
		}
		return PaymentReceipt{}, protocol.ErrLedgerRejected.Wrapf("payment submission: %v", err)
	}

	log.Printf("[payment] submitted transfer tx=%s payer=%s lamports=%d", mask(txID), mask(payer), instr.Lamports)

	return PaymentReceipt{
		TransactionID: txID,
		PayerAccount:  payer,
		Amount:        req.Amount,
		Status:        StatusPending,
	}, nil
}

// AwaitConfirmation polls the ledger until the payment settles or ctx ends.
// Callers that skip this simply hand the pending receipt to the mint
// service, whose verifier observes confirmation independently.
func (i *Initiator) AwaitConfirmation(ctx context.Context, receipt *PaymentReceipt) error {
	if receipt.Status != StatusPending {
		return nil
	}

	ticker := time.NewTicker(i.pollInterval)
	defer ticker.Stop()

	for {
		detail, err := i.ledger.FetchTransaction(ctx, receipt.TransactionID)
		if err != nil && !protocol.Retryable(err) {
			return err
		}
		if detail != nil {
			if detail.Failed {
				receipt.Status = StatusFailed
				return protocol.ErrLedgerRejected.Wrapf("payment %s failed on ledger", receipt.TransactionID)
			}
			receipt.Status = StatusConfirmed
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("await payment confirmation: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func mask(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:4] + "***" + s[len(s)-4:]
}
