package mintauth

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/Subham-Satapathy/lunchpad/internal/config"
	"github.com/Subham-Satapathy/lunchpad/internal/ledger"
	"github.com/Subham-Satapathy/lunchpad/internal/protocol"
	"github.com/Subham-Satapathy/lunchpad/internal/replay"
)

// State of a mint request as it moves through the service.
type State string

const (
	StateReceived  State = "received"
	StateVerifying State = "verifying"
	StateVerified  State = "verified"
	StateRejected  State = "rejected"
	StateMinting   State = "minting"
	StateMinted    State = "minted"
	StateFailed    State = "mint_failed"
)

// MintRequest is consumed exactly once; it ends in exactly one terminal
// MintResult.
type MintRequest struct {
	UserAccount          string
	PaymentTransactionID string
	// TokenAmount is the caller's claim. It is advisory only: the minted
	// amount is derived from the verified on-ledger payment.
	TokenAmount float64
}

// MintResult is terminal and never mutated after creation.
type MintResult struct {
	Success           bool
	MintTransactionID string
	TokenAmount       float64
	FailureReason     string
	FailureMessage    string
	// FinalState tells the caller which phase failed: a rejected
	// verification means no funds moved for minting, a failed mint after a
	// verified payment means they did.
	FinalState State
}

// VerificationResult carries what the verifier observed on the ledger.
type VerificationResult struct {
	PaidLamports uint64
}

// Service is the trust boundary: it never authorizes a mint without an
// independently confirmed payment to the launch receiving account.
type Service struct {
	ledger      ledger.Client
	replay      replay.Store
	destination string
	price       float64
	retry       config.RetryConfig
	timeouts    config.TimeoutConfig
}

func NewService(lc ledger.Client, store replay.Store, destination string, pricePerToken float64,
	retry config.RetryConfig, timeouts config.TimeoutConfig) *Service {
	return &Service{
		ledger:      lc,
		replay:      store,
		destination: destination,
		price:       pricePerToken,
		retry:       retry,
		timeouts:    timeouts,
	}
}

// Mint drives one request to a terminal result:
// received -> verifying -> {verified | rejected} -> minting -> {minted | mint_failed}.
// Verification always completes before any mint instruction is constructed.
func (s *Service) Mint(ctx context.Context, req MintRequest) MintResult {
	if err := validateRequest(req); err != nil {
		return rejected(err)
	}

	consumed, err := s.replay.Consume(ctx, req.PaymentTransactionID, req.UserAccount)
	if err != nil {
		return rejected(protocol.ErrLedgerTransient.Wrapf("replay store: %v", err))
	}
	if !consumed {
		return rejected(protocol.ErrPaymentConsumed.Wrapf(
			"payment %s already used for a mint", req.PaymentTransactionID))
	}

	verification, err := s.verifyPayment(ctx, req.PaymentTransactionID)
	if err != nil {
		// The claim is released so a payment that confirms later (or a
		// corrected request) can try again. A rejected payment can never
		// mint regardless, so releasing it is harmless.
		s.release(req.PaymentTransactionID)
		return rejected(err)
	}

	tokens := protocol.FromLamports(verification.PaidLamports) / s.price
	atomic := protocol.ToAtomicTokens(tokens)
	if atomic == 0 {
		s.release(req.PaymentTransactionID)
		return rejected(protocol.ErrAmbiguousReference.Wrapf(
			"verified payment too small to mint any token units"))
	}
	if req.TokenAmount > 0 && math.Abs(req.TokenAmount-tokens)*protocol.AtomicPerToken > 1 {
		log.Printf("[mintauth] claimed token amount %v differs from derived %v for tx=%s; using derived",
			req.TokenAmount, tokens, mask(req.PaymentTransactionID))
	}

	sig, err := s.authorizeMint(ctx, req.UserAccount, atomic)
	if err != nil {
		if errors.Is(err, protocol.ErrMintConfirmationTimeout) {
			// The mint may still land; the payment stays claimed until an
			// operator re-checks ledger state.
			return failedMint(err)
		}
		s.release(req.PaymentTransactionID)
		return failedMint(err)
	}

	if err := s.replay.Complete(ctx, req.PaymentTransactionID, sig); err != nil {
		log.Printf("[mintauth] record mint signature: %v", err)
	}

	return MintResult{
		Success:           true,
		MintTransactionID: sig,
		TokenAmount:       protocol.FromAtomicTokens(atomic),
		FinalState:        StateMinted,
	}
}

// verifyPayment is the sole authority for "did the user pay". It re-fetches
// the claimed transaction at confirmed commitment and checks that it is a
// successful transfer into the launch receiving account.
func (s *Service) verifyPayment(ctx context.Context, txID string) (VerificationResult, error) {
	var detail *ledger.TransactionDetail
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var ferr error
		detail, ferr = s.ledger.FetchTransaction(ctx, txID)
		return ferr
	})
	if err != nil {
		return VerificationResult{}, err
	}
	if detail == nil {
		return VerificationResult{}, protocol.ErrPaymentNotFound.Wrapf("no ledger record for %s", mask(txID))
	}
	if detail.Failed {
		return VerificationResult{}, protocol.ErrPaymentNotConfirmed.Wrapf(
			"transaction %s errored on ledger", mask(txID))
	}

	paid := detail.LamportsReceived(s.destination)
	if paid == 0 {
		return VerificationResult{}, protocol.ErrAmbiguousReference.Wrapf(
			"transaction %s is not a transfer to the receiving account", mask(txID))
	}

	log.Printf("[mintauth] verified payment tx=%s lamports=%d", mask(txID), paid)
	return VerificationResult{PaidLamports: paid}, nil
}

// authorizeMint submits the mint instruction and awaits confirmation within
// the blockhash validity window, resubmitting with fresh reference data on
// expiry a bounded number of times.
func (s *Service) authorizeMint(ctx context.Context, userAccount string, atomicAmount uint64) (string, error) {
	attempts := s.timeouts.MintResubmitAttempts
	if attempts <= 0 {
		attempts = 1
	}

	sub := ledger.MintSubmission{DestinationOwner: userAccount, AtomicAmount: atomicAmount}

	var lastErr error
	for i := 0; i < attempts; i++ {
		var receipt ledger.MintReceipt
		err := s.withRetry(ctx, func(ctx context.Context) error {
			var serr error
			receipt, serr = s.ledger.SubmitMint(ctx, sub)
			return serr
		})
		if err != nil {
			if protocol.ClassOf(err) == protocol.ClassLedgerRejected {
				return "", protocol.ErrMintSubmissionFailed.Wrap(err)
			}
			return "", err
		}

		confirmCtx, cancel := context.WithTimeout(ctx, s.timeouts.ConfirmTimeout)
		err = s.ledger.ConfirmSignature(confirmCtx, receipt.Signature, receipt.LastValidBlockHeight)
		cancel()
		switch {
		case err == nil:
			log.Printf("[mintauth] mint confirmed tx=%s user=%s amount=%d",
				mask(receipt.Signature), mask(userAccount), atomicAmount)
			return receipt.Signature, nil
		case errors.Is(err, ledger.ErrBlockhashExpired):
			// Unconfirmed and the reference data is dead: resubmitting with
			// a fresh blockhash cannot double-mint.
			lastErr = err
			continue
		case errors.Is(err, protocol.ErrLedgerRejected):
			// The ledger recorded the mint transaction as failed, so no
			// tokens were created and the payment may be retried.
			return "", protocol.ErrMintSubmissionFailed.Wrap(err)
		default:
			// The instruction is already in flight and its fate is unknown.
			// Anything short of a ledger-recorded failure must keep the
			// payment claimed, or a retry could mint twice.
			return "", protocol.ErrMintConfirmationTimeout.Wrap(err)
		}
	}

	return "", protocol.ErrMintConfirmationTimeout.Wrapf("blockhash expired %d times: %v", attempts, lastErr)
}

// withRetry runs fn with the consolidated backoff policy, retrying only
// transient ledger faults. Each attempt gets its own RPC deadline so a
// stalled node cannot hold a request for the full confirmation window.
func (s *Service) withRetry(ctx context.Context, fn func(context.Context) error) error {
	attempts := s.retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := s.retry.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = s.attempt(ctx, fn); err == nil {
			return nil
		}
		if !protocol.Retryable(err) || i == attempts {
			return err
		}

		sleep := backoff
		if s.retry.MaxBackoff > 0 && sleep > s.retry.MaxBackoff {
			sleep = s.retry.MaxBackoff
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return protocol.ErrLedgerTransient.Wrap(ctx.Err())
		}

		if s.retry.BackoffMultiplier > 1 {
			backoff = backoff * time.Duration(s.retry.BackoffMultiplier)
		}
	}
	return err
}

func (s *Service) attempt(ctx context.Context, fn func(context.Context) error) error {
	if s.timeouts.RPCTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeouts.RPCTimeout)
	defer cancel()
	return fn(attemptCtx)
}

func (s *Service) release(paymentTxID string) {
	// Best effort against a fresh context: the claim must not leak even
	// when the request context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.replay.Release(ctx, paymentTxID); err != nil {
		log.Printf("[mintauth] release payment claim %s: %v", mask(paymentTxID), err)
	}
}

func validateRequest(req MintRequest) error {
	if strings.TrimSpace(req.UserAccount) == "" {
		return protocol.ErrMalformedID.Wrapf("userAccount is required")
	}
	if strings.TrimSpace(req.PaymentTransactionID) == "" {
		return protocol.ErrMalformedID.Wrapf("payment transaction id is required")
	}
	return protocol.ValidateAmount(req.TokenAmount)
}

func rejected(err error) MintResult {
	return MintResult{FailureReason: reasonCode(err), FailureMessage: err.Error(), FinalState: StateRejected}
}

func failedMint(err error) MintResult {
	return MintResult{FailureReason: reasonCode(err), FailureMessage: err.Error(), FinalState: StateFailed}
}

func reasonCode(err error) string {
	var pe *protocol.Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return err.Error()
}

func mask(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:4] + "***" + s[len(s)-4:]
}
