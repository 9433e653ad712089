package protocol

import (
	"errors"
	"math"
	"testing"
)

func TestValidateAmountRejectsNonPositive(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
	}{
		{"zero", 0},
		{"negative", -1},
		{"nan", math.NaN()},
		{"positive inf", math.Inf(1)},
		{"negative inf", math.Inf(-1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAmount(tc.amount)
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("expected ErrInvalidAmount, got %v", err)
			}
		})
	}

	if err := ValidateAmount(0.00001); err != nil {
		t.Fatalf("expected small positive amount to pass, got %v", err)
	}
}

func TestAtomicRoundTrip(t *testing.T) {
	amounts := []float64{0.00001, 0.0005, 1, 200, 99999.123456789, 0.000000001}

	for _, a := range amounts {
		atomic := ToAtomicTokens(a)
		back := FromAtomicTokens(atomic)
		if math.Abs(back-a)*AtomicPerToken > 1 {
			t.Fatalf("round trip of %v drifted more than one atomic unit: got %v", a, back)
		}
	}
}

func TestLamportsRoundingHalfAwayFromZero(t *testing.T) {
	if got := ToLamports(0.0000000015); got != 2 {
		t.Fatalf("expected 2 lamports, got %d", got)
	}
	if got := ToLamports(0.0000000014); got != 1 {
		t.Fatalf("expected 1 lamport, got %d", got)
	}
}

func TestRetryableOnlyForTransient(t *testing.T) {
	if !Retryable(ErrLedgerTransient.Wrapf("dial timeout")) {
		t.Fatal("transient ledger errors must be retryable")
	}
	for _, err := range []error{ErrOutOfBounds, ErrLedgerRejected, ErrPaymentNotFound, ErrAuthorityFault} {
		if Retryable(err) {
			t.Fatalf("%v must not be retryable", err)
		}
	}
	if Retryable(nil) {
		t.Fatal("nil is not retryable")
	}
}

func TestErrorCodeMatching(t *testing.T) {
	wrapped := ErrPaymentNotFound.Wrapf("no record for abc")
	if !errors.Is(wrapped, ErrPaymentNotFound) {
		t.Fatal("wrapped error should match its sentinel")
	}
	if errors.Is(wrapped, ErrPaymentNotConfirmed) {
		t.Fatal("wrapped error must not match a different code")
	}
	if ClassOf(wrapped) != ClassVerificationFailed {
		t.Fatalf("unexpected class: %v", ClassOf(wrapped))
	}
}
