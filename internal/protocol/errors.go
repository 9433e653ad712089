package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Class buckets every failure the exchange can produce. Handlers map a class
// to an HTTP status; the retry loop consults it before backing off.
type Class string

const (
	ClassInputValidation    Class = "input_validation"
	ClassWalletInteraction  Class = "wallet_interaction"
	ClassLedgerTransient    Class = "ledger_transient"
	ClassLedgerRejected     Class = "ledger_rejected"
	ClassVerificationFailed Class = "verification_failed"
	ClassAuthorityFault     Class = "authority_fault"
)

var (
	ErrOutOfBounds   = &Error{Code: "OutOfBounds", Class: ClassInputValidation}
	ErrInvalidAmount = &Error{Code: "InvalidAmount", Class: ClassInputValidation}
	ErrMalformedID   = &Error{Code: "MalformedIdentifier", Class: ClassInputValidation}

	ErrSigningDeclined = &Error{Code: "SigningDeclined", Class: ClassWalletInteraction}
	ErrLedgerRejected  = &Error{Code: "LedgerRejected", Class: ClassLedgerRejected}
	ErrLedgerTransient = &Error{Code: "LedgerTransient", Class: ClassLedgerTransient}

	ErrPaymentNotFound     = &Error{Code: "PaymentNotFound", Class: ClassVerificationFailed}
	ErrPaymentNotConfirmed = &Error{Code: "PaymentNotConfirmed", Class: ClassVerificationFailed}
	ErrAmbiguousReference  = &Error{Code: "AmbiguousReference", Class: ClassVerificationFailed}
	ErrPaymentConsumed     = &Error{Code: "PaymentAlreadyConsumed", Class: ClassVerificationFailed}

	ErrMintSubmissionFailed    = &Error{Code: "MintSubmissionFailed", Class: ClassLedgerRejected}
	ErrMintConfirmationTimeout = &Error{Code: "MintConfirmationTimeout", Class: ClassLedgerTransient}

	ErrAuthorityFault = &Error{Code: "AuthorityFault", Class: ClassAuthorityFault}
)

// Error carries a stable code plus the class used for retry and HTTP mapping.
type Error struct {
	Code  string
	Class Class
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Code + ": " + e.cause.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches by code so wrapped instances compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	var pe *Error
	if errors.As(target, &pe) {
		return pe.Code == e.Code
	}
	return false
}

// Wrap attaches a cause while keeping the sentinel's code and class.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Class: e.Class, cause: cause}
}

// Wrapf is Wrap with a formatted cause.
func (e *Error) Wrapf(format string, args ...any) *Error {
	return e.Wrap(fmt.Errorf(format, args...))
}

// ClassOf extracts the taxonomy class, defaulting untyped errors to
// ledger-transient so unknown network faults stay retryable-but-bounded.
func ClassOf(err error) Class {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ClassLedgerTransient
}

// Retryable allow-lists transient ledger faults. Everything else is either
// caller-fixable or a confirmed rejection and must surface immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassOf(err) == ClassLedgerTransient
}

// TransientNetwork reports whether a raw RPC error looks like a network
// fault rather than a ledger verdict.
func TransientNetwork(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"timeout", "timed out", "connection refused", "connection reset", "temporary", "eof", "503", "429"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
