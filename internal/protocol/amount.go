package protocol

import (
	"math"
)

const (
	// LamportsPerSOL is the ledger's atomic scaling for the base currency.
	LamportsPerSOL = 1_000_000_000
	// AtomicPerToken is the scaling for the launched token (9 decimals).
	AtomicPerToken = 1_000_000_000
)

// ValidateAmount is the first gate both components run before any network
// interaction: amounts must be finite and strictly positive.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount.Wrapf("amount is not finite: %v", amount)
	}
	if amount <= 0 {
		return ErrInvalidAmount.Wrapf("amount must be positive: %v", amount)
	}
	return nil
}

// ToLamports converts a SOL display amount to lamports, rounding half away
// from zero. The same rounding is used everywhere amounts hit the wire.
func ToLamports(sol float64) uint64 {
	return uint64(math.Round(sol * LamportsPerSOL))
}

// FromLamports converts lamports back to a SOL display amount.
func FromLamports(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSOL
}

// ToAtomicTokens converts a token display amount to the mint's atomic unit,
// rounding half away from zero.
func ToAtomicTokens(tokens float64) uint64 {
	return uint64(math.Round(tokens * AtomicPerToken))
}

// FromAtomicTokens converts atomic token units back to display units.
func FromAtomicTokens(atomic uint64) float64 {
	return float64(atomic) / AtomicPerToken
}
