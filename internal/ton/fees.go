package ton

import (
	"fmt"
	"math/big"
	"strings"

	apperrors "github.com/showpls/showpls-server-go/internal/errors"
)

// NanoPerTON is the number of nano-units in one TON.
const NanoPerTON = 1_000_000_000

// nanoDecimals is the number of fractional digits a TON amount carries.
const nanoDecimals = 9

// DefaultFeeBps is the platform fee in basis points (2.5%).
const DefaultFeeBps = 250

// MinOrderNano is the smallest budget an order may carry (0.1 TON).
const MinOrderNano = NanoPerTON / 10

// Fees is the exact integer split of an order budget. The invariant
// PlatformFeeNano + ProviderNano == BudgetNano holds for every value
// produced by ComputeFees.
type Fees struct {
	BudgetNano      int64 `json:"budgetNano"`
	PlatformFeeNano int64 `json:"platformFeeNano"`
	ProviderNano    int64 `json:"providerNano"`
}

// BudgetTON returns the human display form of the budget.
func (f Fees) BudgetTON() string { return FormatNano(f.BudgetNano) }

// PlatformFeeTON returns the human display form of the platform fee.
func (f Fees) PlatformFeeTON() string { return FormatNano(f.PlatformFeeNano) }

// ProviderTON returns the human display form of the provider amount.
func (f Fees) ProviderTON() string { return FormatNano(f.ProviderNano) }

// ToNano converts a decimal TON amount to integer nano-units, flooring any
// precision beyond nine decimal places. The input is parsed as a decimal
// string so float drift can never leak into monetary amounts.
func ToNano(amount string) (int64, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, apperrors.InvalidAmount("empty")
	}
	if s[0] == '+' {
		s = s[1:]
	}
	if s == "" || s[0] == '-' {
		return 0, apperrors.InvalidAmount("must be a non-negative number")
	}

	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, apperrors.InvalidAmount("not a number")
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return 0, apperrors.InvalidAmount("not a number")
	}

	// floor: digits past the ninth fractional place are dropped
	if len(fracPart) > nanoDecimals {
		fracPart = fracPart[:nanoDecimals]
	}
	fracPart += strings.Repeat("0", nanoDecimals-len(fracPart))

	nano := new(big.Int)
	if _, ok := nano.SetString(intPart+fracPart, 10); !ok {
		return 0, apperrors.InvalidAmount("not a number")
	}
	if !nano.IsInt64() {
		return 0, apperrors.InvalidAmount("amount too large")
	}
	return nano.Int64(), nil
}

// ComputeFees splits a nano-TON budget into the platform fee and the
// provider amount. The fee is floor(budget * feeBps / 10000) computed with
// unbounded integers; the provider gets the exact remainder.
func ComputeFees(budgetNano int64, feeBps int) (Fees, error) {
	if budgetNano < 0 {
		return Fees{}, apperrors.InvalidAmount("must be non-negative")
	}
	if feeBps < 0 || feeBps > 10000 {
		return Fees{}, apperrors.InvalidAmount(fmt.Sprintf("fee basis points out of range: %d", feeBps))
	}

	fee := new(big.Int).SetInt64(budgetNano)
	fee.Mul(fee, big.NewInt(int64(feeBps)))
	fee.Quo(fee, big.NewInt(10000))

	platformFee := fee.Int64()
	return Fees{
		BudgetNano:      budgetNano,
		PlatformFeeNano: platformFee,
		ProviderNano:    budgetNano - platformFee,
	}, nil
}

// MeetsMinimum reports whether a nano amount satisfies the order minimum.
func MeetsMinimum(nano int64) bool {
	return nano >= MinOrderNano
}

// FormatNano renders nano-units as a decimal TON string with trailing zeros
// stripped. FormatNano and ToNano round-trip exactly.
func FormatNano(nano int64) string {
	sign := ""
	if nano < 0 {
		sign = "-"
		nano = -nano
	}

	whole := nano / NanoPerTON
	frac := nano % NanoPerTON
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}

	fracStr := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, fracStr)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
