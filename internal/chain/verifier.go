package chain

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Deposit describes the escrow transfer a funding transaction must match.
type Deposit struct {
	OrderID      string
	ExpectedNano int64
	TxHash       string
}

// Verifier checks that an on-chain escrow deposit matches the expected
// amounts. The real implementation talks to a TON node; this core only
// consumes the interface.
type Verifier interface {
	VerifyDeposit(ctx context.Context, deposit Deposit) (bool, error)
}

// AcceptingVerifier approves any deposit with a non-empty transaction hash.
// Used until the TON watcher is wired in and in tests.
type AcceptingVerifier struct{}

func (AcceptingVerifier) VerifyDeposit(ctx context.Context, deposit Deposit) (bool, error) {
	if deposit.TxHash == "" {
		return false, nil
	}
	log.Debug().
		Str("orderId", deposit.OrderID).
		Int64("expectedNano", deposit.ExpectedNano).
		Str("txHash", deposit.TxHash).
		Msg("accepting deposit without chain verification")
	return true, nil
}
