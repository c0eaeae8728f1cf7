package escrow

import "errors"

// Sentinel rejection reasons. Every guard violation maps onto exactly one of
// these so the RPC layer can surface a machine-readable code without parsing
// message text.
var (
	ErrNotFound           = errors.New("escrow: not found")
	ErrInvalidState       = errors.New("escrow: transition not allowed in current state")
	ErrUnauthorized       = errors.New("escrow: caller not authorized")
	ErrDeadlineNotReached = errors.New("escrow: deadline not reached")
	ErrZeroAmount         = errors.New("escrow: amount must be positive")
	ErrSameParty          = errors.New("escrow: payer and payee must be distinct")
	ErrZeroAddress        = errors.New("escrow: party address must not be zero")
	ErrDeadlineOrder      = errors.New("escrow: refund deadline must exceed release deadline")
	ErrDeadlineInvalid    = errors.New("escrow: deadlines must be positive")
	ErrFeeOutOfRange      = errors.New("escrow: fee basis points out of range")
	ErrConflict           = errors.New("escrow: identifier already exists with different definition")
	ErrInsufficientFunds  = errors.New("escrow: insufficient balance for transfer")
)
