package escrow

import (
	"fmt"
	"math/big"
)

// Status represents the lifecycle states of an escrow entry. Transitions are
// monotonic: Created -> Funded -> {Released | Refunded}, with the last two
// terminal.
type Status uint8

const (
	StatusCreated Status = iota
	StatusFunded
	StatusReleased
	StatusRefunded
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusFunded, StatusReleased, StatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusReleased || s == StatusRefunded
}

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusFunded:
		return "funded"
	case StatusReleased:
		return "released"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Escrow captures one settlement entry between a payer and a payee for a
// single ride. The identifier is the keccak256 hash of payer, payee and the
// ride identifier, so replaying an identical create is harmless. Deadlines
// are durations in seconds anchored at FundedAt, not absolute timestamps.
type Escrow struct {
	ID           [32]byte
	Payer        [20]byte
	Payee        [20]byte
	Balance      *big.Int
	FeeBps       uint32
	ReleaseDelay int64
	RefundDelay  int64
	CreatedAt    int64
	FundedAt     int64
	Status       Status
}

// Clone returns a deep copy of the escrow so callers can safely mutate the
// copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Balance != nil {
		clone.Balance = new(big.Int).Set(e.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	return &clone
}

// Sanitize validates a stored escrow record, returning a clone with a non-nil
// balance. It checks structural invariants only; transition guards live in
// the engine.
func Sanitize(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	clone := e.Clone()
	if clone.Balance.Sign() < 0 {
		return nil, fmt.Errorf("escrow balance must be non-negative")
	}
	if clone.FeeBps > 10_000 {
		return nil, ErrFeeOutOfRange
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid escrow status: %d", clone.Status)
	}
	if clone.Status == StatusFunded && clone.Balance.Sign() == 0 {
		return nil, fmt.Errorf("funded escrow must hold a positive balance")
	}
	if clone.Status != StatusFunded && clone.Balance.Sign() != 0 {
		return nil, fmt.Errorf("balance must be zero outside the funded state")
	}
	return clone, nil
}

// SplitFee computes the settlement split for a release. The fee is
// floor(amount * feeBps / 10000) and the payee receives amount - fee, so
// payout + fee == amount holds exactly for every input.
func SplitFee(amount *big.Int, feeBps uint32) (payout, fee *big.Int) {
	total := new(big.Int)
	if amount != nil {
		total.Set(amount)
	}
	fee = new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(feeBps)))
	fee.Div(fee, big.NewInt(10_000))
	payout = new(big.Int).Sub(total, fee)
	return payout, fee
}
