package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"fareledger/core/events"
	"fareledger/core/types"
)

var (
	errNilState    = errors.New("escrow engine: state not configured")
	errNilTreasury = errors.New("escrow engine: fee collector not configured")
)

type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(id [32]byte) (*Escrow, bool)
	EscrowVaultAddress() [20]byte
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine wires the escrow transition logic with external state and event
// emitters. Every operation receives the caller identity explicitly; the
// engine never reads ambient identity, so it can be unit tested without a
// live ledger.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	feeCollector [20]byte
	nowFn        func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFeeCollector configures the address that receives platform fees.
func (e *Engine) SetFeeCollector(addr [20]byte) { e.feeCollector = addr }

// SetNowFunc overrides the time source used by the engine. The ledger points
// this at its block timestamp so guard evaluation is deterministic; tests use
// it to replay clock offsets.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// EntryID derives the deterministic escrow identifier from the two parties
// and the opaque ride identifier.
func EntryID(payer, payee [20]byte, rideID [32]byte) [32]byte {
	return ethcrypto.Keccak256Hash(payer[:], payee[:], rideID[:])
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) loadEscrow(id [32]byte) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.EscrowPut(esc)
}

// transfer moves native currency between two accounts. A failed transfer
// surfaces as an error to the caller; the ledger discards the whole operation
// so no partial movement is ever observable.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("escrow: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	if fromAcc == nil {
		fromAcc = types.NewAccount()
	}
	if toAcc == nil {
		toAcc = types.NewAccount()
	}
	if fromAcc.Balance == nil || fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	if toAcc.Balance == nil {
		toAcc.Balance = big.NewInt(0)
	}
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// Create initialises and persists a new escrow entry in the Created state.
// Replaying an identical definition returns the existing entry; a colliding
// identifier with a different definition is a conflict.
func (e *Engine) Create(payer, payee [20]byte, feeBps uint32, releaseDelay, refundDelay int64, rideID [32]byte) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if payer == ([20]byte{}) || payee == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	if payer == payee {
		return nil, ErrSameParty
	}
	if feeBps > 10_000 {
		return nil, ErrFeeOutOfRange
	}
	if releaseDelay <= 0 || refundDelay <= 0 {
		return nil, ErrDeadlineInvalid
	}
	if refundDelay <= releaseDelay {
		return nil, ErrDeadlineOrder
	}
	id := EntryID(payer, payee, rideID)
	if existing, ok := e.state.EscrowGet(id); ok {
		if existing.Payer != payer || existing.Payee != payee || existing.FeeBps != feeBps ||
			existing.ReleaseDelay != releaseDelay || existing.RefundDelay != refundDelay {
			return nil, ErrConflict
		}
		return existing.Clone(), nil
	}
	esc := &Escrow{
		ID:           id,
		Payer:        payer,
		Payee:        payee,
		Balance:      big.NewInt(0),
		FeeBps:       feeBps,
		ReleaseDelay: releaseDelay,
		RefundDelay:  refundDelay,
		CreatedAt:    e.now(),
		Status:       StatusCreated,
	}
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// Fund moves the escrow amount from the payer to the module vault and marks
// the entry as funded. Exactly one funding operation is accepted; any later
// attempt fails the state guard.
func (e *Engine) Fund(id [32]byte, from [20]byte, amount *big.Int) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusCreated {
		return ErrInvalidState
	}
	if esc.Payer != from {
		return ErrUnauthorized
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrZeroAmount
	}
	vault := e.state.EscrowVaultAddress()
	if err := e.transfer(esc.Payer, vault, amt); err != nil {
		return err
	}
	esc.Balance = amt
	esc.FundedAt = e.now()
	esc.Status = StatusFunded
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewFundedEvent(esc, esc.FundedAt))
	return nil
}

// ApproveRelease settles the entry in favour of the payee. Only the payer may
// approve; the platform fee is split off to the configured collector.
func (e *Engine) ApproveRelease(id [32]byte, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusFunded {
		return ErrInvalidState
	}
	if caller != esc.Payer {
		return ErrUnauthorized
	}
	return e.settleRelease(esc)
}

// Refund returns the full balance to the payer. Only the payee may refund; no
// fee is taken on the return path.
func (e *Engine) Refund(id [32]byte, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusFunded {
		return ErrInvalidState
	}
	if caller != esc.Payee {
		return ErrUnauthorized
	}
	return e.settleRefund(esc)
}

// AutoRelease settles in favour of the payee once the release deadline has
// elapsed. Anyone may invoke it; the entry state and clock are sufficient to
// validate the guard.
func (e *Engine) AutoRelease(id [32]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusFunded {
		return ErrInvalidState
	}
	if e.now() < esc.FundedAt+esc.ReleaseDelay {
		return ErrDeadlineNotReached
	}
	return e.settleRelease(esc)
}

// AutoRefund returns the balance to the payer once the refund deadline has
// elapsed. Anyone may invoke it.
func (e *Engine) AutoRefund(id [32]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusFunded {
		return ErrInvalidState
	}
	if e.now() < esc.FundedAt+esc.RefundDelay {
		return ErrDeadlineNotReached
	}
	return e.settleRefund(esc)
}

// Get returns a copy of the stored entry for read accessors.
func (e *Engine) Get(id [32]byte) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

func (e *Engine) settleRelease(esc *Escrow) error {
	total := cloneBigInt(esc.Balance)
	if total.Sign() <= 0 {
		return ErrZeroAmount
	}
	payout, fee := SplitFee(total, esc.FeeBps)
	if fee.Sign() > 0 && e.feeCollector == ([20]byte{}) {
		return errNilTreasury
	}
	vault := e.state.EscrowVaultAddress()
	if payout.Sign() > 0 {
		if err := e.transfer(vault, esc.Payee, payout); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.transfer(vault, e.feeCollector, fee); err != nil {
			return err
		}
	}
	esc.Balance = big.NewInt(0)
	esc.Status = StatusReleased
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewReleasedEvent(esc, payout, fee, e.now()))
	return nil
}

func (e *Engine) settleRefund(esc *Escrow) error {
	amount := cloneBigInt(esc.Balance)
	if amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	vault := e.state.EscrowVaultAddress()
	if err := e.transfer(vault, esc.Payer, amount); err != nil {
		return err
	}
	esc.Balance = big.NewInt(0)
	esc.Status = StatusRefunded
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewRefundedEvent(esc, amount, e.now()))
	return nil
}
