package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"fareledger/core/events"
	"fareledger/core/genesis"
	"fareledger/core/state"
	"fareledger/core/types"
	"fareledger/native/escrow"
	"fareledger/storage"
)

const genesisAppliedKey = "genesis/applied"

// Ledger is the deterministic settlement substrate. Every operation runs as a
// single serialized step: guards are evaluated against the operation's block
// timestamp, state writes are buffered, and the step either commits in full
// (state, transfers, events) or aborts with no observable change.
type Ledger struct {
	mu      sync.Mutex
	db      storage.Database
	manager *state.Manager
	engine  *escrow.Engine
	log     *events.Log
	logger  *slog.Logger
	nowFn   func() int64
}

// Option configures a Ledger at construction time.
type Option func(*Ledger)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithNowFunc overrides the platform clock. Tests use this to drive the
// timeout guards deterministically.
func WithNowFunc(now func() int64) Option {
	return func(l *Ledger) {
		if now != nil {
			l.nowFn = now
		}
	}
}

// NewLedger wires the state manager, escrow engine and event log over the
// given store. feeCollector receives platform fees at release time.
func NewLedger(db storage.Database, feeCollector [20]byte, opts ...Option) *Ledger {
	manager := state.NewManager(db)
	engine := escrow.NewEngine()
	engine.SetState(manager)
	engine.SetFeeCollector(feeCollector)
	ledger := &Ledger{
		db:      db,
		manager: manager,
		engine:  engine,
		log:     events.NewLog(),
		logger:  slog.Default(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

// ApplyGenesis writes the initial allocations exactly once per store.
func (l *Ledger) ApplyGenesis(gen *genesis.Genesis) error {
	if gen == nil {
		return errors.New("ledger: nil genesis")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	applied, err := l.db.Has([]byte(genesisAppliedKey))
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	l.manager.Begin()
	if err := gen.Apply(l.manager); err != nil {
		l.manager.Rollback()
		return err
	}
	if err := l.manager.Commit(); err != nil {
		return err
	}
	marker, _ := json.Marshal(map[string]int64{"appliedAt": l.nowFn()})
	if err := l.db.Put([]byte(genesisAppliedKey), marker); err != nil {
		return err
	}
	l.logger.Info("genesis applied", slog.Int("allocations", len(gen.Alloc)))
	return nil
}

// bufferEmitter collects events emitted inside one operation so they only
// reach the ordered log if the operation commits.
type bufferEmitter struct {
	entries []*types.Event
}

func (b *bufferEmitter) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	if payload := carrier.Event(); payload != nil {
		b.entries = append(b.entries, payload)
	}
}

// apply runs one operation as an atomic serialized step.
func (l *Ledger) apply(op string, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.nowFn()
	buffer := &bufferEmitter{}
	l.engine.SetNowFunc(func() int64 { return timestamp })
	l.engine.SetEmitter(buffer)

	l.manager.Begin()
	if err := fn(); err != nil {
		l.manager.Rollback()
		l.logger.Debug("operation rejected",
			slog.String("op", op),
			slog.Int64("timestamp", timestamp),
			slog.Any("error", err))
		return err
	}
	if err := l.manager.Commit(); err != nil {
		return fmt.Errorf("ledger: commit %s: %w", op, err)
	}
	for _, evt := range buffer.entries {
		entry := l.log.Append(timestamp, evt)
		l.logger.Info("event committed",
			slog.String("op", op),
			slog.String("type", evt.Type),
			slog.Uint64("sequence", entry.Sequence))
	}
	return nil
}

// CreateEscrow registers a new entry between payer and payee.
func (l *Ledger) CreateEscrow(payer, payee [20]byte, feeBps uint32, releaseDelay, refundDelay int64, rideID [32]byte) (*escrow.Escrow, error) {
	var created *escrow.Escrow
	err := l.apply("escrow_create", func() error {
		esc, err := l.engine.Create(payer, payee, feeBps, releaseDelay, refundDelay, rideID)
		if err != nil {
			return err
		}
		created = esc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// FundEscrow moves amount from the payer into the escrow vault.
func (l *Ledger) FundEscrow(id [32]byte, from [20]byte, amount *big.Int) error {
	return l.apply("escrow_fund", func() error {
		return l.engine.Fund(id, from, amount)
	})
}

// ApproveRelease settles the entry in favour of the payee, payer only.
func (l *Ledger) ApproveRelease(id [32]byte, caller [20]byte) error {
	return l.apply("escrow_approveRelease", func() error {
		return l.engine.ApproveRelease(id, caller)
	})
}

// RefundEscrow returns the balance to the payer, payee only.
func (l *Ledger) RefundEscrow(id [32]byte, caller [20]byte) error {
	return l.apply("escrow_refund", func() error {
		return l.engine.Refund(id, caller)
	})
}

// AutoRelease settles for the payee once the release deadline has elapsed.
// Open to any caller.
func (l *Ledger) AutoRelease(id [32]byte) error {
	return l.apply("escrow_autoRelease", func() error {
		return l.engine.AutoRelease(id)
	})
}

// AutoRefund returns funds to the payer once the refund deadline has elapsed.
// Open to any caller.
func (l *Ledger) AutoRefund(id [32]byte) error {
	return l.apply("escrow_autoRefund", func() error {
		return l.engine.AutoRefund(id)
	})
}

// EscrowGet returns a copy of a stored entry.
func (l *Ledger) EscrowGet(id [32]byte) (*escrow.Escrow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine.Get(id)
}

// BalanceOf reads an account balance.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, err := l.manager.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// Events exposes the ordered event log for replay and subscriptions.
func (l *Ledger) Events() *events.Log {
	return l.log
}
