package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"fareledger/core/types"
	"fareledger/native/escrow"
	"fareledger/storage"
)

const (
	accountPrefix = "acct/"
	escrowPrefix  = "escrow/"
)

// vaultAddress is the module account holding escrowed funds between funding
// and settlement. Derived from a fixed label so it has no known private key.
var vaultAddress = func() [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte("fareledger/escrow-vault"))
	copy(addr[:], hash[12:])
	return addr
}()

// Manager persists accounts and escrow entries as JSON records in a key-value
// store. Writes issued between Begin and Commit are buffered in an overlay so
// one ledger operation either lands in full or not at all.
type Manager struct {
	mu      sync.Mutex
	db      storage.Database
	overlay map[string][]byte
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a write overlay. Nested transactions are a programming error.
func (m *Manager) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay != nil {
		panic("state: transaction already open")
	}
	m.overlay = make(map[string][]byte)
}

// Rollback discards all writes buffered since Begin.
func (m *Manager) Rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = nil
}

// Commit flushes buffered writes to the underlying store.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay == nil {
		return errors.New("state: no transaction open")
	}
	for key, value := range m.overlay {
		if err := m.db.Put([]byte(key), value); err != nil {
			m.overlay = nil
			return fmt.Errorf("state: commit write: %w", err)
		}
	}
	m.overlay = nil
	return nil
}

func (m *Manager) get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay != nil {
		if value, ok := m.overlay[key]; ok {
			return value, true, nil
		}
	}
	value, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay != nil {
		m.overlay[key] = value
		return nil
	}
	return m.db.Put([]byte(key), value)
}

// --- accounts ---

func accountKey(addr []byte) string {
	return accountPrefix + hex.EncodeToString(addr)
}

// GetAccount loads the account for an address, returning an empty account
// when none is stored yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	raw, ok, err := m.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	account := types.NewAccount()
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.put(accountKey(addr), raw)
}

// SetBalance overwrites an account balance. Used by genesis allocation only.
func (m *Manager) SetBalance(addr []byte, amount *big.Int) error {
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Set(amount)
	return m.PutAccount(addr, account)
}

// --- escrow entries ---

// escrowRecord is the persisted form of an entry. Byte arrays are stored as
// hex strings so the raw store doubles as a readable audit record.
type escrowRecord struct {
	ID           string `json:"id"`
	Payer        string `json:"payer"`
	Payee        string `json:"payee"`
	Balance      string `json:"balance"`
	FeeBps       uint32 `json:"feeBps"`
	ReleaseDelay int64  `json:"releaseDeadline"`
	RefundDelay  int64  `json:"refundDeadline"`
	CreatedAt    int64  `json:"createdAt"`
	FundedAt     int64  `json:"fundedAt"`
	Status       uint8  `json:"status"`
}

func escrowKey(id [32]byte) string {
	return escrowPrefix + hex.EncodeToString(id[:])
}

func (m *Manager) EscrowPut(esc *escrow.Escrow) error {
	sanitized, err := escrow.Sanitize(esc)
	if err != nil {
		return err
	}
	record := escrowRecord{
		ID:           hex.EncodeToString(sanitized.ID[:]),
		Payer:        hex.EncodeToString(sanitized.Payer[:]),
		Payee:        hex.EncodeToString(sanitized.Payee[:]),
		Balance:      sanitized.Balance.String(),
		FeeBps:       sanitized.FeeBps,
		ReleaseDelay: sanitized.ReleaseDelay,
		RefundDelay:  sanitized.RefundDelay,
		CreatedAt:    sanitized.CreatedAt,
		FundedAt:     sanitized.FundedAt,
		Status:       uint8(sanitized.Status),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("state: encode escrow: %w", err)
	}
	return m.put(escrowKey(sanitized.ID), raw)
}

func (m *Manager) EscrowGet(id [32]byte) (*escrow.Escrow, bool) {
	raw, ok, err := m.get(escrowKey(id))
	if err != nil || !ok {
		return nil, false
	}
	var record escrowRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false
	}
	esc, err := record.decode()
	if err != nil {
		return nil, false
	}
	return esc, true
}

func (r escrowRecord) decode() (*escrow.Escrow, error) {
	esc := &escrow.Escrow{
		FeeBps:       r.FeeBps,
		ReleaseDelay: r.ReleaseDelay,
		RefundDelay:  r.RefundDelay,
		CreatedAt:    r.CreatedAt,
		FundedAt:     r.FundedAt,
		Status:       escrow.Status(r.Status),
	}
	idBytes, err := hex.DecodeString(r.ID)
	if err != nil || len(idBytes) != len(esc.ID) {
		return nil, fmt.Errorf("state: invalid escrow id")
	}
	copy(esc.ID[:], idBytes)
	payer, err := hex.DecodeString(r.Payer)
	if err != nil || len(payer) != len(esc.Payer) {
		return nil, fmt.Errorf("state: invalid payer address")
	}
	copy(esc.Payer[:], payer)
	payee, err := hex.DecodeString(r.Payee)
	if err != nil || len(payee) != len(esc.Payee) {
		return nil, fmt.Errorf("state: invalid payee address")
	}
	copy(esc.Payee[:], payee)
	balance, ok := new(big.Int).SetString(r.Balance, 10)
	if !ok || balance.Sign() < 0 {
		return nil, fmt.Errorf("state: invalid escrow balance")
	}
	esc.Balance = balance
	return esc, nil
}

// EscrowVaultAddress returns the module account that holds funded balances.
func (m *Manager) EscrowVaultAddress() [20]byte {
	return vaultAddress
}
