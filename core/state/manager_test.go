package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"fareledger/native/escrow"
	"fareledger/storage"
)

func testEscrow() *escrow.Escrow {
	esc := &escrow.Escrow{
		ID:           [32]byte{0xAA},
		Balance:      big.NewInt(12345),
		FeeBps:       500,
		ReleaseDelay: 3600,
		RefundDelay:  7200,
		CreatedAt:    1_700_000_000,
		FundedAt:     1_700_000_100,
		Status:       escrow.StatusFunded,
	}
	esc.Payer[0] = 0x01
	esc.Payee[0] = 0x02
	return esc
}

func TestAccountRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := []byte{0x01, 0x02, 0x03}

	account, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, account.Balance.Sign(), "missing account starts empty")

	account.Balance = big.NewInt(777)
	account.Nonce = 3
	require.NoError(t, m.PutAccount(addr, account))

	loaded, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(777), loaded.Balance.Int64())
	require.Equal(t, uint64(3), loaded.Nonce)
}

func TestEscrowRecordRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	esc := testEscrow()
	require.NoError(t, m.EscrowPut(esc))

	loaded, ok := m.EscrowGet(esc.ID)
	require.True(t, ok)
	require.Equal(t, esc.ID, loaded.ID)
	require.Equal(t, esc.Payer, loaded.Payer)
	require.Equal(t, esc.Payee, loaded.Payee)
	require.Zero(t, loaded.Balance.Cmp(esc.Balance))
	require.Equal(t, esc.FeeBps, loaded.FeeBps)
	require.Equal(t, esc.ReleaseDelay, loaded.ReleaseDelay)
	require.Equal(t, esc.RefundDelay, loaded.RefundDelay)
	require.Equal(t, esc.FundedAt, loaded.FundedAt)
	require.Equal(t, esc.Status, loaded.Status)
}

func TestEscrowPutRejectsInvalidRecords(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	esc := testEscrow()
	esc.Balance = big.NewInt(0) // funded with zero balance violates the invariant
	require.Error(t, m.EscrowPut(esc))
	_, ok := m.EscrowGet(esc.ID)
	require.False(t, ok)
}

func TestOverlayCommitAndRollback(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)
	addr := []byte{0xBB}

	m.Begin()
	require.NoError(t, m.SetBalance(addr, big.NewInt(100)))

	// Buffered write is visible through the manager before commit.
	account, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(100), account.Balance.Int64())

	m.Rollback()
	account, err = m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, account.Balance.Sign(), "rolled back write must not persist")

	m.Begin()
	require.NoError(t, m.SetBalance(addr, big.NewInt(42)))
	require.NoError(t, m.Commit())

	account, err = m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(42), account.Balance.Int64())
}

func TestVaultAddressIsStable(t *testing.T) {
	a := NewManager(storage.NewMemDB()).EscrowVaultAddress()
	b := NewManager(storage.NewMemDB()).EscrowVaultAddress()
	require.Equal(t, a, b)
	require.NotEqual(t, [20]byte{}, a)
}
