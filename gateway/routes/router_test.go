package routes

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"fareledger/core/events"
	"fareledger/core/types"
	"fareledger/native/escrow"
)

type stubLedger struct {
	escrows map[[32]byte]*escrow.Escrow
	log     *events.Log
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		escrows: make(map[[32]byte]*escrow.Escrow),
		log:     events.NewLog(),
	}
}

func (s *stubLedger) EscrowGet(id [32]byte) (*escrow.Escrow, error) {
	esc, ok := s.escrows[id]
	if !ok {
		return nil, escrow.ErrNotFound
	}
	return esc, nil
}

func (s *stubLedger) Events() *events.Log {
	return s.log
}

func testRouterEnv(t *testing.T) (*stubLedger, *httptest.Server, *escrow.Escrow) {
	t.Helper()
	ledger := newStubLedger()
	esc := &escrow.Escrow{
		ID:           [32]byte{0xAB},
		Balance:      big.NewInt(1_000),
		FeeBps:       500,
		ReleaseDelay: 3600,
		RefundDelay:  7200,
		CreatedAt:    1_700_000_000,
		FundedAt:     1_700_000_060,
		Status:       escrow.StatusFunded,
	}
	esc.Payer[0] = 0x01
	esc.Payee[0] = 0x02
	ledger.escrows[esc.ID] = esc

	server := httptest.NewServer(New(Config{Ledger: ledger}))
	t.Cleanup(server.Close)
	return ledger, server, esc
}

func TestHealthz(t *testing.T) {
	_, server, _ := testRouterEnv(t)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEscrowLookup(t *testing.T) {
	_, server, esc := testRouterEnv(t)
	id := hex.EncodeToString(esc.ID[:])

	resp, err := http.Get(server.URL + "/v1/escrows/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view escrowView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Equal(t, id, view.ID)
	require.Equal(t, "1000", view.Balance)
	require.Equal(t, "funded", view.Status)
	require.Equal(t, int64(3600), view.ReleaseDeadline)

	missing, err := http.Get(server.URL + "/v1/escrows/" + hex.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := http.Get(server.URL + "/v1/escrows/nope")
	require.NoError(t, err)
	bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestEventReplayEndpoints(t *testing.T) {
	ledger, server, esc := testRouterEnv(t)
	id := hex.EncodeToString(esc.ID[:])

	ledger.log.Append(1_700_000_000, &types.Event{
		Type:       escrow.EventTypeCreated,
		Attributes: map[string]string{"id": id},
	})
	ledger.log.Append(1_700_000_060, &types.Event{
		Type:       escrow.EventTypeFunded,
		Attributes: map[string]string{"id": id, "amount": "1000"},
	})
	ledger.log.Append(1_700_000_070, &types.Event{
		Type:       escrow.EventTypeCreated,
		Attributes: map[string]string{"id": "ffff"},
	})

	resp, err := http.Get(server.URL + "/v1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	var all []events.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	require.Len(t, all, 3)
	require.Equal(t, uint64(1), all[0].Sequence)

	cursor, err := http.Get(server.URL + "/v1/events?after=2")
	require.NoError(t, err)
	defer cursor.Body.Close()
	var tail []events.Entry
	require.NoError(t, json.NewDecoder(cursor.Body).Decode(&tail))
	require.Len(t, tail, 1)
	require.Equal(t, uint64(3), tail[0].Sequence)

	scoped, err := http.Get(server.URL + "/v1/escrows/" + id + "/events")
	require.NoError(t, err)
	defer scoped.Body.Close()
	var matched []events.Entry
	require.NoError(t, json.NewDecoder(scoped.Body).Decode(&matched))
	require.Len(t, matched, 2)
	for _, entry := range matched {
		require.Equal(t, id, entry.Event.Attributes["id"])
	}

	badCursor, err := http.Get(server.URL + "/v1/events?after=x")
	require.NoError(t, err)
	badCursor.Body.Close()
	require.Equal(t, http.StatusBadRequest, badCursor.StatusCode)
}
