package routes

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fareledger/core/events"
	"fareledger/crypto"
	"fareledger/gateway/middleware"
	"fareledger/native/escrow"
)

// Ledger is the read-only surface the gateway serves. Observers reconstruct
// dashboard state from these reads instead of trusting cached off-core data.
type Ledger interface {
	EscrowGet(id [32]byte) (*escrow.Escrow, error)
	Events() *events.Log
}

type Config struct {
	Ledger        Ledger
	Observability *middleware.Observability
}

type escrowView struct {
	ID              string `json:"id"`
	Payer           string `json:"payer"`
	Payee           string `json:"payee"`
	Balance         string `json:"balance"`
	FeeBps          uint32 `json:"feeBps"`
	ReleaseDeadline int64  `json:"releaseDeadline"`
	RefundDeadline  int64  `json:"refundDeadline"`
	CreatedAt       int64  `json:"createdAt"`
	FundedAt        int64  `json:"fundedAt,omitempty"`
	Status          string `json:"status"`
}

func newEscrowView(esc *escrow.Escrow) escrowView {
	return escrowView{
		ID:              hex.EncodeToString(esc.ID[:]),
		Payer:           crypto.NewAddress(esc.Payer[:]).String(),
		Payee:           crypto.NewAddress(esc.Payee[:]).String(),
		Balance:         esc.Balance.String(),
		FeeBps:          esc.FeeBps,
		ReleaseDeadline: esc.ReleaseDelay,
		RefundDeadline:  esc.RefundDelay,
		CreatedAt:       esc.CreatedAt,
		FundedAt:        esc.FundedAt,
		Status:          esc.Status.String(),
	}
}

// New builds the gateway router: health, read accessors, event replay and the
// metrics endpoint.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware("gateway"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/v1/escrows/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseEntryID(chi.URLParam(r, "id"))
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "invalid escrow id")
			return
		}
		esc, err := cfg.Ledger.EscrowGet(id)
		if err != nil {
			if errors.Is(err, escrow.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, "escrow not found")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, newEscrowView(esc))
	})

	r.Get("/v1/escrows/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		idParam := chi.URLParam(r, "id")
		if _, ok := parseEntryID(idParam); !ok {
			writeJSONError(w, http.StatusBadRequest, "invalid escrow id")
			return
		}
		matched := make([]events.Entry, 0)
		for _, entry := range cfg.Ledger.Events().Replay(0) {
			if entry.Event != nil && entry.Event.Attributes["id"] == idParam {
				matched = append(matched, entry)
			}
		}
		writeJSON(w, http.StatusOK, matched)
	})

	r.Get("/v1/events", func(w http.ResponseWriter, r *http.Request) {
		after := uint64(0)
		if raw := r.URL.Query().Get("after"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid after cursor")
				return
			}
			after = parsed
		}
		entries := cfg.Ledger.Events().Replay(after)
		if entries == nil {
			entries = []events.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})

	if cfg.Observability != nil {
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}

	return r
}

func parseEntryID(raw string) ([32]byte, bool) {
	var id [32]byte
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != len(id) {
		return id, false
	}
	copy(id[:], decoded)
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
