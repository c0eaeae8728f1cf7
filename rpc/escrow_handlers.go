package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"fareledger/crypto"
	"fareledger/native/escrow"
)

const (
	codeEscrowInvalidParams = -32021
	codeEscrowNotFound      = -32022
	codeEscrowForbidden     = -32023
	codeEscrowConflict      = -32024
	codeEscrowDeadline      = -32026
	codeEscrowInternal      = -32025
)

type escrowCreateParams struct {
	Payer           string `json:"payer"`
	Payee           string `json:"payee"`
	FeeBps          uint32 `json:"feeBps"`
	ReleaseDeadline int64  `json:"releaseDeadline"`
	RefundDeadline  int64  `json:"refundDeadline"`
	RideID          string `json:"rideId"`
}

type escrowIDParams struct {
	ID string `json:"id"`
}

type escrowActorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type escrowFundParams struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type escrowEventsParams struct {
	After uint64 `json:"after"`
}

type escrowCreateResult struct {
	ID string `json:"id"`
}

type escrowJSON struct {
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

func formatEscrowJSON(esc *escrow.Escrow) escrowJSON {
	return escrowJSON{
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

func parseBech32Address(raw string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func parseEscrowID(raw string) ([32]byte, error) {
	var id [32]byte
	decoded, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return id, errors.New("escrow id must be hex encoded")
	}
	if len(decoded) != len(id) {
		return id, errors.New("escrow id must be 32 bytes")
	}
	copy(id[:], decoded)
	return id, nil
}

// parseRideID accepts any opaque ride identifier and hashes free-form values
// down to 32 bytes; exact 64-char hex strings are used verbatim.
func parseRideID(raw string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return id, errors.New("rideId required")
	}
	if decoded, err := hex.DecodeString(trimmed); err == nil && len(decoded) == len(id) {
		copy(id[:], decoded)
		return id, nil
	}
	copy(id[:], crypto.HashRideID(trimmed))
	return id, nil
}

// writeEscrowError maps engine rejections onto machine-readable RPC codes so
// off-core clients never see an ambiguous outcome.
func writeEscrowError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeEscrowNotFound, "not_found", err.Error())
	case errors.Is(err, escrow.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeEscrowForbidden, "forbidden", err.Error())
	case errors.Is(err, escrow.ErrInvalidState), errors.Is(err, escrow.ErrConflict):
		writeError(w, http.StatusConflict, id, codeEscrowConflict, "conflict", err.Error())
	case errors.Is(err, escrow.ErrDeadlineNotReached):
		writeError(w, http.StatusConflict, id, codeEscrowDeadline, "deadline_not_reached", err.Error())
	case errors.Is(err, escrow.ErrZeroAmount), errors.Is(err, escrow.ErrSameParty),
		errors.Is(err, escrow.ErrZeroAddress), errors.Is(err, escrow.ErrDeadlineOrder),
		errors.Is(err, escrow.ErrDeadlineInvalid), errors.Is(err, escrow.ErrFeeOutOfRange),
		errors.Is(err, escrow.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, id, codeEscrowInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeEscrowInternal, "internal_error", err.Error())
	}
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleEscrowCreate(w http.ResponseWriter, req *RPCRequest) {
	var params escrowCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	payer, err := parseBech32Address(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	payee, err := parseBech32Address(params.Payee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	rideID, err := parseRideID(params.RideID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.ledger.CreateEscrow(payer, payee, params.FeeBps, params.ReleaseDeadline, params.RefundDeadline, rideID)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowCreateResult{ID: hex.EncodeToString(esc.ID[:])})
}

func (s *Server) handleEscrowFund(w http.ResponseWriter, req *RPCRequest) {
	var params escrowFundParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseEscrowID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseBech32Address(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(params.Amount), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "amount must be a decimal integer")
		return
	}
	if err := s.ledger.FundEscrow(id, from, amount); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "funded"})
}

func (s *Server) handleEscrowApproveRelease(w http.ResponseWriter, req *RPCRequest) {
	s.handleEscrowActorTransition(w, req, s.ledger.ApproveRelease, "released")
}

func (s *Server) handleEscrowRefund(w http.ResponseWriter, req *RPCRequest) {
	s.handleEscrowActorTransition(w, req, s.ledger.RefundEscrow, "refunded")
}

func (s *Server) handleEscrowActorTransition(w http.ResponseWriter, req *RPCRequest, fn func([32]byte, [20]byte) error, status string) {
	var params escrowActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseEscrowID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(id, caller); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": status})
}

func (s *Server) handleEscrowAutoRelease(w http.ResponseWriter, req *RPCRequest) {
	s.handleEscrowTimeTransition(w, req, s.ledger.AutoRelease, "released")
}

func (s *Server) handleEscrowAutoRefund(w http.ResponseWriter, req *RPCRequest) {
	s.handleEscrowTimeTransition(w, req, s.ledger.AutoRefund, "refunded")
}

func (s *Server) handleEscrowTimeTransition(w http.ResponseWriter, req *RPCRequest, fn func([32]byte) error, status string) {
	var params escrowIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseEscrowID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(id); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": status})
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, req *RPCRequest) {
	var params escrowIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseEscrowID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.ledger.EscrowGet(id)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatEscrowJSON(esc))
}

func (s *Server) handleEscrowEvents(w http.ResponseWriter, req *RPCRequest) {
	params := escrowEventsParams{}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "at most one parameter object expected")
		return
	}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	writeResult(w, req.ID, s.ledger.Events().Replay(params.After))
}
