package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"fareledger/core/types"
)

const (
	EventTypeCreated  = "escrow.created"
	EventTypeFunded   = "escrow.funded"
	EventTypeReleased = "escrow.released"
	EventTypeRefunded = "escrow.refunded"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow entry.
func NewCreatedEvent(e *Escrow) *types.Event {
	attrs := baseAttributes(e)
	if e != nil {
		attrs["feeBps"] = strconv.FormatUint(uint64(e.FeeBps), 10)
		attrs["releaseDeadline"] = strconv.FormatInt(e.ReleaseDelay, 10)
		attrs["refundDeadline"] = strconv.FormatInt(e.RefundDelay, 10)
		attrs["timestamp"] = strconv.FormatInt(e.CreatedAt, 10)
	}
	return &types.Event{Type: EventTypeCreated, Attributes: attrs}
}

// NewFundedEvent returns the canonical event payload emitted when the payer
// funds the entry.
func NewFundedEvent(e *Escrow, timestamp int64) *types.Event {
	attrs := baseAttributes(e)
	if e != nil {
		attrs["amount"] = bigString(e.Balance)
	}
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeFunded, Attributes: attrs}
}

// NewReleasedEvent returns the canonical event payload for a settlement in
// favour of the payee. The amounts carried are the exact split at settlement
// time, so observers can verify conservation without re-deriving the fee.
func NewReleasedEvent(e *Escrow, payeeAmount, fee *big.Int, timestamp int64) *types.Event {
	attrs := baseAttributes(e)
	attrs["payeeAmount"] = bigString(payeeAmount)
	attrs["fee"] = bigString(fee)
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeReleased, Attributes: attrs}
}

// NewRefundedEvent returns the canonical event payload for a full return of
// funds to the payer.
func NewRefundedEvent(e *Escrow, amount *big.Int, timestamp int64) *types.Event {
	attrs := baseAttributes(e)
	attrs["amount"] = bigString(amount)
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeRefunded, Attributes: attrs}
}

func baseAttributes(e *Escrow) map[string]string {
	attrs := make(map[string]string)
	if e == nil {
		return attrs
	}
	attrs["id"] = hex.EncodeToString(e.ID[:])
	attrs["payer"] = hex.EncodeToString(e.Payer[:])
	attrs["payee"] = hex.EncodeToString(e.Payee[:])
	return attrs
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
