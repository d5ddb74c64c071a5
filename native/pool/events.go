package pool

import (
	"encoding/hex"
	"strconv"

	"nftamm/core/types"
)

// Event types emitted by the pool engine.
const (
	EventTypePoolCreated       = "amm.pool.created"
	EventTypeAllowlistsUpdated = "amm.pool.allowlists_updated"
	EventTypePoolClosed        = "amm.pool.closed"
	EventTypeEscrowSwept       = "amm.escrow.swept"
	EventTypeSellStateClosed   = "amm.sell_state.closed"
	EventTypeDepositBuy        = "amm.deposit_buy"
	EventTypeWithdrawBuy       = "amm.withdraw_buy"
	EventTypeDepositSell       = "amm.deposit_sell"
	EventTypeWithdrawSell      = "amm.withdraw_sell"
	EventTypeFulfillBuy        = "amm.fulfill_buy"
	EventTypeFulfillSell       = "amm.fulfill_sell"
)

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event returns the underlying typed event.
func (e poolEvent) Event() *types.Event { return e.evt }

func hexAddr(addr [32]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// poolAttrs snapshots the counters every operation event carries, mirroring
// the post-operation pool log of the wire protocol.
func poolAttrs(p *Pool) map[string]string {
	return map[string]string{
		"pool":                   hexAddr(p.ID()),
		"spot_price":             u64(p.SpotPrice),
		"sellside_asset_amount":  u64(p.SellsideAssetAmount),
		"buyside_payment_amount": u64(p.BuysidePaymentAmount),
		"lp_fee_earned":          u64(p.LPFeeEarned),
	}
}

func newPoolEvent(eventType string, p *Pool, extra map[string]string) *types.Event {
	attrs := poolAttrs(p)
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewPoolCreatedEvent reports a freshly persisted pool.
func NewPoolCreatedEvent(p *Pool) *types.Event {
	return newPoolEvent(EventTypePoolCreated, p, map[string]string{
		"owner":    hexAddr(p.Owner),
		"cosigner": hexAddr(p.Cosigner),
	})
}

// NewAllowlistsUpdatedEvent reports an allowlist replacement.
func NewAllowlistsUpdatedEvent(p *Pool) *types.Event {
	return newPoolEvent(EventTypeAllowlistsUpdated, p, nil)
}

// NewPoolClosedEvent reports the terminal deallocation of a pool, including
// the rent returned to the owner.
func NewPoolClosedEvent(poolID, owner [32]byte, rentReturned uint64) *types.Event {
	return &types.Event{Type: EventTypePoolClosed, Attributes: map[string]string{
		"pool":          hexAddr(poolID),
		"owner":         hexAddr(owner),
		"rent_returned": u64(rentReturned),
	}}
}

// NewEscrowSweptEvent reports a dust sweep of the buy-side escrow.
func NewEscrowSweptEvent(poolID [32]byte, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeEscrowSwept, Attributes: map[string]string{
		"pool":   hexAddr(poolID),
		"amount": u64(amount),
	}}
}

// NewSellStateClosedEvent reports a reclaimed SellState record.
func NewSellStateClosedEvent(poolID, mint [32]byte, rentReturned uint64) *types.Event {
	return &types.Event{Type: EventTypeSellStateClosed, Attributes: map[string]string{
		"pool":          hexAddr(poolID),
		"asset_mint":    hexAddr(mint),
		"rent_returned": u64(rentReturned),
	}}
}

// NewDepositBuyEvent reports buy-side liquidity entering the escrow.
func NewDepositBuyEvent(p *Pool, amount uint64) *types.Event {
	return newPoolEvent(EventTypeDepositBuy, p, map[string]string{"amount": u64(amount)})
}

// NewWithdrawBuyEvent reports buy-side liquidity leaving the escrow.
func NewWithdrawBuyEvent(p *Pool, amount uint64) *types.Event {
	return newPoolEvent(EventTypeWithdrawBuy, p, map[string]string{"amount": u64(amount)})
}

// NewDepositSellEvent reports assets entering sell-side inventory.
func NewDepositSellEvent(p *Pool, mint [32]byte, amount uint64) *types.Event {
	return newPoolEvent(EventTypeDepositSell, p, map[string]string{
		"asset_mint": hexAddr(mint),
		"amount":     u64(amount),
	})
}

// NewWithdrawSellEvent reports assets leaving sell-side inventory.
func NewWithdrawSellEvent(p *Pool, mint [32]byte, amount uint64) *types.Event {
	return newPoolEvent(EventTypeWithdrawSell, p, map[string]string{
		"asset_mint": hexAddr(mint),
		"amount":     u64(amount),
	})
}

// NewFulfillBuyEvent reports a sell-into-buy fulfillment.
func NewFulfillBuyEvent(p *Pool, mint [32]byte, totalPrice, lpFee, royaltyPaid uint64) *types.Event {
	return newPoolEvent(EventTypeFulfillBuy, p, map[string]string{
		"asset_mint":   hexAddr(mint),
		"total_price":  u64(totalPrice),
		"lp_fee":       u64(lpFee),
		"royalty_paid": u64(royaltyPaid),
	})
}

// NewFulfillSellEvent reports a buy-from-sell fulfillment.
func NewFulfillSellEvent(p *Pool, mint [32]byte, totalPrice, lpFee, royaltyPaid uint64) *types.Event {
	return newPoolEvent(EventTypeFulfillSell, p, map[string]string{
		"asset_mint":   hexAddr(mint),
		"total_price":  u64(totalPrice),
		"lp_fee":       u64(lpFee),
		"royalty_paid": u64(royaltyPaid),
	})
}
