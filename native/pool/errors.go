package pool

import "errors"

// Precondition failures surfaced verbatim to callers. Every failure aborts
// the whole operation with no state change.
var (
	ErrInvalidCosigner       = errors.New("invalid cosigner")
	ErrInvalidOwner          = errors.New("invalid owner")
	ErrInvalidReferral       = errors.New("invalid referral")
	ErrInvalidRequestedPrice = errors.New("invalid requested price")
	ErrExpired               = errors.New("expired")
	ErrNotEnoughBalance      = errors.New("not enough balance")
	ErrInvalidAssetAmount    = errors.New("invalid asset amount")
	ErrInvalidPaymentAmount  = errors.New("invalid payment amount")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrPoolExists            = errors.New("pool already exists")
	ErrSellStateNotFound     = errors.New("sell state not found")
)
