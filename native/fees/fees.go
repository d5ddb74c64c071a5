// Package fees computes the multi-party split applied to every fulfillment.
// All rates are basis points of the gross price and every division truncates,
// so the evaluation order here is part of the wire contract: lp, taker and
// maker fees are each taken off the gross independently, then the creator
// royalty is a double basis-point product (the asset's recorded rate scaled by
// the pool's buyside royalty fraction), truncating after each multiplication.
package fees

import (
	"errors"

	"nftamm/native/common"
)

var (
	ErrInvalidLPFee = errors.New("lp fee bp must be between 0 and 10000")
	ErrInvalidBP    = errors.New("invalid bp")
)

// Config carries the rates applied to a single fulfillment. LPFeeBp,
// TakerFeeBp, MakerFeeBp and BuysideCreatorRoyaltyBp come from the pool;
// RoyaltyBp is the asset's recorded royalty rate from its metadata.
type Config struct {
	LPFeeBp                 uint32
	TakerFeeBp              uint32
	MakerFeeBp              uint32
	RoyaltyBp               uint32
	BuysideCreatorRoyaltyBp uint32
}

// Validate rejects any rate outside [0, 10000].
func (c Config) Validate() error {
	if c.LPFeeBp > common.BasisPointMax {
		return ErrInvalidLPFee
	}
	for _, bp := range []uint32{c.TakerFeeBp, c.MakerFeeBp, c.RoyaltyBp, c.BuysideCreatorRoyaltyBp} {
		if bp > common.BasisPointMax {
			return ErrInvalidBP
		}
	}
	return nil
}

// Split is the computed apportionment of one fulfillment's gross price.
// Referral is always TakerFee+MakerFee. Royalty is the creator pot before any
// pro-rata distribution among individual creators.
type Split struct {
	LPFee    uint64
	TakerFee uint64
	MakerFee uint64
	Royalty  uint64
	Referral uint64
}

// SellIntoBuySplit extends Split with the seller-side payout: the external
// party sells an asset into the pool and is the fee-paying taker.
type SellIntoBuySplit struct {
	Split
	// SellerReceives is gross minus every fee and the royalty.
	SellerReceives uint64
}

// BuyFromSellSplit extends Split for the inverse direction: the external party
// buys from the pool's inventory and is the fee-paying taker. The maker fee is
// deducted from the pool owner's proceeds instead of added to the buyer's
// outlay; collapsing the two directions into one formula would silently move
// who bears it.
type BuyFromSellSplit struct {
	Split
	// OwnerProceeds is gross minus the maker fee.
	OwnerProceeds uint64
	// BuyerOutlay is gross plus the lp fee, taker fee and royalty.
	BuyerOutlay uint64
}

func (c Config) base(gross uint64) (Split, error) {
	var (
		s   Split
		err error
	)
	if err = c.Validate(); err != nil {
		return Split{}, err
	}
	if s.LPFee, err = common.BpShare(gross, c.LPFeeBp); err != nil {
		return Split{}, err
	}
	if s.TakerFee, err = common.BpShare(gross, c.TakerFeeBp); err != nil {
		return Split{}, err
	}
	if s.MakerFee, err = common.BpShare(gross, c.MakerFeeBp); err != nil {
		return Split{}, err
	}
	assetRoyalty, err := common.BpShare(gross, c.RoyaltyBp)
	if err != nil {
		return Split{}, err
	}
	if s.Royalty, err = common.BpShare(assetRoyalty, c.BuysideCreatorRoyaltyBp); err != nil {
		return Split{}, err
	}
	if s.Referral, err = common.SafeAdd(s.TakerFee, s.MakerFee); err != nil {
		return Split{}, err
	}
	return s, nil
}

// ApportionSellIntoBuy splits the gross price of a sell-into-buy fulfillment.
// It fails with ErrNumericOverflow when the fees exceed the gross, i.e. the
// seller payout would be negative.
func ApportionSellIntoBuy(gross uint64, cfg Config) (SellIntoBuySplit, error) {
	base, err := cfg.base(gross)
	if err != nil {
		return SellIntoBuySplit{}, err
	}
	receives := gross
	for _, cut := range []uint64{base.LPFee, base.TakerFee, base.MakerFee, base.Royalty} {
		if receives, err = common.SafeSub(receives, cut); err != nil {
			return SellIntoBuySplit{}, err
		}
	}
	return SellIntoBuySplit{Split: base, SellerReceives: receives}, nil
}

// ApportionBuyFromSell splits the gross price of a buy-from-sell fulfillment.
func ApportionBuyFromSell(gross uint64, cfg Config) (BuyFromSellSplit, error) {
	base, err := cfg.base(gross)
	if err != nil {
		return BuyFromSellSplit{}, err
	}
	proceeds, err := common.SafeSub(gross, base.MakerFee)
	if err != nil {
		return BuyFromSellSplit{}, err
	}
	outlay := gross
	for _, add := range []uint64{base.LPFee, base.TakerFee, base.Royalty} {
		if outlay, err = common.SafeAdd(outlay, add); err != nil {
			return BuyFromSellSplit{}, err
		}
	}
	return BuyFromSellSplit{Split: base, OwnerProceeds: proceeds, BuyerOutlay: outlay}, nil
}
