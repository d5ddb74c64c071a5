package pool

import (
	"nftamm/native/allowlist"
	"nftamm/native/common"
	"nftamm/native/curve"
	"nftamm/native/fees"
)

// FulfillBuyArgs parameterizes a taker selling assets into the pool's
// buy-side escrow. MinPaymentAmount is the taker's slippage bound on the net
// payout; the allowlist aux string carries the metadata URI proof where the
// pool requires one.
type FulfillBuyArgs struct {
	Payer            [32]byte
	Owner            [32]byte
	Cosigner         [32]byte
	Referral         [32]byte
	PoolID           [32]byte
	AssetMint        [32]byte
	AssetAmount      uint64
	MinPaymentAmount uint64
	AllowlistAux     string
}

// FulfillSellArgs parameterizes a taker buying assets out of the pool's
// sell-side inventory. MaxPaymentAmount is the taker's slippage bound on the
// gross outlay.
type FulfillSellArgs struct {
	Payer            [32]byte
	Owner            [32]byte
	Cosigner         [32]byte
	Referral         [32]byte
	PoolID           [32]byte
	AssetMint        [32]byte
	AssetAmount      uint64
	MaxPaymentAmount uint64
	AllowlistAux     string
}

// FulfillResult reports the settled amounts of a fulfillment. SellerReceives
// is populated on sell-into-buy, BuyerOutlay and OwnerProceeds on
// buy-from-sell. Pool is nil when the fulfillment closed the pool.
type FulfillResult struct {
	TotalPrice     uint64
	LPFee          uint64
	RoyaltyPaid    uint64
	SellerReceives uint64
	BuyerOutlay    uint64
	OwnerProceeds  uint64
	PoolClosed     bool
	Pool           *Pool
}

// FulfillBuy executes a sell-into-buy trade: the payer sells AssetAmount
// units of AssetMint to the pool at the curve price and the buy-side escrow
// pays out everything except the retained LP fee. Creator royalties are paid
// pro-rata; the truncation remainder flows back to the payer so the escrow
// outflow balances exactly. Reinvesting pools keep the purchased assets as
// sell-side inventory instead of forwarding them to the owner. Every balance
// leg is staged and validated before the first write, so a rejected trade
// leaves no partial transfer behind.
func (e *Engine) FulfillBuy(args FulfillBuyArgs) (*FulfillResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(args.PoolID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(p, args.Owner, args.Cosigner); err != nil {
		return nil, err
	}
	if args.Referral != p.Referral {
		return nil, ErrInvalidReferral
	}
	if p.Expired(e.now()) {
		return nil, ErrExpired
	}
	if args.AssetAmount == 0 {
		return nil, ErrInvalidAssetAmount
	}
	meta, err := e.assetMetadata(args.AssetMint)
	if err != nil {
		return nil, err
	}
	if err := allowlist.Admit(p.Allowlists, meta, args.AllowlistAux); err != nil {
		return nil, err
	}
	total, nextSpot, err := curve.TotalSellIntoBuyPrice(p.CurveParams(), p.SpotPrice, args.AssetAmount)
	if err != nil {
		return nil, err
	}
	split, err := fees.ApportionSellIntoBuy(total, p.feeConfig(meta))
	if err != nil {
		return nil, err
	}
	payouts, royaltyPaid, err := creatorPayouts(split.Royalty, meta)
	if err != nil {
		return nil, err
	}
	// The unpaid royalty remainder stays with the seller.
	sellerReceives, err := common.SafeAdd(split.SellerReceives, split.Royalty-royaltyPaid)
	if err != nil {
		return nil, err
	}
	if sellerReceives < args.MinPaymentAmount {
		return nil, ErrInvalidRequestedPrice
	}
	escrow := p.EscrowAddress()
	stage := newBalanceStage(e.state)
	balance, err := stage.balance(escrow)
	if err != nil {
		return nil, err
	}
	if balance < total {
		return nil, ErrNotEnoughBalance
	}
	tokens, err := e.state.TokenBalance(args.Payer, args.AssetMint)
	if err != nil {
		return nil, err
	}
	if tokens < args.AssetAmount {
		return nil, ErrNotEnoughBalance
	}

	// Escrow outflow is total minus the LP fee, which never leaves escrow.
	if err := stage.debit(escrow, total-split.LPFee); err != nil {
		return nil, err
	}
	if err := stage.credit(args.Payer, sellerReceives); err != nil {
		return nil, err
	}
	if split.Referral > 0 {
		if err := stage.credit(p.Referral, split.Referral); err != nil {
			return nil, err
		}
	}
	for _, payout := range payouts {
		if err := stage.credit(payout.address, payout.amount); err != nil {
			return nil, err
		}
	}
	tokenRecipient := p.Owner
	var (
		reinvested     *SellState
		sellsideAmount uint64
	)
	if p.ReinvestFulfillBuy {
		tokenRecipient = p.ID()
		reinvested, sellsideAmount, err = e.stageReinvest(stage, p, args.Payer, args.AssetMint, args.AssetAmount)
		if err != nil {
			return nil, err
		}
	}
	if err := e.checkTokenCredit(tokenRecipient, args.AssetMint, args.AssetAmount); err != nil {
		return nil, err
	}
	lpFeeEarned, err := common.SafeAdd(p.LPFeeEarned, split.LPFee)
	if err != nil {
		return nil, err
	}

	if err := stage.commit(); err != nil {
		return nil, err
	}
	if err := e.state.TokenTransfer(args.Payer, tokenRecipient, args.AssetMint, args.AssetAmount); err != nil {
		return nil, err
	}
	if reinvested != nil {
		if err := e.state.SellStatePut(reinvested); err != nil {
			return nil, err
		}
		p.SellsideAssetAmount = sellsideAmount
	}

	p.LPFeeEarned = lpFeeEarned
	p.SpotPrice = nextSpot
	if p.BuysidePaymentAmount, err = e.state.Balance(escrow); err != nil {
		return nil, err
	}
	if _, err := e.tryCloseEscrow(p); err != nil {
		return nil, err
	}
	e.emit(NewFulfillBuyEvent(p, args.AssetMint, total, split.LPFee, royaltyPaid))
	res := &FulfillResult{
		TotalPrice:     total,
		LPFee:          split.LPFee,
		RoyaltyPaid:    royaltyPaid,
		SellerReceives: sellerReceives,
	}
	closed, err := e.tryClosePool(p)
	if err != nil {
		return nil, err
	}
	if closed {
		res.PoolClosed = true
		return res, nil
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	res.Pool = p.Clone()
	return res, nil
}

// FulfillSell executes a buy-from-sell trade: the payer buys AssetAmount
// units of AssetMint out of the pool's inventory at the curve price. The
// payer funds the gross price plus LP fee, taker fee and royalty; the owner
// receives the gross minus the maker fee, routed into the escrow when the
// pool reinvests sell proceeds. As with FulfillBuy, all balance legs are
// staged and validated before the first write.
func (e *Engine) FulfillSell(args FulfillSellArgs) (*FulfillResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(args.PoolID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(p, args.Owner, args.Cosigner); err != nil {
		return nil, err
	}
	if args.Referral != p.Referral {
		return nil, ErrInvalidReferral
	}
	if p.Expired(e.now()) {
		return nil, ErrExpired
	}
	if args.AssetAmount == 0 {
		return nil, ErrInvalidAssetAmount
	}
	meta, err := e.assetMetadata(args.AssetMint)
	if err != nil {
		return nil, err
	}
	if err := allowlist.Admit(p.Allowlists, meta, args.AllowlistAux); err != nil {
		return nil, err
	}
	sellAddr := DeriveSellStateAddress(args.PoolID, args.AssetMint)
	s, ok, err := e.state.SellStateGet(sellAddr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSellStateNotFound
	}
	if s.AssetAmount < args.AssetAmount || p.SellsideAssetAmount < args.AssetAmount {
		return nil, ErrNotEnoughBalance
	}
	total, nextSpot, err := curve.TotalBuyFromSellPrice(p.CurveParams(), p.SpotPrice, args.AssetAmount)
	if err != nil {
		return nil, err
	}
	split, err := fees.ApportionBuyFromSell(total, p.feeConfig(meta))
	if err != nil {
		return nil, err
	}
	payouts, royaltyPaid, err := creatorPayouts(split.Royalty, meta)
	if err != nil {
		return nil, err
	}
	// The unpaid royalty remainder never leaves the payer.
	outlay, err := common.SafeSub(split.BuyerOutlay, split.Royalty-royaltyPaid)
	if err != nil {
		return nil, err
	}
	if outlay > args.MaxPaymentAmount {
		return nil, ErrInvalidRequestedPrice
	}

	escrow := p.EscrowAddress()
	stage := newBalanceStage(e.state)
	if err := stage.debit(args.Payer, outlay); err != nil {
		return nil, err
	}
	proceedsTo := p.Owner
	if p.ReinvestFulfillSell {
		proceedsTo = escrow
	}
	if err := stage.credit(proceedsTo, split.OwnerProceeds); err != nil {
		return nil, err
	}
	if split.LPFee > 0 {
		if err := stage.credit(escrow, split.LPFee); err != nil {
			return nil, err
		}
	}
	if split.Referral > 0 {
		if err := stage.credit(p.Referral, split.Referral); err != nil {
			return nil, err
		}
	}
	for _, payout := range payouts {
		if err := stage.credit(payout.address, payout.amount); err != nil {
			return nil, err
		}
	}
	if err := e.checkTokenCredit(args.Payer, args.AssetMint, args.AssetAmount); err != nil {
		return nil, err
	}
	sellsideAmount, err := common.SafeSub(p.SellsideAssetAmount, args.AssetAmount)
	if err != nil {
		return nil, err
	}
	lpFeeEarned, err := common.SafeAdd(p.LPFeeEarned, split.LPFee)
	if err != nil {
		return nil, err
	}
	s = s.Clone()
	s.AssetAmount -= args.AssetAmount
	var reclaimedRent uint64
	if s.AssetAmount == 0 {
		// Reclaiming the emptied record's rent rides the same stage as the
		// trade itself.
		if reclaimedRent, err = stage.balance(sellAddr); err != nil {
			return nil, err
		}
		if reclaimedRent > 0 {
			if err := stage.debit(sellAddr, reclaimedRent); err != nil {
				return nil, err
			}
			if err := stage.credit(p.Owner, reclaimedRent); err != nil {
				return nil, err
			}
		}
	}

	if err := stage.commit(); err != nil {
		return nil, err
	}
	if err := e.state.TokenTransfer(args.PoolID, args.Payer, args.AssetMint, args.AssetAmount); err != nil {
		return nil, err
	}
	if s.AssetAmount == 0 {
		if err := e.state.SellStateDelete(sellAddr); err != nil {
			return nil, err
		}
		e.emit(NewSellStateClosedEvent(s.Pool, s.AssetMint, reclaimedRent))
	} else {
		if err := e.state.SellStatePut(s); err != nil {
			return nil, err
		}
	}

	p.SellsideAssetAmount = sellsideAmount
	p.LPFeeEarned = lpFeeEarned
	p.SpotPrice = nextSpot
	if p.BuysidePaymentAmount, err = e.state.Balance(escrow); err != nil {
		return nil, err
	}
	if _, err := e.tryCloseEscrow(p); err != nil {
		return nil, err
	}
	e.emit(NewFulfillSellEvent(p, args.AssetMint, total, split.LPFee, royaltyPaid))
	res := &FulfillResult{
		TotalPrice:    total,
		LPFee:         split.LPFee,
		RoyaltyPaid:   royaltyPaid,
		BuyerOutlay:   outlay,
		OwnerProceeds: split.OwnerProceeds,
	}
	closed, err := e.tryClosePool(p)
	if err != nil {
		return nil, err
	}
	if closed {
		res.PoolClosed = true
		return res, nil
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	res.Pool = p.Clone()
	return res, nil
}

// stageReinvest prepares the sell-side custody bookkeeping for a reinvesting
// buy-side fulfillment: the SellState record to persist (created on first use
// with rent staged from the payer) and the pool's new inventory total. It
// writes nothing; the caller persists the record after the stage commits.
func (e *Engine) stageReinvest(stage *balanceStage, p *Pool, payer, mint [32]byte, amount uint64) (*SellState, uint64, error) {
	sellAddr := DeriveSellStateAddress(p.ID(), mint)
	s, ok, err := e.state.SellStateGet(sellAddr)
	if err != nil {
		return nil, 0, err
	}
	if ok {
		s = s.Clone()
	} else {
		rent := e.rent.MinimumBalance(SellStateLen)
		if err := stage.debit(payer, rent); err != nil {
			return nil, 0, err
		}
		if err := stage.credit(sellAddr, rent); err != nil {
			return nil, 0, err
		}
		s = &SellState{
			Pool:               p.ID(),
			PoolOwner:          p.Owner,
			AssetMint:          mint,
			CosignerAnnotation: p.CosignerAnnotation,
		}
	}
	if s.AssetAmount, err = common.SafeAdd(s.AssetAmount, amount); err != nil {
		return nil, 0, err
	}
	total, err := common.SafeAdd(p.SellsideAssetAmount, amount)
	if err != nil {
		return nil, 0, err
	}
	return s, total, nil
}
