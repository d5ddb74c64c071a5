// Package pool implements the pool ledger: the aggregate record every other
// component reads and mutates, and the orchestration of the end-to-end
// fulfillment transition. Each operation runs as a single all-or-nothing
// transition against one pool's state; the engine serializes operations and
// checks every precondition before the first mutation.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"nftamm/core/events"
	"nftamm/core/types"
	"nftamm/native/allowlist"
	"nftamm/native/common"
	"nftamm/native/curve"
	"nftamm/native/fees"
)

var (
	errNilState    = errors.New("pool engine: state not configured")
	errNilMetadata = errors.New("pool engine: metadata source not configured")
)

// engineState is the persistence and transfer surface consumed by the engine.
// TokenTransfer is the external asset-transfer primitive: it either moves the
// full amount between custody accounts or fails with no partial state.
type engineState interface {
	PoolGet(id [32]byte) (*Pool, bool, error)
	PoolPut(p *Pool) error
	PoolDelete(id [32]byte) error

	SellStateGet(addr [32]byte) (*SellState, bool, error)
	SellStatePut(s *SellState) error
	SellStateDelete(addr [32]byte) error

	Balance(addr [32]byte) (uint64, error)
	Credit(addr [32]byte, amount uint64) error
	Debit(addr [32]byte, amount uint64) error

	TokenBalance(owner, mint [32]byte) (uint64, error)
	TokenTransfer(from, to, mint [32]byte, amount uint64) error
}

// Engine wires the pool ledger business logic with external state, the rent
// oracle, the asset metadata oracle and event emission.
type Engine struct {
	mu       sync.Mutex
	state    engineState
	emitter  events.Emitter
	rent     RentOracle
	metadata allowlist.Source
	nowFn    func() int64
}

// NewEngine constructs a pool engine with a no-op emitter and the standard
// rent oracle. Callers must configure a state backend and a metadata source.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		rent:    StandardRent{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetMetadataSource configures the asset metadata oracle.
func (e *Engine) SetMetadataSource(src allowlist.Source) { e.metadata = src }

// SetRentOracle overrides the rent oracle. Passing nil restores the standard
// parameters.
func (e *Engine) SetRentOracle(r RentOracle) {
	if r == nil {
		e.rent = StandardRent{}
		return
	}
	e.rent = r
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(poolEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadPool(id [32]byte) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, ok, err := e.state.PoolGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || p == nil {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

func (e *Engine) authorize(p *Pool, owner, cosigner [32]byte) error {
	if p.Owner != owner {
		return ErrInvalidOwner
	}
	if p.Cosigner != cosigner {
		return ErrInvalidCosigner
	}
	return nil
}

func (e *Engine) assetMetadata(mint [32]byte) (*allowlist.Metadata, error) {
	if e.metadata == nil {
		return nil, errNilMetadata
	}
	meta, err := e.metadata.AssetMetadata(mint)
	if err != nil {
		return nil, fmt.Errorf("pool engine: asset metadata: %w", err)
	}
	return meta, nil
}

func (p *Pool) feeConfig(meta *allowlist.Metadata) fees.Config {
	cfg := fees.Config{
		LPFeeBp:                 p.LPFeeBp,
		TakerFeeBp:              p.TakerFeeBp,
		MakerFeeBp:              p.MakerFeeBp,
		BuysideCreatorRoyaltyBp: p.BuysideCreatorRoyaltyBp,
	}
	if meta != nil {
		cfg.RoyaltyBp = meta.SellerFeeBp
	}
	return cfg
}

type creatorPayout struct {
	address [32]byte
	amount  uint64
}

// creatorPayouts splits the royalty pot pro-rata by creator share. Truncation
// remainders are not paid out; callers return them to the fee payer so every
// trade still balances to the lamport.
func creatorPayouts(pot uint64, meta *allowlist.Metadata) ([]creatorPayout, uint64, error) {
	if pot == 0 || meta == nil || len(meta.Creators) == 0 {
		return nil, 0, nil
	}
	var (
		payouts []creatorPayout
		paid    uint64
	)
	for _, c := range meta.Creators {
		amount, err := common.Share(pot, uint64(c.Share), 100)
		if err != nil {
			return nil, 0, err
		}
		if amount == 0 {
			continue
		}
		payouts = append(payouts, creatorPayout{address: c.Address, amount: amount})
		if paid, err = common.SafeAdd(paid, amount); err != nil {
			return nil, 0, err
		}
	}
	if paid > pot {
		return nil, 0, common.ErrNumericOverflow
	}
	return payouts, paid, nil
}

// CreatePoolArgs carries the full configuration of a new pool.
type CreatePoolArgs struct {
	UUID     uuid.UUID
	Owner    [32]byte
	Cosigner [32]byte
	Referral [32]byte
	Expiry   int64

	CurveKind  curve.Kind
	CurveDelta uint64
	SpotPrice  uint64

	LPFeeBp                 uint32
	TakerFeeBp              uint32
	MakerFeeBp              uint32
	BuysideCreatorRoyaltyBp uint32

	ReinvestFulfillBuy  bool
	ReinvestFulfillSell bool

	Allowlists         allowlist.List
	CosignerAnnotation [32]byte
}

// CreatePool validates and persists a new pool. The owner funds the pool
// record's rent.
func (e *Engine) CreatePool(args CreatePoolArgs) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if args.Cosigner == ([32]byte{}) || args.Cosigner == args.Owner {
		return nil, ErrInvalidCosigner
	}
	cfg := fees.Config{
		LPFeeBp:                 args.LPFeeBp,
		TakerFeeBp:              args.TakerFeeBp,
		MakerFeeBp:              args.MakerFeeBp,
		BuysideCreatorRoyaltyBp: args.BuysideCreatorRoyaltyBp,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := curve.Validate(curve.Params{Kind: args.CurveKind, Delta: args.CurveDelta}); err != nil {
		return nil, err
	}
	if err := allowlist.Check(args.Allowlists); err != nil {
		return nil, err
	}
	if args.Expiry != 0 && args.Expiry <= e.now() {
		return nil, ErrExpired
	}
	p := &Pool{
		UUID:                    args.UUID,
		Owner:                   args.Owner,
		Cosigner:                args.Cosigner,
		Referral:                args.Referral,
		Expiry:                  args.Expiry,
		CurveKind:               args.CurveKind,
		CurveDelta:              args.CurveDelta,
		SpotPrice:               args.SpotPrice,
		LPFeeBp:                 args.LPFeeBp,
		TakerFeeBp:              args.TakerFeeBp,
		MakerFeeBp:              args.MakerFeeBp,
		BuysideCreatorRoyaltyBp: args.BuysideCreatorRoyaltyBp,
		ReinvestFulfillBuy:      args.ReinvestFulfillBuy,
		ReinvestFulfillSell:     args.ReinvestFulfillSell,
		Allowlists:              args.Allowlists,
		CosignerAnnotation:      args.CosignerAnnotation,
	}
	id := p.ID()
	if _, ok, err := e.state.PoolGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrPoolExists
	}
	if err := e.transferBalance(args.Owner, id, e.rent.MinimumBalance(PoolLen)); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	e.emit(NewPoolCreatedEvent(p))
	return p.Clone(), nil
}

// UpdateAllowlists replaces a pool's allowlist. Only the cosigner may invoke
// it; the owner is part of the pool's identity, not a required signer here.
func (e *Engine) UpdateAllowlists(cosigner, poolID [32]byte, lists allowlist.List) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if p.Cosigner != cosigner {
		return nil, ErrInvalidCosigner
	}
	if err := allowlist.Check(lists); err != nil {
		return nil, err
	}
	p.Allowlists = lists
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	e.emit(NewAllowlistsUpdatedEvent(p))
	return p.Clone(), nil
}

// DepositBuy credits the buy-side escrow from the owner's balance.
func (e *Engine) DepositBuy(owner, cosigner, poolID [32]byte, amount uint64) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(p, owner, cosigner); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidPaymentAmount
	}
	escrow := p.EscrowAddress()
	if err := e.transferBalance(owner, escrow, amount); err != nil {
		return nil, err
	}
	if p.BuysidePaymentAmount, err = e.state.Balance(escrow); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	e.emit(NewDepositBuyEvent(p, amount))
	return p.Clone(), nil
}

// WithdrawBuy debits the buy-side escrow to the owner, then applies the
// escrow lifecycle rules: a withdrawal that would leave dust on a pool with
// no inventory sweeps the whole balance and may close the pool.
func (e *Engine) WithdrawBuy(owner, cosigner, poolID [32]byte, amount uint64) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(p, owner, cosigner); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidPaymentAmount
	}
	escrow := p.EscrowAddress()
	balance, err := e.state.Balance(escrow)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrNotEnoughBalance
	}
	remaining := balance - amount
	if p.SellsideAssetAmount == 0 && remaining < e.sweepThreshold(p) {
		// Dust sweep: the whole remaining escrow goes to the owner, not just
		// the requested amount. The event reports the full swept balance,
		// matching the sweep on the fulfillment path.
		if err := e.transferBalance(escrow, owner, balance); err != nil {
			return nil, err
		}
		p.BuysidePaymentAmount = 0
		e.emit(NewEscrowSweptEvent(poolID, balance))
	} else {
		if err := e.transferBalance(escrow, owner, amount); err != nil {
			return nil, err
		}
		p.BuysidePaymentAmount = remaining
	}
	e.emit(NewWithdrawBuyEvent(p, amount))
	closed, err := e.tryClosePool(p)
	if err != nil {
		return nil, err
	}
	if closed {
		return p.Clone(), nil
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// DepositSellArgs parameterizes a sell-side inventory deposit.
type DepositSellArgs struct {
	Owner        [32]byte
	Cosigner     [32]byte
	PoolID       [32]byte
	AssetMint    [32]byte
	AssetAmount  uint64
	AllowlistAux string
}

// DepositSell admits an asset through the allowlist and moves it into the
// pool's sell-side custody, creating the SellState record on first deposit.
func (e *Engine) DepositSell(args DepositSellArgs) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(args.PoolID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(p, args.Owner, args.Cosigner); err != nil {
		return nil, err
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
	tokens, err := e.state.TokenBalance(args.Owner, args.AssetMint)
	if err != nil {
		return nil, err
	}
	if tokens < args.AssetAmount {
		return nil, ErrNotEnoughBalance
	}
	sellAddr := DeriveSellStateAddress(args.PoolID, args.AssetMint)
	s, ok, err := e.state.SellStateGet(sellAddr)
	if err != nil {
		return nil, err
	}
	stage := newBalanceStage(e.state)
	if ok {
		s = s.Clone()
	} else {
		rent := e.rent.MinimumBalance(SellStateLen)
		if err := stage.debit(args.Owner, rent); err != nil {
			return nil, err
		}
		if err := stage.credit(sellAddr, rent); err != nil {
			return nil, err
		}
		s = &SellState{
			Pool:               args.PoolID,
			PoolOwner:          p.Owner,
			AssetMint:          args.AssetMint,
			CosignerAnnotation: p.CosignerAnnotation,
		}
	}
	newAmount, err := common.SafeAdd(s.AssetAmount, args.AssetAmount)
	if err != nil {
		return nil, err
	}
	newTotal, err := common.SafeAdd(p.SellsideAssetAmount, args.AssetAmount)
	if err != nil {
		return nil, err
	}
	if err := e.checkTokenCredit(args.PoolID, args.AssetMint, args.AssetAmount); err != nil {
		return nil, err
	}
	if err := stage.commit(); err != nil {
		return nil, err
	}
	if err := e.state.TokenTransfer(args.Owner, args.PoolID, args.AssetMint, args.AssetAmount); err != nil {
		return nil, err
	}
	s.AssetAmount = newAmount
	p.SellsideAssetAmount = newTotal
	if err := e.state.SellStatePut(s); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	e.emit(NewDepositSellEvent(p, args.AssetMint, args.AssetAmount))
	return p.Clone(), nil
}

// WithdrawSellArgs parameterizes a sell-side inventory withdrawal.
type WithdrawSellArgs struct {
	Owner       [32]byte
	Cosigner    [32]byte
	PoolID      [32]byte
	AssetMint   [32]byte
	AssetAmount uint64
}

// WithdrawSell returns inventory to the owner, reclaims the SellState record
// when it empties, and re-evaluates the escrow lifecycle.
func (e *Engine) WithdrawSell(args WithdrawSellArgs) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(args.PoolID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(p, args.Owner, args.Cosigner); err != nil {
		return nil, err
	}
	if args.AssetAmount == 0 {
		return nil, ErrInvalidAssetAmount
	}
	sellAddr := DeriveSellStateAddress(args.PoolID, args.AssetMint)
	s, ok, err := e.state.SellStateGet(sellAddr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSellStateNotFound
	}
	if s.AssetAmount < args.AssetAmount {
		return nil, ErrNotEnoughBalance
	}
	newTotal, err := common.SafeSub(p.SellsideAssetAmount, args.AssetAmount)
	if err != nil {
		return nil, err
	}
	if err := e.checkTokenCredit(args.Owner, args.AssetMint, args.AssetAmount); err != nil {
		return nil, err
	}
	if err := e.state.TokenTransfer(args.PoolID, args.Owner, args.AssetMint, args.AssetAmount); err != nil {
		return nil, err
	}
	s.AssetAmount -= args.AssetAmount
	p.SellsideAssetAmount = newTotal
	if s.AssetAmount == 0 {
		if err := e.closeSellState(s, args.Owner); err != nil {
			return nil, err
		}
	} else {
		if err := e.state.SellStatePut(s); err != nil {
			return nil, err
		}
	}
	if _, err := e.tryCloseEscrow(p); err != nil {
		return nil, err
	}
	e.emit(NewWithdrawSellEvent(p, args.AssetMint, args.AssetAmount))
	closed, err := e.tryClosePool(p)
	if err != nil {
		return nil, err
	}
	if closed {
		return p.Clone(), nil
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Pool returns a snapshot of the stored pool.
func (e *Engine) Pool(id [32]byte) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// SellState returns a snapshot of the stored record for a (pool, asset) pair.
func (e *Engine) SellState(poolID, mint [32]byte) (*SellState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	s, ok, err := e.state.SellStateGet(DeriveSellStateAddress(poolID, mint))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSellStateNotFound
	}
	return s.Clone(), nil
}
