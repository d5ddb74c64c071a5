// Package state persists the ledger consumed by the pool engine: pool
// records, sell-side inventory records, currency accounts, token balances and
// the registered asset metadata. All records live in one key-value database
// under per-namespace prefixes.
package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	"nftamm/core/types"
	"nftamm/native/allowlist"
	"nftamm/native/common"
	"nftamm/native/curve"
	"nftamm/native/pool"
	"nftamm/storage"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAssetNotFound       = errors.New("asset metadata not found")
)

// Manager is the storage-backed implementation of the pool engine's state
// surface. The engine serializes operations, so the manager performs no
// locking of its own.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager backed by the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// storedPool shadows pool.Pool for RLP, which has no signed integers. The
// allowlist array travels as a slice of exactly MaxSlots entries.
type storedPool struct {
	UUID                    [16]byte
	Owner                   [32]byte
	Cosigner                [32]byte
	Referral                [32]byte
	Expiry                  uint64
	CurveKind               uint8
	CurveDelta              uint64
	SpotPrice               uint64
	LPFeeBp                 uint32
	TakerFeeBp              uint32
	MakerFeeBp              uint32
	BuysideCreatorRoyaltyBp uint32
	ReinvestFulfillBuy      bool
	ReinvestFulfillSell     bool
	Allowlists              []storedSlot
	SellsideAssetAmount     uint64
	BuysidePaymentAmount    uint64
	LPFeeEarned             uint64
	CosignerAnnotation      [32]byte
}

type storedSlot struct {
	Kind  uint8
	Value [32]byte
}

func toStoredPool(p *pool.Pool) *storedPool {
	stored := &storedPool{
		UUID:                    [16]byte(p.UUID),
		Owner:                   p.Owner,
		Cosigner:                p.Cosigner,
		Referral:                p.Referral,
		Expiry:                  uint64(p.Expiry),
		CurveKind:               uint8(p.CurveKind),
		CurveDelta:              p.CurveDelta,
		SpotPrice:               p.SpotPrice,
		LPFeeBp:                 p.LPFeeBp,
		TakerFeeBp:              p.TakerFeeBp,
		MakerFeeBp:              p.MakerFeeBp,
		BuysideCreatorRoyaltyBp: p.BuysideCreatorRoyaltyBp,
		ReinvestFulfillBuy:      p.ReinvestFulfillBuy,
		ReinvestFulfillSell:     p.ReinvestFulfillSell,
		SellsideAssetAmount:     p.SellsideAssetAmount,
		BuysidePaymentAmount:    p.BuysidePaymentAmount,
		LPFeeEarned:             p.LPFeeEarned,
		CosignerAnnotation:      p.CosignerAnnotation,
	}
	stored.Allowlists = make([]storedSlot, allowlist.MaxSlots)
	for i, slot := range p.Allowlists {
		stored.Allowlists[i] = storedSlot{Kind: uint8(slot.Kind), Value: slot.Value}
	}
	return stored
}

func (s *storedPool) toPool() (*pool.Pool, error) {
	if len(s.Allowlists) != allowlist.MaxSlots {
		return nil, fmt.Errorf("corrupt pool record: %d allowlist slots", len(s.Allowlists))
	}
	p := &pool.Pool{
		UUID:                    uuid.UUID(s.UUID),
		Owner:                   s.Owner,
		Cosigner:                s.Cosigner,
		Referral:                s.Referral,
		Expiry:                  int64(s.Expiry),
		CurveKind:               curve.Kind(s.CurveKind),
		CurveDelta:              s.CurveDelta,
		SpotPrice:               s.SpotPrice,
		LPFeeBp:                 s.LPFeeBp,
		TakerFeeBp:              s.TakerFeeBp,
		MakerFeeBp:              s.MakerFeeBp,
		BuysideCreatorRoyaltyBp: s.BuysideCreatorRoyaltyBp,
		ReinvestFulfillBuy:      s.ReinvestFulfillBuy,
		ReinvestFulfillSell:     s.ReinvestFulfillSell,
		SellsideAssetAmount:     s.SellsideAssetAmount,
		BuysidePaymentAmount:    s.BuysidePaymentAmount,
		LPFeeEarned:             s.LPFeeEarned,
		CosignerAnnotation:      s.CosignerAnnotation,
	}
	for i, slot := range s.Allowlists {
		p.Allowlists[i] = allowlist.Slot{Kind: allowlist.Kind(slot.Kind), Value: slot.Value}
	}
	return p, nil
}

// PoolGet loads a pool record.
func (m *Manager) PoolGet(id [32]byte) (*pool.Pool, bool, error) {
	raw, err := m.db.Get(poolKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored := new(storedPool)
	if err := rlp.DecodeBytes(raw, stored); err != nil {
		return nil, false, fmt.Errorf("decode pool: %w", err)
	}
	p, err := stored.toPool()
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// PoolPut persists a pool record.
func (m *Manager) PoolPut(p *pool.Pool) error {
	if p == nil {
		return fmt.Errorf("nil pool")
	}
	encoded, err := rlp.EncodeToBytes(toStoredPool(p))
	if err != nil {
		return err
	}
	return m.db.Put(poolKey(p.ID()), encoded)
}

// PoolDelete removes a pool record.
func (m *Manager) PoolDelete(id [32]byte) error {
	return m.db.Delete(poolKey(id))
}

// SellStateGet loads a sell-side inventory record by its derived address.
func (m *Manager) SellStateGet(addr [32]byte) (*pool.SellState, bool, error) {
	raw, err := m.db.Get(sellStateKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s, err := pool.DecodeSellState(raw)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// SellStatePut persists a sell-side inventory record in its fixed wire
// layout.
func (m *Manager) SellStatePut(s *pool.SellState) error {
	if s == nil {
		return fmt.Errorf("nil sell state")
	}
	encoded, err := pool.EncodeSellState(s)
	if err != nil {
		return err
	}
	return m.db.Put(sellStateKey(pool.DeriveSellStateAddress(s.Pool, s.AssetMint)), encoded)
}

// SellStateDelete removes a sell-side inventory record.
func (m *Manager) SellStateDelete(addr [32]byte) error {
	return m.db.Delete(sellStateKey(addr))
}

func (m *Manager) getAccount(addr [32]byte) (*types.Account, error) {
	raw, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{}, nil
	}
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	if err := rlp.DecodeBytes(raw, account); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return account, nil
}

func (m *Manager) putAccount(addr [32]byte, account *types.Account) error {
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}

// Balance reports the currency balance of an address. Unknown addresses have
// a zero balance.
func (m *Manager) Balance(addr [32]byte) (uint64, error) {
	account, err := m.getAccount(addr)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Credit adds to an address's currency balance.
func (m *Manager) Credit(addr [32]byte, amount uint64) error {
	account, err := m.getAccount(addr)
	if err != nil {
		return err
	}
	if account.Balance, err = common.SafeAdd(account.Balance, amount); err != nil {
		return err
	}
	return m.putAccount(addr, account)
}

// Debit subtracts from an address's currency balance.
func (m *Manager) Debit(addr [32]byte, amount uint64) error {
	account, err := m.getAccount(addr)
	if err != nil {
		return err
	}
	if account.Balance < amount {
		return fmt.Errorf("%w: balance %d, debit %d", ErrInsufficientBalance, account.Balance, amount)
	}
	account.Balance -= amount
	return m.putAccount(addr, account)
}

// TokenBalance reports how many units of a mint an address holds.
func (m *Manager) TokenBalance(owner, mint [32]byte) (uint64, error) {
	raw, err := m.db.Get(tokenKey(owner, mint))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var balance uint64
	if err := rlp.DecodeBytes(raw, &balance); err != nil {
		return 0, fmt.Errorf("decode token balance: %w", err)
	}
	return balance, nil
}

func (m *Manager) setTokenBalance(owner, mint [32]byte, balance uint64) error {
	if balance == 0 {
		return m.db.Delete(tokenKey(owner, mint))
	}
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return m.db.Put(tokenKey(owner, mint), encoded)
}

// TokenTransfer moves units of a mint between addresses. The transfer is
// all-or-nothing.
func (m *Manager) TokenTransfer(from, to, mint [32]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromBalance, err := m.TokenBalance(from, mint)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: token balance %d, transfer %d", ErrInsufficientBalance, fromBalance, amount)
	}
	toBalance, err := m.TokenBalance(to, mint)
	if err != nil {
		return err
	}
	if toBalance, err = common.SafeAdd(toBalance, amount); err != nil {
		return err
	}
	if err := m.setTokenBalance(from, mint, fromBalance-amount); err != nil {
		return err
	}
	return m.setTokenBalance(to, mint, toBalance)
}

// MintTokens credits units of a mint to an address with no source account.
func (m *Manager) MintTokens(owner, mint [32]byte, amount uint64) error {
	balance, err := m.TokenBalance(owner, mint)
	if err != nil {
		return err
	}
	if balance, err = common.SafeAdd(balance, amount); err != nil {
		return err
	}
	return m.setTokenBalance(owner, mint, balance)
}

// storedAsset shadows allowlist.Metadata for RLP; the optional group pointer
// travels as a flag plus two addresses.
type storedAsset struct {
	Mint               [32]byte
	Creators           []storedCreator
	Collection         [32]byte
	CollectionVerified bool
	URI                string
	SellerFeeBp        uint32
	HasGroup           bool
	GroupMember        [32]byte
	Group              [32]byte
}

type storedCreator struct {
	Address  [32]byte
	Verified bool
	Share    uint8
}

// RegisterAssetMetadata stores the oracle view of an asset, replacing any
// previous record for the mint.
func (m *Manager) RegisterAssetMetadata(meta *allowlist.Metadata) error {
	if meta == nil {
		return fmt.Errorf("nil asset metadata")
	}
	if meta.SellerFeeBp > common.BasisPointMax {
		return fmt.Errorf("seller fee %d exceeds %d bp", meta.SellerFeeBp, common.BasisPointMax)
	}
	stored := &storedAsset{
		Mint:               meta.Mint,
		Collection:         meta.Collection,
		CollectionVerified: meta.CollectionVerified,
		URI:                meta.URI,
		SellerFeeBp:        meta.SellerFeeBp,
	}
	for _, c := range meta.Creators {
		stored.Creators = append(stored.Creators, storedCreator{Address: c.Address, Verified: c.Verified, Share: c.Share})
	}
	if meta.Group != nil {
		stored.HasGroup = true
		stored.GroupMember = meta.Group.Member
		stored.Group = meta.Group.Group
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.db.Put(assetKey(meta.Mint), encoded)
}

// AssetMetadata resolves a registered asset record. It implements
// allowlist.Source.
func (m *Manager) AssetMetadata(mint [32]byte) (*allowlist.Metadata, error) {
	raw, err := m.db.Get(assetKey(mint))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	stored := new(storedAsset)
	if err := rlp.DecodeBytes(raw, stored); err != nil {
		return nil, fmt.Errorf("decode asset metadata: %w", err)
	}
	meta := &allowlist.Metadata{
		Mint:               stored.Mint,
		Collection:         stored.Collection,
		CollectionVerified: stored.CollectionVerified,
		URI:                stored.URI,
		SellerFeeBp:        stored.SellerFeeBp,
	}
	for _, c := range stored.Creators {
		meta.Creators = append(meta.Creators, allowlist.Creator{Address: c.Address, Verified: c.Verified, Share: c.Share})
	}
	if stored.HasGroup {
		meta.Group = &allowlist.GroupMembership{Member: stored.GroupMember, Group: stored.Group}
	}
	return meta, nil
}
