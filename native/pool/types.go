package pool

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"nftamm/native/allowlist"
	"nftamm/native/curve"
)

// Derivation seeds for the deterministic addresses owned by a pool. Every
// child account is derived from the pool identifier so authority can be
// checked without extra lookups.
const (
	poolSeed      = "mmm_pool"
	escrowSeed    = "mmm_buyside_sol_escrow_account"
	sellStateSeed = "mmm_sell_state"
)

// Pool is the central record of one liquidity position. The pool owns its
// buy-side escrow and every SellState derived from it; SellsideAssetAmount and
// BuysidePaymentAmount are updated atomically with every transfer that
// changes them.
type Pool struct {
	UUID     uuid.UUID
	Owner    [32]byte
	Cosigner [32]byte
	Referral [32]byte
	// Expiry is a unix timestamp after which fulfillments are rejected.
	// Zero means the pool never expires.
	Expiry int64

	CurveKind  curve.Kind
	CurveDelta uint64
	SpotPrice  uint64

	LPFeeBp                 uint32
	TakerFeeBp              uint32
	MakerFeeBp              uint32
	BuysideCreatorRoyaltyBp uint32

	ReinvestFulfillBuy  bool
	ReinvestFulfillSell bool

	Allowlists allowlist.List

	SellsideAssetAmount  uint64
	BuysidePaymentAmount uint64
	LPFeeEarned          uint64

	CosignerAnnotation [32]byte
}

// ID returns the pool's deterministic identifier, derived from the owner and
// the creation UUID.
func (p *Pool) ID() [32]byte {
	return DerivePoolID(p.Owner, p.UUID)
}

// EscrowAddress returns the address of the pool's buy-side currency escrow.
func (p *Pool) EscrowAddress() [32]byte {
	return DeriveEscrowAddress(p.ID())
}

// Expired reports whether fulfillments must be rejected at the given time.
func (p *Pool) Expired(now int64) bool {
	return p.Expiry != 0 && now >= p.Expiry
}

// Clone returns a deep copy so stored pools are never aliased by callers.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// CurveParams returns the pool's curve configuration.
func (p *Pool) CurveParams() curve.Params {
	return curve.Params{Kind: p.CurveKind, Delta: p.CurveDelta}
}

// SellState tracks the sell-side inventory held by one pool for one asset.
// One record exists per (pool, asset) pair; it is created on first deposit and
// destroyed when its amount returns to zero.
type SellState struct {
	Pool      [32]byte
	PoolOwner [32]byte
	AssetMint [32]byte
	// AssetAmount is the number of units currently escrowed.
	AssetAmount uint64
	// CosignerAnnotation is an opaque tag reserved for off-protocol
	// bookkeeping. It is copied from the pool and zero-padded on the wire.
	CosignerAnnotation [32]byte
}

// Clone returns a copy of the record.
func (s *SellState) Clone() *SellState {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// DerivePoolID hashes the pool derivation seed with the owner and UUID.
func DerivePoolID(owner [32]byte, id uuid.UUID) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash([]byte(poolSeed), owner[:], id[:]))
}

// DeriveEscrowAddress returns the buy-side escrow address for a pool.
func DeriveEscrowAddress(poolID [32]byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash([]byte(escrowSeed), poolID[:]))
}

// DeriveSellStateAddress returns the SellState address for a (pool, asset)
// pair.
func DeriveSellStateAddress(poolID, assetMint [32]byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash([]byte(sellStateSeed), poolID[:], assetMint[:]))
}
