package pool

// RentOracle reports the minimum balance an account of a given serialized
// size must hold to stay alive. The escrow lifecycle rules depend on it.
type RentOracle interface {
	MinimumBalance(dataLen uint64) uint64
}

// Host-ledger rent parameters: a flat per-account storage overhead, a
// lamports-per-byte-year price and a two-year exemption threshold.
const (
	accountStorageOverhead = 128
	lamportsPerByteYear    = 3_480
	exemptionThresholdYrs  = 2
)

// StandardRent implements RentOracle with the host ledger's default
// parameters. MinimumBalance(0) is 890_880 lamports.
type StandardRent struct{}

// MinimumBalance implements RentOracle.
func (StandardRent) MinimumBalance(dataLen uint64) uint64 {
	return (accountStorageOverhead + dataLen) * lamportsPerByteYear * exemptionThresholdYrs
}

// FixedRent is a RentOracle returning the same minimum for every size.
// Primarily intended for tests.
type FixedRent uint64

// MinimumBalance implements RentOracle.
func (r FixedRent) MinimumBalance(uint64) uint64 { return uint64(r) }
