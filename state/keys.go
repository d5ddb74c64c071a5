package state

// Key prefixes for the ledger namespaces. Record keys are the raw 32-byte
// address appended to the prefix; token keys append owner then mint.
const (
	poolPrefix      = "amm/pool/"
	sellStatePrefix = "amm/sellstate/"
	accountPrefix   = "amm/account/"
	tokenPrefix     = "amm/token/"
	assetPrefix     = "amm/asset/"
)

func poolKey(id [32]byte) []byte {
	return append([]byte(poolPrefix), id[:]...)
}

func sellStateKey(addr [32]byte) []byte {
	return append([]byte(sellStatePrefix), addr[:]...)
}

func accountKey(addr [32]byte) []byte {
	return append([]byte(accountPrefix), addr[:]...)
}

func tokenKey(owner, mint [32]byte) []byte {
	key := append([]byte(tokenPrefix), owner[:]...)
	return append(key, mint[:]...)
}

func assetKey(mint [32]byte) []byte {
	return append([]byte(assetPrefix), mint[:]...)
}
