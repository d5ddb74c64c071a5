package types

// Account is a lamport-holding ledger account. Balances are denominated in the
// native currency's smallest unit and are always non-negative; the ledger
// rejects any debit that would overdraw.
type Account struct {
	Nonce   uint64 `json:"nonce"`
	Balance uint64 `json:"balance"`
}

// Clone returns a copy of the account so callers can mutate it without
// affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{}
	}
	clone := *a
	return &clone
}
