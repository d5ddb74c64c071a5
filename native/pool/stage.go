package pool

import "nftamm/native/common"

// balanceStage accumulates the currency movements of one operation and
// applies them only after every leg has been proven feasible against the
// live balances. A leg that would overdraw or overflow fails before the
// first write, so a rejected operation leaves no partial transfer behind.
type balanceStage struct {
	state    engineState
	order    [][32]byte
	original map[[32]byte]uint64
	balances map[[32]byte]uint64
}

func newBalanceStage(state engineState) *balanceStage {
	return &balanceStage{
		state:    state,
		original: make(map[[32]byte]uint64),
		balances: make(map[[32]byte]uint64),
	}
}

// balance returns the staged balance of an address, loading it from state on
// first touch.
func (b *balanceStage) balance(addr [32]byte) (uint64, error) {
	if _, ok := b.original[addr]; !ok {
		balance, err := b.state.Balance(addr)
		if err != nil {
			return 0, err
		}
		b.original[addr] = balance
		b.balances[addr] = balance
		b.order = append(b.order, addr)
	}
	return b.balances[addr], nil
}

func (b *balanceStage) credit(addr [32]byte, amount uint64) error {
	balance, err := b.balance(addr)
	if err != nil {
		return err
	}
	if b.balances[addr], err = common.SafeAdd(balance, amount); err != nil {
		return err
	}
	return nil
}

func (b *balanceStage) debit(addr [32]byte, amount uint64) error {
	balance, err := b.balance(addr)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrNotEnoughBalance
	}
	b.balances[addr] = balance - amount
	return nil
}

// commit writes the net delta of every touched address. All deltas were
// validated against the live balances, so the writes themselves cannot
// overdraw or overflow.
func (b *balanceStage) commit() error {
	for _, addr := range b.order {
		current, original := b.balances[addr], b.original[addr]
		switch {
		case current > original:
			if err := b.state.Credit(addr, current-original); err != nil {
				return err
			}
		case current < original:
			if err := b.state.Debit(addr, original-current); err != nil {
				return err
			}
		}
	}
	return nil
}

// transferBalance moves currency between two addresses, validating both legs
// before the first write.
func (e *Engine) transferBalance(from, to [32]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	stage := newBalanceStage(e.state)
	if err := stage.debit(from, amount); err != nil {
		return err
	}
	if err := stage.credit(to, amount); err != nil {
		return err
	}
	return stage.commit()
}

// checkTokenCredit verifies that crediting a token balance cannot overflow,
// so a subsequent TokenTransfer to the address cannot fail mid-operation.
func (e *Engine) checkTokenCredit(to, mint [32]byte, amount uint64) error {
	balance, err := e.state.TokenBalance(to, mint)
	if err != nil {
		return err
	}
	_, err = common.SafeAdd(balance, amount)
	return err
}
