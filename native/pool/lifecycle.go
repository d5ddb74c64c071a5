package pool

// Escrow and pool lifecycle rules. The two-tier invariant: never strand a
// balance below its keep-alive cost, and never destroy an account that still
// has referents (outstanding sell-side inventory).

// sweepThreshold returns the balance below which the buy-side escrow is dust.
// The rent minimum keeps the account alive; the 1%-of-spot term guards
// against escrows left too small to ever fund another fulfillment.
func (e *Engine) sweepThreshold(p *Pool) uint64 {
	min := e.rent.MinimumBalance(0)
	if pct := p.SpotPrice / 100; pct > min {
		return pct
	}
	return min
}

// tryCloseEscrow sweeps the entire remaining escrow balance to the owner when
// it has fallen below the sweep threshold and the pool holds no sell-side
// inventory. It refreshes BuysidePaymentAmount either way.
func (e *Engine) tryCloseEscrow(p *Pool) (bool, error) {
	escrow := p.EscrowAddress()
	balance, err := e.state.Balance(escrow)
	if err != nil {
		return false, err
	}
	if balance == 0 {
		p.BuysidePaymentAmount = 0
		return false, nil
	}
	if p.SellsideAssetAmount > 0 || balance >= e.sweepThreshold(p) {
		p.BuysidePaymentAmount = balance
		return false, nil
	}
	if err := e.transferBalance(escrow, p.Owner, balance); err != nil {
		return false, err
	}
	p.BuysidePaymentAmount = 0
	e.emit(NewEscrowSweptEvent(p.ID(), balance))
	return true, nil
}

// tryClosePool deallocates the pool record once it holds no escrow balance
// and no inventory, returning its rent to the owner. The transition is
// one-way; callers must not persist the pool after a true return.
func (e *Engine) tryClosePool(p *Pool) (bool, error) {
	if p.SellsideAssetAmount > 0 || p.BuysidePaymentAmount > 0 {
		return false, nil
	}
	id := p.ID()
	rent, err := e.state.Balance(id)
	if err != nil {
		return false, err
	}
	if err := e.transferBalance(id, p.Owner, rent); err != nil {
		return false, err
	}
	if err := e.state.PoolDelete(id); err != nil {
		return false, err
	}
	e.emit(NewPoolClosedEvent(id, p.Owner, rent))
	return true, nil
}

// closeSellState reclaims an emptied SellState record, returning its rent to
// the recipient. Callers must only invoke it when AssetAmount is zero.
func (e *Engine) closeSellState(s *SellState, recipient [32]byte) error {
	addr := DeriveSellStateAddress(s.Pool, s.AssetMint)
	rent, err := e.state.Balance(addr)
	if err != nil {
		return err
	}
	if err := e.transferBalance(addr, recipient, rent); err != nil {
		return err
	}
	if err := e.state.SellStateDelete(addr); err != nil {
		return err
	}
	e.emit(NewSellStateClosedEvent(s.Pool, s.AssetMint, rent))
	return nil
}
