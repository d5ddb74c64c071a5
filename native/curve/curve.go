// Package curve implements the deterministic bonding curve that prices every
// pool fulfillment. A pool quotes its current spot price for the next unit and
// steps the price after each unit so that repeated trades on the same side get
// progressively worse terms while the opposite side improves.
package curve

import (
	"errors"

	"nftamm/native/common"
)

// Kind selects the price-step function applied between units.
type Kind uint8

const (
	// Linear steps the spot price by a fixed lamport delta.
	Linear Kind = iota
	// Exponential steps the spot price by a basis-point fraction of itself.
	Exponential
)

var (
	ErrInvalidCurveType  = errors.New("invalid curve type")
	ErrInvalidCurveDelta = errors.New("invalid curve delta")
)

// Params captures a pool's curve configuration.
type Params struct {
	Kind  Kind
	Delta uint64
}

// Valid reports whether the kind is a supported curve type.
func (k Kind) Valid() bool {
	return k == Linear || k == Exponential
}

// Validate checks the curve configuration. Exponential deltas are basis
// points and must stay below the full denominator, otherwise a single sell
// step would zero the price.
func Validate(p Params) error {
	if !p.Kind.Valid() {
		return ErrInvalidCurveType
	}
	if p.Kind == Exponential && p.Delta >= common.BasisPointMax {
		return ErrInvalidCurveDelta
	}
	return nil
}

// SellStep returns the spot price after one sell-into-buy fulfillment unit.
// Linear curves floor at zero.
func SellStep(p Params, spot uint64) (uint64, error) {
	switch p.Kind {
	case Linear:
		if p.Delta > spot {
			return 0, nil
		}
		return spot - p.Delta, nil
	case Exponential:
		cut, err := common.BpShare(spot, uint32(p.Delta))
		if err != nil {
			return 0, err
		}
		return spot - cut, nil
	default:
		return 0, ErrInvalidCurveType
	}
}

// BuyStep returns the spot price after one buy-from-sell fulfillment unit.
func BuyStep(p Params, spot uint64) (uint64, error) {
	switch p.Kind {
	case Linear:
		return common.SafeAdd(spot, p.Delta)
	case Exponential:
		raise, err := common.BpShare(spot, uint32(p.Delta))
		if err != nil {
			return 0, err
		}
		return common.SafeAdd(spot, raise)
	default:
		return 0, ErrInvalidCurveType
	}
}

// TotalSellIntoBuyPrice prices a sell-into-buy fulfillment of amount units.
// Each unit trades at the current spot, then the curve steps down before the
// next unit. It returns the gross price for all units and the spot price the
// pool must carry afterwards.
func TotalSellIntoBuyPrice(p Params, spot, amount uint64) (total, next uint64, err error) {
	next = spot
	for i := uint64(0); i < amount; i++ {
		if total, err = common.SafeAdd(total, next); err != nil {
			return 0, 0, err
		}
		if next, err = SellStep(p, next); err != nil {
			return 0, 0, err
		}
	}
	return total, next, nil
}

// TotalBuyFromSellPrice prices a buy-from-sell fulfillment of amount units,
// stepping the curve up between units.
func TotalBuyFromSellPrice(p Params, spot, amount uint64) (total, next uint64, err error) {
	next = spot
	for i := uint64(0); i < amount; i++ {
		if total, err = common.SafeAdd(total, next); err != nil {
			return 0, 0, err
		}
		if next, err = BuyStep(p, next); err != nil {
			return 0, 0, err
		}
	}
	return total, next, nil
}
