package curve

import (
	"errors"
	"math"
	"testing"

	"nftamm/native/common"
)

const lamportsPerSol = 1_000_000_000

func TestValidate(t *testing.T) {
	if err := Validate(Params{Kind: Linear, Delta: 0}); err != nil {
		t.Fatalf("linear zero delta should validate: %v", err)
	}
	if err := Validate(Params{Kind: Exponential, Delta: 9_999}); err != nil {
		t.Fatalf("exponential delta below max should validate: %v", err)
	}
	if err := Validate(Params{Kind: Exponential, Delta: 10_000}); !errors.Is(err, ErrInvalidCurveDelta) {
		t.Fatalf("expected ErrInvalidCurveDelta, got %v", err)
	}
	if err := Validate(Params{Kind: Kind(7), Delta: 1}); !errors.Is(err, ErrInvalidCurveType) {
		t.Fatalf("expected ErrInvalidCurveType, got %v", err)
	}
}

func TestLinearRoundTrip(t *testing.T) {
	p := Params{Kind: Linear, Delta: lamportsPerSol / 5}

	total, next, err := TotalSellIntoBuyPrice(p, lamportsPerSol, 1)
	if err != nil {
		t.Fatalf("sell price: %v", err)
	}
	if total != lamportsPerSol {
		t.Fatalf("expected gross %d, got %d", lamportsPerSol, total)
	}
	if next != 800_000_000 {
		t.Fatalf("expected next spot 0.8 SOL, got %d", next)
	}

	total, next, err = TotalBuyFromSellPrice(p, next, 1)
	if err != nil {
		t.Fatalf("buy price: %v", err)
	}
	if total != 800_000_000 {
		t.Fatalf("expected gross 0.8 SOL, got %d", total)
	}
	if next != lamportsPerSol {
		t.Fatalf("expected spot restored to 1 SOL, got %d", next)
	}
}

func TestLinearSellFloorsAtZero(t *testing.T) {
	p := Params{Kind: Linear, Delta: 600}
	total, next, err := TotalSellIntoBuyPrice(p, 1_000, 3)
	if err != nil {
		t.Fatalf("sell price: %v", err)
	}
	// Units trade at 1000, 400, 0.
	if total != 1_400 {
		t.Fatalf("expected total 1400, got %d", total)
	}
	if next != 0 {
		t.Fatalf("expected floored spot, got %d", next)
	}
}

func TestExponentialSteps(t *testing.T) {
	p := Params{Kind: Exponential, Delta: 1_000} // 10%

	next, err := SellStep(p, lamportsPerSol)
	if err != nil {
		t.Fatalf("sell step: %v", err)
	}
	if next != 900_000_000 {
		t.Fatalf("expected 0.9 SOL, got %d", next)
	}

	next, err = BuyStep(p, lamportsPerSol)
	if err != nil {
		t.Fatalf("buy step: %v", err)
	}
	if next != 1_100_000_000 {
		t.Fatalf("expected 1.1 SOL, got %d", next)
	}
}

func TestExponentialMultiUnitTotal(t *testing.T) {
	p := Params{Kind: Exponential, Delta: 1_000}
	total, next, err := TotalBuyFromSellPrice(p, 1_000_000, 3)
	if err != nil {
		t.Fatalf("buy price: %v", err)
	}
	// Units trade at 1_000_000, 1_100_000, 1_210_000.
	if total != 3_310_000 {
		t.Fatalf("expected total 3310000, got %d", total)
	}
	if next != 1_331_000 {
		t.Fatalf("expected next 1331000, got %d", next)
	}
}

func TestBuyStepOverflow(t *testing.T) {
	p := Params{Kind: Linear, Delta: 1}
	if _, err := BuyStep(p, math.MaxUint64); !errors.Is(err, common.ErrNumericOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestZeroAmountPricesNothing(t *testing.T) {
	p := Params{Kind: Linear, Delta: 10}
	total, next, err := TotalSellIntoBuyPrice(p, 500, 0)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if total != 0 || next != 500 {
		t.Fatalf("expected untouched state, got total=%d next=%d", total, next)
	}
}
