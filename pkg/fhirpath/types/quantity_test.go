package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuantityAddSameUnit(t *testing.T) {
	a := NewQuantityFromDecimal(decimal.NewFromInt(1), "g")
	b := NewQuantityFromDecimal(decimal.NewFromInt(2), "g")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Value().Equal(decimal.NewFromInt(3)) || sum.Unit() != "g" {
		t.Errorf("got %s, want 3 g", sum.String())
	}
}

func TestQuantityAddConvertibleUnits(t *testing.T) {
	a := NewQuantityFromDecimal(decimal.NewFromInt(1), "g")
	b := NewQuantityFromDecimal(decimal.NewFromInt(500), "mg")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Unit() != "g" {
		t.Errorf("expected result unit g, got %s", sum.Unit())
	}
	got, _ := sum.Value().Float64()
	if got != 1.5 {
		t.Errorf("got %v, want 1.5", got)
	}
}

func TestQuantitySubtractConvertibleUnits(t *testing.T) {
	a := NewQuantityFromDecimal(decimal.NewFromInt(1000), "mg")
	b := NewQuantityFromDecimal(decimal.NewFromInt(0), "g")

	diff, err := a.Subtract(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff.Unit() != "mg" {
		t.Errorf("expected result unit mg, got %s", diff.Unit())
	}
}

func TestQuantityAddIncompatibleUnits(t *testing.T) {
	a := NewQuantityFromDecimal(decimal.NewFromInt(1), "g")
	b := NewQuantityFromDecimal(decimal.NewFromInt(1), "m")

	if _, err := a.Add(b); err == nil {
		t.Error("expected error combining grams and meters")
	}
}

func TestQuantityAddEmptyUnit(t *testing.T) {
	a := NewQuantityFromDecimal(decimal.NewFromInt(1), "")
	b := NewQuantityFromDecimal(decimal.NewFromInt(2), "")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Value().Equal(decimal.NewFromInt(3)) {
		t.Errorf("got %s, want 3", sum.String())
	}
}
