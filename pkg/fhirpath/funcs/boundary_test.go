package funcs

import (
	"testing"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

func TestLowHighBoundaryDate(t *testing.T) {
	fnLow, ok := Get("lowBoundary")
	if !ok {
		t.Fatal("lowBoundary not registered")
	}
	fnHigh, ok := Get("highBoundary")
	if !ok {
		t.Fatal("highBoundary not registered")
	}

	d, err := types.NewDate("2000-02-29")
	if err != nil {
		t.Fatal(err)
	}
	input := types.Collection{d}

	low, err := fnLow.Fn(nil, input, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := low[0].String(); got != "2000-02-29T00:00:00" {
		t.Errorf("lowBoundary = %s, want 2000-02-29T00:00:00", got)
	}

	high, err := fnHigh.Fn(nil, input, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := high[0].String(); got != "2000-02-29T23:59:59" {
		t.Errorf("highBoundary = %s, want 2000-02-29T23:59:59", got)
	}
}

func TestLowHighBoundaryPartialDate(t *testing.T) {
	fnHigh, _ := Get("highBoundary")
	d, err := types.NewDate("2024")
	if err != nil {
		t.Fatal(err)
	}

	high, err := fnHigh.Fn(nil, types.Collection{d}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := high[0].String(); got != "2024-12-31T23:59:59" {
		t.Errorf("highBoundary = %s, want 2024-12-31T23:59:59", got)
	}
}

func TestLowHighBoundaryDecimal(t *testing.T) {
	fnLow, _ := Get("lowBoundary")
	fnHigh, _ := Get("highBoundary")

	val, err := types.NewDecimal("1.587")
	if err != nil {
		t.Fatal(err)
	}
	input := types.Collection{val}

	low, err := fnLow.Fn(nil, input, nil)
	if err != nil {
		t.Fatal(err)
	}
	high, err := fnHigh.Fn(nil, input, nil)
	if err != nil {
		t.Fatal(err)
	}

	lowVal := low[0].(types.Decimal)
	highVal := high[0].(types.Decimal)
	if c, _ := lowVal.Compare(val); c > 0 {
		t.Errorf("lowBoundary %s should be <= %s", lowVal.String(), val.String())
	}
	if c, _ := highVal.Compare(val); c < 0 {
		t.Errorf("highBoundary %s should be >= %s", highVal.String(), val.String())
	}
}

func TestBoundaryEmptyInput(t *testing.T) {
	fnLow, _ := Get("lowBoundary")
	result, err := fnLow.Fn(nil, types.Collection{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Empty() {
		t.Error("expected empty result for empty input")
	}
}
