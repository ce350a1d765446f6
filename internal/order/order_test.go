package order

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mk(side Side, size, price string) Order {
	return Order{
		Symbol: "BTCUSDT",
		Side:   side,
		Size:   decimal.RequireFromString(size),
		Price:  decimal.RequireFromString(price),
	}
}

func TestEqualIgnoresOrderID(t *testing.T) {
	a := mk(SideBuy, "0.01", "100")
	b := mk(SideBuy, "0.01", "100")
	b.OrderID = "12345"
	if !a.Equal(b) {
		t.Fatalf("orders should compare equal regardless of order id")
	}
}

func TestEqualComparesDecimalValue(t *testing.T) {
	a := mk(SideBuy, "0.01", "100")
	b := mk(SideBuy, "0.010", "100.00")
	if !a.Equal(b) {
		t.Fatalf("orders with equal decimal values should compare equal")
	}
}

func TestEqualDistinguishesFields(t *testing.T) {
	base := mk(SideBuy, "0.01", "100")
	cases := []Order{
		mk(SideSell, "0.01", "100"),
		mk(SideBuy, "0.02", "100"),
		mk(SideBuy, "0.01", "101"),
		{Symbol: "ETHUSDT", Side: SideBuy, Size: base.Size, Price: base.Price},
	}
	for i, other := range cases {
		if base.Equal(other) {
			t.Fatalf("case %d: orders should differ", i)
		}
	}
}

func TestRemoveFirstMatchOnly(t *testing.T) {
	a := mk(SideBuy, "0.01", "100")
	dup := mk(SideBuy, "0.01", "100")
	c := mk(SideSell, "0.01", "101")
	out := Remove([]Order{a, dup, c}, a)
	if len(out) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(out))
	}
	if !out[0].Equal(dup) || !out[1].Equal(c) {
		t.Fatalf("unexpected remainder: %v", out)
	}
}

func TestRemoveAbsentLeavesListUnchanged(t *testing.T) {
	a := mk(SideBuy, "0.01", "100")
	out := Remove([]Order{a}, mk(SideSell, "0.01", "200"))
	if len(out) != 1 || !out[0].Equal(a) {
		t.Fatalf("list should be unchanged, got %v", out)
	}
}

func TestContains(t *testing.T) {
	list := []Order{mk(SideBuy, "0.01", "100")}
	if !Contains(list, mk(SideBuy, "0.01", "100")) {
		t.Fatalf("expected match")
	}
	if Contains(list, mk(SideBuy, "0.01", "99")) {
		t.Fatalf("expected no match")
	}
}

func TestPartition(t *testing.T) {
	b1 := mk(SideBuy, "0.01", "100")
	s1 := mk(SideSell, "0.01", "101")
	b2 := mk(SideBuy, "0.01", "90")
	bids, asks := Partition([]Order{b1, s1, b2})
	if len(bids) != 2 || len(asks) != 1 {
		t.Fatalf("expected 2 bids and 1 ask, got %d and %d", len(bids), len(asks))
	}
	if !bids[0].Equal(b1) || !bids[1].Equal(b2) || !asks[0].Equal(s1) {
		t.Fatalf("partition order not preserved")
	}
}
