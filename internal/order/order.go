package order

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order describes one resting limit order. OrderID is assigned by the
// exchange and is deliberately excluded from equality so that a locally
// built target order matches its exchange-confirmed counterpart.
type Order struct {
	Symbol  string
	Side    Side
	Size    decimal.Decimal
	Price   decimal.Decimal
	OrderID string
}

func (o Order) Equal(other Order) bool {
	return o.Symbol == other.Symbol &&
		o.Side == other.Side &&
		o.Size.Equal(other.Size) &&
		o.Price.Equal(other.Price)
}

func (o Order) String() string {
	return fmt.Sprintf("Order{id=%s symbol=%s side=%s size=%s price=%s}",
		o.OrderID, o.Symbol, o.Side, o.Size, o.Price)
}

// Contains reports whether list holds an order equal to o.
func Contains(list []Order, o Order) bool {
	for _, item := range list {
		if item.Equal(o) {
			return true
		}
	}
	return false
}

// Remove returns list without the first order equal to o. Absence is not
// an error; the list is returned unchanged.
func Remove(list []Order, o Order) []Order {
	for i, item := range list {
		if item.Equal(o) {
			out := make([]Order, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return list
}

// Partition splits list into buy and sell orders.
func Partition(list []Order) (bids, asks []Order) {
	for _, o := range list {
		if o.Side == SideBuy {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	return bids, asks
}
