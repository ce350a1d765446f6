package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	OrdersPlaced   Counter
	OrdersRejected Counter
	CancelsSent    Counter
	CancelsFailed  Counter
	FillsObserved  Counter
	HealsTriggered Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		OrdersPlaced:   n,
		OrdersRejected: n,
		CancelsSent:    n,
		CancelsFailed:  n,
		FillsObserved:  n,
		HealsTriggered: n,
	}
}
