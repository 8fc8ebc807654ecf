package checkout

import "fmt"

// Mode is the page-level state of a checkout. It replaces independent
// editing/payment/completed flags so contradictory combinations cannot exist.
type Mode int

const (
	Browsing Mode = iota
	EditingOrder
	EditingDelivery
	AwaitingPayment
	Completed
)

func (m Mode) String() string {
	switch m {
	case Browsing:
		return "browsing"
	case EditingOrder:
		return "editing_order"
	case EditingDelivery:
		return "editing_delivery"
	case AwaitingPayment:
		return "awaiting_payment"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

var transitions = map[Mode][]Mode{
	Browsing:        {EditingOrder, EditingDelivery, AwaitingPayment},
	EditingOrder:    {Browsing, EditingDelivery, AwaitingPayment},
	EditingDelivery: {Browsing, EditingOrder, AwaitingPayment},
	AwaitingPayment: {Browsing, EditingOrder, EditingDelivery, Completed},
	Completed:       {},
}

func (m Mode) CanTransition(to Mode) bool {
	for _, t := range transitions[m] {
		if t == to {
			return true
		}
	}
	return false
}
