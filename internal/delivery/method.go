package delivery

// Method is the delivery choice of a checkout. Exactly one is active.
type Method string

const (
	MethodHome        Method = "home_delivery"
	MethodPickup      Method = "pickup_point"
	MethodStorePickup Method = "store_pickup"
)

func (m Method) Valid() bool {
	switch m {
	case MethodHome, MethodPickup, MethodStorePickup:
		return true
	}
	return false
}

// DeliveryType is the legacy label stored on customers and orders.
type DeliveryType string

const (
	TypeHome   DeliveryType = "HOME"
	TypePickup DeliveryType = "PICKUP"
	TypeStore  DeliveryType = "STORE"
)

func (m Method) Type() DeliveryType {
	switch m {
	case MethodPickup:
		return TypePickup
	case MethodStorePickup:
		return TypeStore
	default:
		return TypeHome
	}
}

// ParseType maps a legacy label back to a Method, defaulting to home delivery.
func ParseType(t string) Method {
	switch DeliveryType(t) {
	case TypePickup:
		return MethodPickup
	case TypeStore:
		return MethodStorePickup
	default:
		if m := Method(t); m.Valid() {
			return m
		}
		return MethodHome
	}
}
