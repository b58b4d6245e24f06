package order

// Status represents the lifecycle status of an order
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPreparing Status = "preparing"
	StatusBaking    Status = "baking"
	StatusReady     Status = "ready"
	StatusDelivery  Status = "delivery"
	StatusDelivered Status = "delivered"
	StatusRejected  Status = "rejected"
)

// AllStatuses lists every status in lifecycle order
func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusAccepted, StatusPreparing, StatusBaking,
		StatusReady, StatusDelivery, StatusDelivered, StatusRejected,
	}
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusPreparing, StatusBaking,
		StatusReady, StatusDelivery, StatusDelivered, StatusRejected:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusRejected
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusAccepted || target == StatusRejected
	case StatusAccepted:
		return target == StatusPreparing || target == StatusRejected
	case StatusPreparing:
		return target == StatusBaking || target == StatusReady || target == StatusRejected
	case StatusBaking:
		return target == StatusReady || target == StatusRejected
	case StatusReady:
		return target == StatusDelivery
	case StatusDelivery:
		return target == StatusDelivered
	case StatusDelivered, StatusRejected:
		return false
	}
	return false
}

// AssignableStatuses are the statuses in which a driver may still claim an order
func AssignableStatuses() []Status {
	return []Status{StatusPending, StatusAccepted, StatusPreparing, StatusBaking, StatusReady}
}

// IsAssignable reports whether a driver may claim an order in this status
func (s Status) IsAssignable() bool {
	for _, a := range AssignableStatuses() {
		if a == s {
			return true
		}
	}
	return false
}

// PaymentMethod is how the customer pays
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodFlouci PaymentMethod = "flouci"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCash || m == PaymentMethodFlouci
}

// PaymentStatus tracks online payment progress
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)
