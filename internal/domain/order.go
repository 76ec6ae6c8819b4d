package domain

// OrderStatus is the delivery lifecycle owned by the order collaborator.
// The engine only ever reads it; it is the clock source that can preempt a
// challenge session.
type OrderStatus string

const (
	OrderPlaced         OrderStatus = "placed"
	OrderPreparing      OrderStatus = "preparing"
	OrderReadyForPickup OrderStatus = "ready_for_pickup"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
)

// ChallengeOutcome is the annotation the engine writes back onto an order.
// It lives in a field the order model reserves for the challenge flow; the
// delivery status itself is never written.
type ChallengeOutcome string

const (
	OutcomeCompleted           ChallengeOutcome = "COMPLETED"
	OutcomeFailed              ChallengeOutcome = "FAILED"
	OutcomeFailedAfterDelivery ChallengeOutcome = "FAILED_AFTER_DELIVERY"
)
