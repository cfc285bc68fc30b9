package services

import "orders/internal/models"

// allowedTransitions is the order state machine. PAID and CANCELLED have no
// outgoing edges.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending: {models.StatusPaid, models.StatusCancelled},
}

// CanTransition reports whether an order may move from current to next.
func CanTransition(current, next models.OrderStatus) bool {
	if current.Terminal() {
		return false
	}
	for _, s := range allowedTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}
