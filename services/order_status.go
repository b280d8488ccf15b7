package services

import "github.com/kendall-kelly/motorhub-api/models"

// OrderStatusChange is the outcome of an accepted order status request
type OrderStatusChange struct {
	Status       models.OrderStatus
	RestoreStock bool
}

// NextOrderStatus decides whether an order may move from current to
// requested. A shipped request needs a tracking number in the request.
// RestoreStock is only a request; the caller skips it when the order's
// stock was already given back.
func NextOrderStatus(current, requested models.OrderStatus, trackingNumber string) (OrderStatusChange, error) {
	if !requested.Valid() {
		return OrderStatusChange{}, invalidArgument("INVALID_STATUS", "unknown order status %q", requested)
	}

	switch requested {
	case models.OrderCancelled:
		if current == models.OrderShipped || current == models.OrderDelivered {
			return OrderStatusChange{}, illegalTransition(ErrAlreadyShipped.Code,
				"order has already been %s and can no longer be cancelled", current)
		}
		return OrderStatusChange{Status: requested, RestoreStock: current != models.OrderCancelled}, nil
	case models.OrderShipped:
		if trackingNumber == "" {
			return OrderStatusChange{}, illegalTransition(ErrMissingTrackingInfo.Code,
				"a tracking number is required to mark an order as shipped")
		}
	}

	return OrderStatusChange{Status: requested}, nil
}
