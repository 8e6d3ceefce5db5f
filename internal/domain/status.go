package domain

// nextStatus is the linear fulfillment chain. Transitions never skip a step
// and never move backward.
var nextStatus = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusConfirmed,
	OrderStatusConfirmed:  OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// cancellableStatuses are the states an order may be cancelled from. Shipped
// and delivered orders can no longer be cancelled.
var cancellableStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:    {},
	OrderStatusConfirmed:  {},
	OrderStatusProcessing: {},
}

// transitionPolicy is the single source of truth for which role may request
// which transition: (role, fromStatus) -> allowed target statuses. Handlers
// validate against it and the storefront SDK consults it before rendering or
// sending a transition, so UI and validation can never disagree.
//
// Ownership is checked separately: consumers act only on their own orders and
// farmers only on orders containing at least one of their line items.
var transitionPolicy = map[Role]map[OrderStatus][]OrderStatus{
	RoleConsumer: {
		OrderStatusPending: {OrderStatusCancelled},
	},
	RoleFarmer: {
		OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
		OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:    {OrderStatusDelivered},
	},
	RoleAdmin: {
		OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
		OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:    {OrderStatusDelivered},
	},
}

// ValidOrderStatus reports whether the value is part of the status enum.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// TerminalStatus reports whether no further transition can leave the status.
func TerminalStatus(s OrderStatus) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// NextStatus returns the immediate successor on the linear chain, or false
// when the status is terminal.
func NextStatus(s OrderStatus) (OrderStatus, bool) {
	next, ok := nextStatus[s]
	return next, ok
}

// Cancellable reports whether an order in the given status may be cancelled.
func Cancellable(s OrderStatus) bool {
	_, ok := cancellableStatuses[s]
	return ok
}

// CanTransition reports whether target is reachable from current: either the
// immediate successor or a cancellation from an eligible state.
func CanTransition(current, target OrderStatus) bool {
	if target == OrderStatusCancelled {
		return Cancellable(current)
	}
	return nextStatus[current] == target
}

// AllowedTransitions returns the targets the role may request from the given
// status, before ownership checks. The returned slice is a copy.
func AllowedTransitions(role Role, from OrderStatus) []OrderStatus {
	policy, ok := transitionPolicy[role]
	if !ok {
		return nil
	}
	targets := policy[from]
	if len(targets) == 0 {
		return nil
	}
	out := make([]OrderStatus, len(targets))
	copy(out, targets)
	return out
}

// RoleAllowsTransition reports whether the permission table grants the role
// the from -> target transition, before ownership checks.
func RoleAllowsTransition(role Role, from, target OrderStatus) bool {
	for _, allowed := range AllowedTransitions(role, from) {
		if allowed == target {
			return true
		}
	}
	return false
}

// AuthorizeTransition decides whether the actor may move the order to the
// target status, combining the permission table with ownership rules.
func AuthorizeTransition(actor Actor, order Order, target OrderStatus) bool {
	if !RoleAllowsTransition(actor.Role, order.Status, target) {
		return false
	}
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleConsumer:
		return actor.ID != "" && actor.ID == order.ConsumerID
	case RoleFarmer:
		return order.OwnedByFarmer(actor.ID)
	}
	return false
}
