package purchase

import "errors"

var (
	// ErrSoldOut is returned when the vending machine holds no stock at the
	// moment of purchase. Checked against the node before any signing starts.
	ErrSoldOut = errors.New("purchase: event is sold out")

	// ErrNotActive is returned when the escrow has not opted in to the ticket
	// asset, meaning activation never completed for this event.
	ErrNotActive = errors.New("purchase: event is not active")

	// ErrInsufficientFunds is returned when the buyer's balance cannot cover
	// the ticket price and fees.
	ErrInsufficientFunds = errors.New("purchase: insufficient funds")

	// ErrAlreadyHolding is returned when the buying account already holds
	// this ticket.
	ErrAlreadyHolding = errors.New("purchase: account already holds this ticket")

	// ErrNotCreator is returned when order fulfillment is attempted by an
	// account other than the event creator.
	ErrNotCreator = errors.New("purchase: connected account is not the event creator")

	// ErrOrderNotPending is returned when fulfillment targets a buyer who
	// already holds the ticket.
	ErrOrderNotPending = errors.New("purchase: order is not pending")

	// ErrNotOptedIn is returned when a direct transfer targets a buyer who
	// has not opted in to the ticket asset.
	ErrNotOptedIn = errors.New("purchase: buyer has not opted in to the ticket asset")
)
