package httpgin

import "github.com/kirinyoku/algotix/internal/domain"

type CreateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Venue       string `json:"venue"`
	PriceMicro  uint64 `json:"price_micro" binding:"required,gt=0"`
	Supply      uint64 `json:"supply" binding:"required,gt=0"`
	Activate    bool   `json:"activate"`
}

type VerifyTicketRequest struct {
	// Proof is the raw scanned QR payload.
	Proof string `json:"proof" binding:"required"`
}

type FulfillOrderRequest struct {
	AssetID uint64 `json:"asset_id" binding:"required"`
	Buyer   string `json:"buyer" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type EventsResponse struct {
	Events []domain.Event `json:"events"`
	Next   string         `json:"next,omitempty"`
}

type OrganizerEventsResponse struct {
	Events []domain.Event `json:"events"`
	Stats  domain.Stats   `json:"stats"`
}

type WalletResponse struct {
	Status  string `json:"status"`
	Address string `json:"address,omitempty"`
}
