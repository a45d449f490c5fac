package domain

// Event is a ticket type minted as an Algorand Standard Asset. Everything
// except AssetID and Creator comes from the creation transaction's note;
// AssetID is assigned by the ledger and Creator is the transaction sender.
type Event struct {
	AssetID     uint64 `json:"asset_id"`
	Name        string `json:"name"`
	UnitName    string `json:"unit_name"`
	Total       uint64 `json:"total"`
	Creator     string `json:"creator"`
	Description string `json:"description"`
	PriceMicro  uint64 `json:"price_micro"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Venue       string `json:"venue"`

	// Sale state filled in by hydration; zero-valued until Hydrated is true.
	Sold      uint64 `json:"sold"`
	Available uint64 `json:"available"`
	Active    bool   `json:"active"`
	Hydrated  bool   `json:"hydrated"`
}

// Revenue is the organizer's gross take in microAlgos for the sales observed
// so far.
func (e Event) Revenue() uint64 {
	return e.Sold * e.PriceMicro
}

// Ticket is an asset holding seen from an attendee's account.
type Ticket struct {
	AssetID  uint64 `json:"asset_id"`
	Name     string `json:"name"`
	UnitName string `json:"unit_name"`
	Amount   uint64 `json:"amount"`
	Frozen   bool   `json:"frozen"`
}

// Order is reconstructed from a payment transaction carrying the
// purchase-intent note. It is never stored; an order is pending exactly while
// the paying account does not hold the ticket it paid for.
type Order struct {
	PaymentID   string `json:"payment_id"`
	Buyer       string `json:"buyer"`
	AssetID     uint64 `json:"asset_id"`
	EventName   string `json:"event_name"`
	AmountMicro uint64 `json:"amount_micro"`
	RoundTime   uint64 `json:"round_time"`
}

// Stats aggregates an organizer's hydrated events.
type Stats struct {
	TotalEvents       int    `json:"total_events"`
	TotalTicketsSold  uint64 `json:"total_tickets_sold"`
	TotalRevenueMicro uint64 `json:"total_revenue_micro"`
}
