// Package note encodes and decodes the byte payloads this system embeds in
// ledger transactions: the versioned event-metadata note on asset creation,
// the purchase-intent note on payments, and the QR redemption proof.
package note

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// EventPrefix tags asset-creation notes so the indexer can filter them
	// without decoding. Bumping the version hides all previously minted
	// events, so it changes only with the note schema.
	EventPrefix = "TICKET_APP_V3:"

	// PurchasePrefix tags payments that are purchase intents. The asset id
	// follows as plain decimal text.
	PurchasePrefix = "BUY_TICKET_"

	// TypeTicketToken discriminates our event notes from other payloads that
	// happen to carry the prefix.
	TypeTicketToken = "ticket-token"
)

// Defaults substituted for optional fields absent from a decoded note.
const (
	DefaultDescription = "No description"
	DefaultDate        = "TBA"
	DefaultVenue       = "TBA"
)

// ErrForeignNote marks a note that is simply not ours: missing prefix or a
// different type discriminator. Callers skip these; they are not failures.
var ErrForeignNote = errors.New("note: not a ticket-event note")

// MalformedError marks a note that carries our prefix but cannot be decoded.
// Unlike ErrForeignNote this is worth surfacing: it means a corrupt payload,
// not somebody else's traffic.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("note: malformed payload: %s: %v", e.Reason, e.Err)
	}
	return "note: malformed payload: " + e.Reason
}

func (e *MalformedError) Unwrap() error { return e.Err }

// MalformedProofError marks an unusable QR redemption payload.
type MalformedProofError struct {
	Reason string
}

func (e *MalformedProofError) Error() string {
	return "note: malformed ticket proof: " + e.Reason
}

// Event is the metadata payload attached to a ticket-asset creation
// transaction. Price is in microAlgos.
type Event struct {
	Description string `json:"desc"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Venue       string `json:"venue"`
	Price       uint64 `json:"price"`
	Type        string `json:"type"`
}

// EncodeEvent renders the note as EventPrefix + JSON. The type discriminator
// is set unconditionally.
func EncodeEvent(n Event) ([]byte, error) {
	n.Type = TypeTicketToken

	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("note: encode event: %w", err)
	}

	return append([]byte(EventPrefix), body...), nil
}

// DecodeEvent parses an event note. It returns ErrForeignNote for notes
// lacking the prefix or the ticket-token type, a *MalformedError for prefixed
// notes with a corrupt body, and substitutes defaults for optional fields.
func DecodeEvent(raw []byte) (Event, error) {
	var n Event

	body, ok := bytes.CutPrefix(raw, []byte(EventPrefix))
	if !ok {
		return n, ErrForeignNote
	}

	if err := json.Unmarshal(body, &n); err != nil {
		return n, &MalformedError{Reason: "invalid JSON body", Err: err}
	}

	if n.Type != TypeTicketToken {
		return Event{}, ErrForeignNote
	}

	if n.Description == "" {
		n.Description = DefaultDescription
	}
	if n.Date == "" {
		n.Date = DefaultDate
	}
	if n.Venue == "" {
		n.Venue = DefaultVenue
	}

	return n, nil
}

// EncodePurchase renders the purchase-intent note for an asset id.
func EncodePurchase(assetID uint64) []byte {
	return []byte(PurchasePrefix + strconv.FormatUint(assetID, 10))
}

// DecodePurchase extracts the asset id from a purchase-intent note. Notes
// without the prefix are foreign; a prefixed note with a non-numeric id is
// malformed.
func DecodePurchase(raw []byte) (uint64, error) {
	s, ok := strings.CutPrefix(string(raw), PurchasePrefix)
	if !ok {
		return 0, ErrForeignNote
	}

	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &MalformedError{Reason: "non-numeric asset id", Err: err}
	}
	if id == 0 {
		return 0, &MalformedError{Reason: "zero asset id"}
	}

	return id, nil
}

// Proof is the QR redemption payload presented at the door.
type Proof struct {
	Address string `json:"address"`
	AssetID uint64 `json:"assetId"`
}

// EncodeProof renders the QR payload for a held ticket.
func EncodeProof(p Proof) ([]byte, error) {
	if p.Address == "" || p.AssetID == 0 {
		return nil, &MalformedProofError{Reason: "address and assetId are required"}
	}
	return json.Marshal(p)
}

// DecodeProof parses a scanned QR payload. Any failure is a
// *MalformedProofError; a proof is never silently ignored.
func DecodeProof(raw []byte) (Proof, error) {
	var p Proof

	if err := json.Unmarshal(raw, &p); err != nil {
		return Proof{}, &MalformedProofError{Reason: "invalid JSON"}
	}
	if p.Address == "" {
		return Proof{}, &MalformedProofError{Reason: "missing address"}
	}
	if p.AssetID == 0 {
		return Proof{}, &MalformedProofError{Reason: "missing or zero assetId"}
	}

	return p, nil
}
