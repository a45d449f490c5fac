package note_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/algotix/internal/note"
)

func TestEventRoundTrip(t *testing.T) {
	in := note.Event{
		Description: "Open air concert",
		Date:        "2026-09-12",
		Time:        "20:00",
		Venue:       "Riverside Arena",
		Price:       2_500_000,
	}

	raw, err := note.EncodeEvent(in)
	require.NoError(t, err)
	assert.True(t, len(raw) > len(note.EventPrefix))
	assert.Equal(t, note.EventPrefix, string(raw[:len(note.EventPrefix)]))

	out, err := note.DecodeEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, in.Description, out.Description)
	assert.Equal(t, in.Date, out.Date)
	assert.Equal(t, in.Time, out.Time)
	assert.Equal(t, in.Venue, out.Venue)
	assert.Equal(t, in.Price, out.Price)
	assert.Equal(t, note.TypeTicketToken, out.Type)
}

func TestDecodeEventForeign(t *testing.T) {
	cases := map[string][]byte{
		"no prefix":      []byte(`{"type":"ticket-token"}`),
		"empty":          nil,
		"wrong type":     []byte(note.EventPrefix + `{"type":"something-else"}`),
		"missing type":   []byte(note.EventPrefix + `{"desc":"x"}`),
		"other protocol": []byte("SWAP_V2:deadbeef"),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := note.DecodeEvent(raw)
			assert.ErrorIs(t, err, note.ErrForeignNote)
		})
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	_, err := note.DecodeEvent([]byte(note.EventPrefix + `{"price":`))

	var mal *note.MalformedError
	require.ErrorAs(t, err, &mal)
	assert.NotErrorIs(t, err, note.ErrForeignNote)
}

func TestDecodeEventDefaults(t *testing.T) {
	raw := []byte(note.EventPrefix + `{"price":100,"type":"ticket-token"}`)

	out, err := note.DecodeEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, note.DefaultDescription, out.Description)
	assert.Equal(t, note.DefaultDate, out.Date)
	assert.Equal(t, note.DefaultVenue, out.Venue)
	assert.Empty(t, out.Time)
	assert.Equal(t, uint64(100), out.Price)
}

func TestPurchaseRoundTrip(t *testing.T) {
	raw := note.EncodePurchase(7_654_321)
	assert.Equal(t, "BUY_TICKET_7654321", string(raw))

	id, err := note.DecodePurchase(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7_654_321), id)
}

func TestDecodePurchase(t *testing.T) {
	t.Run("foreign", func(t *testing.T) {
		_, err := note.DecodePurchase([]byte("hello"))
		assert.ErrorIs(t, err, note.ErrForeignNote)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		_, err := note.DecodePurchase([]byte(note.PurchasePrefix + "abc"))

		var mal *note.MalformedError
		assert.ErrorAs(t, err, &mal)
	})

	t.Run("zero id", func(t *testing.T) {
		_, err := note.DecodePurchase([]byte(note.PurchasePrefix + "0"))

		var mal *note.MalformedError
		assert.ErrorAs(t, err, &mal)
	})
}

func TestProofRoundTrip(t *testing.T) {
	in := note.Proof{
		Address: "HOLDER7EXAMPLEADDRESSXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX",
		AssetID: 42,
	}

	raw, err := note.EncodeProof(in)
	require.NoError(t, err)

	out, err := note.DecodeProof(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeProofMalformed(t *testing.T) {
	cases := map[string][]byte{
		"not json":        []byte("not a proof"),
		"missing address": []byte(`{"assetId":42}`),
		"zero asset":      []byte(`{"address":"ABC","assetId":0}`),
		"empty object":    []byte(`{}`),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := note.DecodeProof(raw)

			var mal *note.MalformedProofError
			assert.ErrorAs(t, err, &mal)
		})
	}
}
