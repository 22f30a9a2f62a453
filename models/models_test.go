package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Valid(t *testing.T) {
	tests := []struct {
		name    string
		session *Session
		want    bool
	}{
		{
			name:    "complete session",
			session: &Session{Phone: "9999999999", Token: "T1"},
			want:    true,
		},
		{
			name:    "missing token",
			session: &Session{Phone: "9999999999"},
			want:    false,
		},
		{
			name:    "missing phone",
			session: &Session{Token: "T1"},
			want:    false,
		},
		{
			name:    "nil session",
			session: nil,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.Valid())
		})
	}
}

func TestDisplayPrice(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"quarter token", "250000000000000000", "0.2500"},
		{"one token", "1000000000000000000", "1.0000"},
		{"free", "0", "0.0000"},
		{"sub display precision", "10000000000000", "0.0000"},
		{"non terminating cent", "1234500000000000000", "1.2345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decimal.NewFromString(tt.price)
			require.NoError(t, err)

			assert.Equal(t, tt.want, DisplayPrice(p))

			// Display conversion must never mutate the source value.
			assert.Equal(t, tt.price, p.String())
		})
	}
}

func TestEvent_PriceFromJSONNumber(t *testing.T) {
	// The ledger reports prices as bare integers; they must survive the
	// trip without float rounding.
	raw := []byte(`{"id":"1","name":"Gig","price":250000000000000000,"capacity":100,"ticketsSold":40,"active":true,"availableTickets":60}`)

	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))

	assert.Equal(t, "250000000000000000", ev.Price.String())
	assert.Equal(t, "0.2500", ev.DisplayPrice())
	assert.Equal(t, int64(60), ev.AvailableTickets)
	assert.False(t, ev.SoldOut())
}

func TestEvent_SoldOut(t *testing.T) {
	ev := Event{Capacity: 100, TicketsSold: 100, AvailableTickets: 0}
	assert.True(t, ev.SoldOut())
}

func TestTicket_JSONRoundTrip(t *testing.T) {
	ticket := Ticket{
		TicketID:        "42",
		EventID:         "7",
		EventName:       "Block Party",
		EventLocation:   "Warehouse 12",
		EventDate:       1764547200,
		Used:            false,
		PaymentID:       "pay-1",
		TransactionHash: "0xabc",
	}

	data, err := json.Marshal(ticket)
	require.NoError(t, err)

	var got Ticket
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ticket, got)
}
