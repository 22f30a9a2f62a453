package stub

import (
	"time"

	"github.com/shopspring/decimal"

	"hacktickets/models"
)

// seedEvents populates the demo catalogue. Prices are wei-scale fixed
// point, same as the real ledger.
func seedEvents() []models.Event {
	base := time.Now().AddDate(0, 1, 0).Unix()

	events := []models.Event{
		{
			ID:          "1",
			Name:        "Harbour Lights Festival",
			Location:    "Pier 14, Docklands",
			Date:        base,
			Price:       decimal.RequireFromString("250000000000000000"),
			Capacity:    500,
			TicketsSold: 120,
			Active:      true,
		},
		{
			ID:          "2",
			Name:        "Midnight Synth Session",
			Location:    "The Vault, Old Town",
			Date:        base + 7*24*3600,
			Price:       decimal.RequireFromString("1000000000000000000"),
			Capacity:    80,
			TicketsSold: 80,
			Active:      true,
		},
		{
			ID:          "3",
			Name:        "Open Air Cinema: Retrospective",
			Location:    "Riverside Park",
			Date:        base + 14*24*3600,
			Price:       decimal.RequireFromString("500000000000000000"),
			Capacity:    300,
			TicketsSold: 45,
			Active:      false,
		},
	}

	for i := range events {
		events[i].AvailableTickets = events[i].Capacity - events[i].TicketsSold
	}
	return events
}
