package credential

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"hacktickets/models"
)

// encodeConcurrency bounds the per-ticket fan-out. Encodings are pure and
// independent, so the exact limit only caps memory churn.
const encodeConcurrency = 4

// BuildQRMap pre-materializes one QR image per owned ticket, keyed by
// ticketId. A ticket whose encoding fails is simply absent from the map;
// the batch never aborts. The map is rebuilt from scratch on every refresh.
func BuildQRMap(ctx context.Context, enc *Encoder, tickets []models.Ticket, token string, logger *slog.Logger) map[string][]byte {
	if logger == nil {
		logger = slog.Default()
	}

	var mu sync.Mutex
	images := make(map[string][]byte, len(tickets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(encodeConcurrency)

	for _, t := range tickets {
		t := t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return nil
			}

			img, err := enc.Encode(t.TicketID, token)
			if err != nil {
				logger.Warn("skipping ticket credential", "ticket_id", t.TicketID, "error", err)
				return nil
			}

			mu.Lock()
			images[t.TicketID] = img
			mu.Unlock()
			return nil
		})
	}

	// Workers swallow their own failures, so Wait only orders publication:
	// the assembled map is returned once, after every encoding settles.
	_ = g.Wait()

	return images
}
