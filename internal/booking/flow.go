package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hacktickets/internal/credential"
	"hacktickets/internal/ticketing"
	"hacktickets/models"
)

// State is one step of a single ticket purchase.
type State string

const (
	StateDetails    State = "details"
	StatePayment    State = "payment"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
)

var (
	// ErrEventUnavailable means the event fetch failed before details
	// could be shown; the caller redirects to a neutral listing.
	ErrEventUnavailable = errors.New("booking: event unavailable")

	// ErrBusy rejects re-entrant submission while a booking is in flight.
	ErrBusy = errors.New("booking: submission already in flight")

	// ErrClosed rejects use of a torn-down flow.
	ErrClosed = errors.New("booking: flow closed")
)

// genericFailure is shown when the remote service gave no message.
const genericFailure = "Booking failed. Try again."

// Config paces the simulated gateway and the progress estimate. Tests zero
// the delays.
type Config struct {
	GatewayDelay    time.Duration
	SettleDelay     time.Duration
	ProgressTick    time.Duration
	ProgressStep    float64
	ProgressCeiling float64
}

// Flow drives one ticket purchase: Details -> Payment -> Processing ->
// Success, with failures returning to Payment. A Flow is bound to one
// event; a purchase for a different event starts a fresh instance.
type Flow struct {
	client  *ticketing.Client
	encoder *credential.Encoder
	tokens  ticketing.TokenSource
	cfg     Config
	logger  *slog.Logger

	mu           sync.Mutex
	state        State
	event        *models.Event
	errMsg       string
	progress     float64
	stopProgress func()
	receipt      *models.BookingReceipt
	payloadURL   string
	qrImage      []byte
	closed       bool
}

// NewFlow fetches the event and opens the flow in the details step. A fetch
// failure aborts before details are ever shown.
func NewFlow(ctx context.Context, client *ticketing.Client, encoder *credential.Encoder, tokens ticketing.TokenSource, eventID string, cfg Config, logger *slog.Logger) (*Flow, error) {
	if logger == nil {
		logger = slog.Default()
	}

	event, err := client.Event(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventUnavailable, err)
	}

	return &Flow{
		client:  client,
		encoder: encoder,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logger,
		state:   StateDetails,
		event:   event,
	}, nil
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Event() *models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.event
}

// ErrorMessage is the user-facing message from the last failed attempt,
// empty while none is pending.
func (f *Flow) ErrorMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

func (f *Flow) Progress() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress
}

func (f *Flow) Receipt() *models.BookingReceipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt
}

// PayloadURL is the credential verification URL, set on success.
func (f *Flow) PayloadURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloadURL
}

// QRImage is the encoded credential PNG, set on success.
func (f *Flow) QRImage() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.qrImage
}

// ProceedToPayment moves Details -> Payment. User-initiated, no side
// effects; a no-op from any other state.
func (f *Flow) ProceedToPayment() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateDetails {
		f.state = StatePayment
	}
}

// SubmitPayment runs one booking attempt to completion. Validation
// failures keep the flow in Payment without touching the network; remote
// failures roll back to Payment with the remote message; success lands in
// Success with the credential materialized. Only one attempt may be in
// flight at a time.
func (f *Flow) SubmitPayment(ctx context.Context, card PaymentCard) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	switch f.state {
	case StateProcessing:
		f.mu.Unlock()
		return ErrBusy
	case StatePayment:
	default:
		f.mu.Unlock()
		return fmt.Errorf("booking: cannot submit from %s", f.state)
	}

	if err := card.Validate(); err != nil {
		f.errMsg = err.Error()
		f.mu.Unlock()
		return err
	}

	f.errMsg = ""
	f.state = StateProcessing
	f.mu.Unlock()

	// Fresh idempotency key per processing entry: backing out and retrying
	// must not be rejected as a duplicate.
	reference, err := NewPaymentReference()
	if err != nil {
		f.fail(nil, genericFailure)
		return err
	}

	stop := f.startProgress()
	defer stop()

	// Simulated gateway settlement window.
	select {
	case <-ctx.Done():
		f.fail(stop, genericFailure)
		return ctx.Err()
	case <-time.After(f.cfg.GatewayDelay):
	}

	receipt, err := f.client.Book(ctx, f.event.ID, reference)
	if err != nil {
		message := err.Error()
		if message == "" {
			message = genericFailure
		}
		f.logger.Warn("booking attempt failed", "event_id", f.event.ID, "kind", ticketing.KindOf(err))
		f.fail(stop, message)
		return err
	}

	token, ok := f.tokens.Token()
	if !ok {
		f.fail(stop, genericFailure)
		return ticketing.NewEncodingError("booking: no session token for credential")
	}

	payloadURL, err := f.encoder.PayloadURL(receipt.TicketID, token)
	if err != nil {
		f.fail(stop, genericFailure)
		return err
	}
	qrImage, err := f.encoder.Encode(receipt.TicketID, token)
	if err != nil {
		f.fail(stop, genericFailure)
		return err
	}

	stop()
	f.mu.Lock()
	f.progress = 1.0
	f.receipt = receipt
	f.payloadURL = payloadURL
	f.qrImage = qrImage
	f.mu.Unlock()

	f.logger.Info("ticket booked", "event_id", f.event.ID, "ticket_id", receipt.TicketID)

	// Brief settle before flipping to success; cosmetic only.
	select {
	case <-ctx.Done():
	case <-time.After(f.cfg.SettleDelay):
	}

	f.mu.Lock()
	f.state = StateSuccess
	f.mu.Unlock()
	return nil
}

// Close tears the flow down, cancelling any running progress estimate.
// Safe to call at any point, including mid-submission.
func (f *Flow) Close() {
	f.mu.Lock()
	f.closed = true
	stop := f.stopProgress
	f.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// fail cancels the progress estimate, resets progress, and returns the
// flow to Payment carrying the user-facing message. Remote failures never
// land in Details or Success.
func (f *Flow) fail(stop func(), message string) {
	if stop != nil {
		stop()
	}
	f.mu.Lock()
	f.state = StatePayment
	f.progress = 0
	f.errMsg = message
	f.mu.Unlock()
}

// startProgress advances a visual estimate toward a ceiling below 1.0 on a
// fixed interval. The returned stop is idempotent and must run on every
// exit path from processing.
func (f *Flow) startProgress() func() {
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() { close(done) })
	}

	f.mu.Lock()
	f.progress = 0
	f.stopProgress = stop
	f.mu.Unlock()

	tick := f.cfg.ProgressTick
	if tick <= 0 {
		tick = 150 * time.Millisecond
	}

	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				f.mu.Lock()
				next := f.progress + f.cfg.ProgressStep
				if next > f.cfg.ProgressCeiling {
					next = f.cfg.ProgressCeiling
				}
				f.progress = next
				f.mu.Unlock()
			}
		}
	}()

	return stop
}
