package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hacktickets/internal/credential"
	"hacktickets/internal/ticketing"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Token() (string, bool) {
	return s.token, s.token != ""
}

// remoteStub is a minimal rendition of the two endpoints the flow touches.
type remoteStub struct {
	mu         sync.Mutex
	eventFails bool
	bookStatus int    // 0 means success
	bookError  string // error body for failed bookings, empty for no body
	bookCalls  int
	references []string
}

func (s *remoteStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.mu.Lock()
		fails := s.eventFails
		s.mu.Unlock()
		if fails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id":"7","name":"Gig","location":"Docks","date":1764547200,"price":250000000000000000,"capacity":100,"ticketsSold":40,"active":true,"availableTickets":60}`))
	})
	mux.HandleFunc("/api/tickets/book", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			EventID          string `json:"eventId"`
			PaymentReference string `json:"paymentReference"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		s.bookCalls++
		s.references = append(s.references, req.PaymentReference)
		status, body := s.bookStatus, s.bookError
		s.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			if body != "" {
				json.NewEncoder(w).Encode(map[string]string{"error": body})
			}
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ticketId": "42", "transactionHash": "0xdeadbeef"})
	})
	return mux
}

func (s *remoteStub) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookCalls
}

func (s *remoteStub) refs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.references...)
}

func testConfig() Config {
	return Config{
		GatewayDelay:    0,
		SettleDelay:     0,
		ProgressTick:    5 * time.Millisecond,
		ProgressStep:    0.05,
		ProgressCeiling: 0.9,
	}
}

func newTestFlow(t *testing.T, stub *remoteStub) *Flow {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	client := ticketing.NewClient(srv.URL, staticTokens{token: "T1"}, nil, 5*time.Second, nil)
	encoder := credential.NewEncoder(srv.URL, 300, 2)

	flow, err := NewFlow(context.Background(), client, encoder, staticTokens{token: "T1"}, "7", testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(flow.Close)
	return flow
}

func TestNewFlow_EventFetchFailureAbortsBeforeDetails(t *testing.T) {
	stub := &remoteStub{eventFails: true}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	client := ticketing.NewClient(srv.URL, nil, nil, 5*time.Second, nil)
	encoder := credential.NewEncoder(srv.URL, 300, 2)

	_, err := NewFlow(context.Background(), client, encoder, staticTokens{}, "7", testConfig(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEventUnavailable)
}

func TestFlow_OpensInDetails(t *testing.T) {
	flow := newTestFlow(t, &remoteStub{})

	assert.Equal(t, StateDetails, flow.State())
	require.NotNil(t, flow.Event())
	assert.Equal(t, "Gig", flow.Event().Name)
	assert.Equal(t, "0.2500", flow.Event().DisplayPrice())
}

func TestFlow_ProceedToPayment(t *testing.T) {
	flow := newTestFlow(t, &remoteStub{})

	flow.ProceedToPayment()
	assert.Equal(t, StatePayment, flow.State())

	// Repeat calls are harmless.
	flow.ProceedToPayment()
	assert.Equal(t, StatePayment, flow.State())
}

func TestFlow_SubmitFromDetailsRejected(t *testing.T) {
	flow := newTestFlow(t, &remoteStub{})

	err := flow.SubmitPayment(context.Background(), validCard())
	require.Error(t, err)
	assert.Equal(t, StateDetails, flow.State())
}

func TestFlow_LocalValidationNeverTouchesNetwork(t *testing.T) {
	stub := &remoteStub{}
	flow := newTestFlow(t, stub)
	flow.ProceedToPayment()

	card := validCard()
	card.Number = "4111 1111 1111" // 15 digits

	err := flow.SubmitPayment(context.Background(), card)
	require.Error(t, err)

	assert.Equal(t, ticketing.KindValidation, ticketing.KindOf(err))
	assert.Equal(t, StatePayment, flow.State())
	assert.Equal(t, "Enter a valid 16-digit card number", flow.ErrorMessage())
	assert.Zero(t, stub.calls())
}

func TestFlow_SuccessfulBooking(t *testing.T) {
	stub := &remoteStub{}
	flow := newTestFlow(t, stub)
	flow.ProceedToPayment()

	require.NoError(t, flow.SubmitPayment(context.Background(), validCard()))

	assert.Equal(t, StateSuccess, flow.State())
	assert.Equal(t, 1.0, flow.Progress())
	assert.Empty(t, flow.ErrorMessage())

	require.NotNil(t, flow.Receipt())
	assert.Equal(t, "42", flow.Receipt().TicketID)
	assert.Equal(t, "0xdeadbeef", flow.Receipt().TransactionHash)

	assert.Contains(t, flow.PayloadURL(), "/verifyme/42/T1")
	assert.NotEmpty(t, flow.QRImage())

	refs := stub.refs()
	require.Len(t, refs, 1)
	assert.Regexp(t, `^PAY-\d+-[0-9A-F]{16}$`, refs[0])
}

func TestFlow_RemoteFailureRollsBackToPayment(t *testing.T) {
	stub := &remoteStub{bookStatus: http.StatusInternalServerError, bookError: "mint failed"}
	flow := newTestFlow(t, stub)
	flow.ProceedToPayment()

	err := flow.SubmitPayment(context.Background(), validCard())
	require.Error(t, err)

	assert.Equal(t, StatePayment, flow.State())
	assert.Equal(t, 0.0, flow.Progress())
	assert.Equal(t, "mint failed", flow.ErrorMessage())

	// A second attempt is accepted and carries a fresh idempotency key.
	stub.mu.Lock()
	stub.bookStatus = 0
	stub.mu.Unlock()

	require.NoError(t, flow.SubmitPayment(context.Background(), validCard()))
	assert.Equal(t, StateSuccess, flow.State())

	refs := stub.refs()
	require.Len(t, refs, 2)
	assert.NotEqual(t, refs[0], refs[1])
}

func TestFlow_RemoteFailureWithoutMessageUsesFallback(t *testing.T) {
	stub := &remoteStub{bookStatus: http.StatusInternalServerError}
	flow := newTestFlow(t, stub)
	flow.ProceedToPayment()

	require.Error(t, flow.SubmitPayment(context.Background(), validCard()))
	assert.Equal(t, "Booking failed. Try again.", flow.ErrorMessage())
}

func TestFlow_AuthFailureSurfacesAsPaymentFailure(t *testing.T) {
	stub := &remoteStub{bookStatus: http.StatusUnauthorized, bookError: "token expired"}
	flow := newTestFlow(t, stub)
	flow.ProceedToPayment()

	err := flow.SubmitPayment(context.Background(), validCard())
	require.Error(t, err)

	// Stale-session handling is the caller's decision; the flow only
	// reports the failure and returns to payment.
	assert.Equal(t, ticketing.KindAuth, ticketing.KindOf(err))
	assert.Equal(t, StatePayment, flow.State())
	assert.Equal(t, "token expired", flow.ErrorMessage())
}

func TestFlow_RejectsReentrantSubmission(t *testing.T) {
	stub := &remoteStub{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	client := ticketing.NewClient(srv.URL, staticTokens{token: "T1"}, nil, 5*time.Second, nil)
	encoder := credential.NewEncoder(srv.URL, 300, 2)

	cfg := testConfig()
	cfg.GatewayDelay = 200 * time.Millisecond

	flow, err := NewFlow(context.Background(), client, encoder, staticTokens{token: "T1"}, "7", cfg, nil)
	require.NoError(t, err)
	t.Cleanup(flow.Close)
	flow.ProceedToPayment()

	done := make(chan error, 1)
	go func() {
		done <- flow.SubmitPayment(context.Background(), validCard())
	}()

	require.Eventually(t, func() bool {
		return flow.State() == StateProcessing
	}, time.Second, time.Millisecond)

	err = flow.SubmitPayment(context.Background(), validCard())
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, <-done)
	assert.Equal(t, StateSuccess, flow.State())
	assert.Equal(t, 1, stub.calls())
}

func TestFlow_ProgressAdvancesTowardCeilingDuringProcessing(t *testing.T) {
	stub := &remoteStub{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	client := ticketing.NewClient(srv.URL, staticTokens{token: "T1"}, nil, 5*time.Second, nil)
	encoder := credential.NewEncoder(srv.URL, 300, 2)

	cfg := testConfig()
	cfg.GatewayDelay = 150 * time.Millisecond
	cfg.ProgressTick = 5 * time.Millisecond

	flow, err := NewFlow(context.Background(), client, encoder, staticTokens{token: "T1"}, "7", cfg, nil)
	require.NoError(t, err)
	t.Cleanup(flow.Close)
	flow.ProceedToPayment()

	done := make(chan error, 1)
	go func() {
		done <- flow.SubmitPayment(context.Background(), validCard())
	}()

	// The estimate advances but never completes on its own.
	require.Eventually(t, func() bool {
		p := flow.Progress()
		return p > 0 && p <= 0.9 && flow.State() == StateProcessing
	}, time.Second, time.Millisecond)

	require.NoError(t, <-done)
	assert.Equal(t, 1.0, flow.Progress())
}

func TestFlow_CloseRejectsFurtherSubmissions(t *testing.T) {
	flow := newTestFlow(t, &remoteStub{})
	flow.ProceedToPayment()
	flow.Close()

	err := flow.SubmitPayment(context.Background(), validCard())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFlow_CancelledContextRollsBack(t *testing.T) {
	stub := &remoteStub{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	client := ticketing.NewClient(srv.URL, staticTokens{token: "T1"}, nil, 5*time.Second, nil)
	encoder := credential.NewEncoder(srv.URL, 300, 2)

	cfg := testConfig()
	cfg.GatewayDelay = time.Minute

	flow, err := NewFlow(context.Background(), client, encoder, staticTokens{token: "T1"}, "7", cfg, nil)
	require.NoError(t, err)
	t.Cleanup(flow.Close)
	flow.ProceedToPayment()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- flow.SubmitPayment(ctx, validCard())
	}()

	require.Eventually(t, func() bool {
		return flow.State() == StateProcessing
	}, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, StatePayment, flow.State())
	assert.Equal(t, 0.0, flow.Progress())
	assert.Zero(t, stub.calls())
}
