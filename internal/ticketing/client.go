package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hacktickets/models"
)

// TokenSource yields the current bearer token, if a session exists.
type TokenSource interface {
	Token() (string, bool)
}

// Client is the typed boundary to the remote ticketing service. It holds no
// state beyond attaching the bearer token; retry policy belongs to callers.
type Client struct {
	// baseURL is the base url of the ticketing backend.
	baseURL string

	// tokens yields the bearer token for authorized calls.
	tokens TokenSource

	// sink observes request outcomes.
	sink Sink

	logger *slog.Logger

	// hc is the http client.
	hc *http.Client
}

func NewClient(baseURL string, tokens TokenSource, sink Sink, timeout time.Duration, logger *slog.Logger) *Client {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		sink:    sink,
		logger:  logger,

		// set http client with timeout.
		hc: &http.Client{
			Timeout: timeout,
		},
	}
}

// SendOTP requests a one-time passcode for the phone number. Unauthenticated.
// Non-production deployments echo the OTP back for manual testing.
func (c *Client) SendOTP(ctx context.Context, phone string) (*models.OTPChallenge, error) {
	var reply models.OTPChallenge
	body := map[string]string{"phone": phone}
	if err := c.do(ctx, http.MethodPost, "/api/auth/send-otp", "send_otp", false, body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// VerifyOTP exchanges phone + OTP for a bearer token and the identity it
// was issued for. Unauthenticated.
func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (*models.AuthResult, error) {
	var reply models.AuthResult
	body := map[string]string{"phone": phone, "otp": otp}
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify-otp", "verify_otp", false, body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Events lists all events. Public.
func (c *Client) Events(ctx context.Context) ([]models.Event, error) {
	var reply []models.Event
	if err := c.do(ctx, http.MethodGet, "/api/events", "list_events", false, nil, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Event fetches one event by id. Public.
func (c *Client) Event(ctx context.Context, id string) (*models.Event, error) {
	var reply models.Event
	if err := c.do(ctx, http.MethodGet, "/api/events/"+id, "get_event", false, nil, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Bookings lists the caller's tickets. Authorized.
func (c *Client) Bookings(ctx context.Context) ([]models.Ticket, error) {
	var reply []models.Ticket
	if err := c.do(ctx, http.MethodGet, "/api/tickets/all-bookings", "list_bookings", true, nil, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Book submits one booking attempt. The paymentReference is the caller's
// idempotency key; the client makes exactly one request per call.
func (c *Client) Book(ctx context.Context, eventID, paymentReference string) (*models.BookingReceipt, error) {
	var reply models.BookingReceipt
	body := models.BookingRequest{EventID: eventID, PaymentReference: paymentReference}
	if err := c.do(ctx, http.MethodPost, "/api/tickets/book", "book", true, body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// do performs one request. Authorized calls attach the bearer token when a
// session exists; the token shape is never pre-validated client-side.
func (c *Client) do(ctx context.Context, method, path, operation string, authorized bool, body, out any) error {
	started := time.Now()

	var bodyReader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: json.Marshal: %w", operation, err)
		}
		bodyReader = bytes.NewReader(payload)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: http.NewReq: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if authorized && c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.sink.ObserveRequest(operation, "transport_error", time.Since(started))
		return &Error{Kind: KindRemote, Message: fmt.Sprintf("%s: %v", operation, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.sink.ObserveRequest(operation, "error", time.Since(started))
		return c.remoteError(operation, resp)
	}

	if out != nil {
		dec := json.NewDecoder(resp.Body)
		if err := dec.Decode(out); err != nil {
			c.sink.ObserveRequest(operation, "decode_error", time.Since(started))
			return &Error{Kind: KindRemote, Message: fmt.Sprintf("%s: json.Decode: %v", operation, err)}
		}
	}

	c.sink.ObserveRequest(operation, "ok", time.Since(started))
	c.logger.Debug("request completed", "operation", operation, "status", resp.StatusCode)
	return nil
}

// remoteError maps a non-2xx response to the error taxonomy, surfacing the
// remote-provided message unmodified when one is present.
func (c *Client) remoteError(operation string, resp *http.Response) error {
	var reply struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	dec := json.NewDecoder(resp.Body)
	_ = dec.Decode(&reply)

	message := reply.Error
	if message == "" {
		message = reply.Message
	}

	kind := KindRemote
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = KindAuth
	}

	c.logger.Warn("request failed", "operation", operation, "status", resp.StatusCode, "remote_message", message)

	return &Error{Kind: kind, Message: message, Status: resp.StatusCode}
}
