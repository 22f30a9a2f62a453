package models

import (
	"github.com/shopspring/decimal"
)

// weiScale is the fixed-point scale used by the ledger for prices.
var weiScale = decimal.New(1, 18)

// Session is the authenticated identity established by OTP verification.
// The token is an opaque bearer credential; it is never decoded client-side.
type Session struct {
	Phone   string `json:"phone"`
	IsAdmin bool   `json:"isAdmin"`
	Token   string `json:"token"`
}

// Valid reports whether the session carries both required fields. A session
// missing either one is equivalent to no session at all.
func (s *Session) Valid() bool {
	return s != nil && s.Phone != "" && s.Token != ""
}

// Event is an immutable snapshot from the remote service. AvailableTickets
// is maintained remotely as capacity - ticketsSold; the client never
// recomputes it except for display.
type Event struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Location         string          `json:"location"`
	Date             int64           `json:"date"` // unix seconds
	Price            decimal.Decimal `json:"price"`
	Capacity         int64           `json:"capacity"`
	TicketsSold      int64           `json:"ticketsSold"`
	Active           bool            `json:"active"`
	AvailableTickets int64           `json:"availableTickets"`
}

// DisplayPrice converts the 10^18-scale fixed-point price to a 4-decimal
// string. The stored value is never mutated.
func (e *Event) DisplayPrice() string {
	return DisplayPrice(e.Price)
}

func (e *Event) SoldOut() bool {
	return e.AvailableTickets <= 0
}

// DisplayPrice renders a wei-scale amount with 4 decimal digits.
func DisplayPrice(p decimal.Decimal) string {
	return p.Div(weiScale).StringFixed(4)
}

// Ticket is minted server-side on a successful booking. Used transitions
// false -> true exactly once at the gate; the client treats it as read-only.
type Ticket struct {
	TicketID        string `json:"ticketId"`
	EventID         string `json:"eventId"`
	EventName       string `json:"eventName"`
	EventLocation   string `json:"eventLocation"`
	EventDate       int64  `json:"eventDate"`
	Used            bool   `json:"used"`
	PaymentID       string `json:"paymentId"`
	TransactionHash string `json:"transactionHash"`
}

// BookingRequest is the wire body for a booking. PaymentReference is the
// client-generated idempotency key, unique per attempt.
type BookingRequest struct {
	EventID          string `json:"eventId"`
	PaymentReference string `json:"paymentReference"`
}

// BookingReceipt is the remote service's answer to a successful mint.
type BookingReceipt struct {
	TicketID        string `json:"ticketId"`
	TransactionHash string `json:"transactionHash"`
}

// AuthUser is the user block of a verify-otp response.
type AuthUser struct {
	Phone   string `json:"phone"`
	IsAdmin bool   `json:"isAdmin"`
}

// AuthResult is the verify-otp response: the bearer token plus the
// identity it was issued for.
type AuthResult struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

// OTPChallenge is the send-otp response. OTP is populated only by
// non-production deployments for manual testing.
type OTPChallenge struct {
	OTP string `json:"otp,omitempty"`
}
