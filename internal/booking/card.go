package booking

import (
	"regexp"
	"strings"

	"hacktickets/internal/ticketing"
)

var (
	nonDigits     = regexp.MustCompile(`\D`)
	expiryPattern = regexp.MustCompile(`^\d{2}/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3,4}$`)
)

// PaymentCard is the simulated gateway input. The fields gate progression
// out of the payment step but are never transmitted anywhere.
type PaymentCard struct {
	Number string
	Holder string
	Expiry string
	CVV    string
}

// Validate checks the card shape locally. Failures are validation-kind
// errors and never reach the network layer.
func (c PaymentCard) Validate() error {
	if len(nonDigits.ReplaceAllString(c.Number, "")) < 16 {
		return ticketing.NewValidationError("Enter a valid 16-digit card number")
	}
	if strings.TrimSpace(c.Holder) == "" {
		return ticketing.NewValidationError("Enter cardholder name")
	}
	if !expiryPattern.MatchString(c.Expiry) {
		return ticketing.NewValidationError("Enter valid expiry (MM/YY)")
	}
	if !cvvPattern.MatchString(c.CVV) {
		return ticketing.NewValidationError("Enter valid CVV")
	}
	return nil
}

// FormatCardNumber groups the digits in fours for display, capped at a
// 16-digit card's worth of input.
func FormatCardNumber(value string) string {
	digits := nonDigits.ReplaceAllString(value, "")
	if len(digits) > 16 {
		digits = digits[:16]
	}

	var groups []string
	for i := 0; i < len(digits); i += 4 {
		end := i + 4
		if end > len(digits) {
			end = len(digits)
		}
		groups = append(groups, digits[i:end])
	}
	return strings.Join(groups, " ")
}

// FormatExpiry inserts the MM/YY separator once the month is complete.
func FormatExpiry(value string) string {
	digits := nonDigits.ReplaceAllString(value, "")
	if len(digits) > 4 {
		digits = digits[:4]
	}
	if len(digits) > 2 {
		return digits[:2] + "/" + digits[2:]
	}
	return digits
}
