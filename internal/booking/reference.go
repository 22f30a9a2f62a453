package booking

import (
	"fmt"
	"time"

	"hacktickets/utils"
)

// NewPaymentReference generates the idempotency key for one booking
// attempt: a millisecond timestamp plus 64 bits of randomness, so that
// concurrent attempts from the same client cannot collide in practice.
// A fresh key is generated on every entry into processing; a retried
// attempt therefore never trips the remote duplicate-key rejection, while
// a network-level replay of a single request still deduplicates.
func NewPaymentReference() (string, error) {
	random, err := utils.GenerateCode(8)
	if err != nil {
		return "", fmt.Errorf("payment reference: %w", err)
	}
	return fmt.Sprintf("PAY-%d-%s", time.Now().UnixMilli(), random), nil
}
