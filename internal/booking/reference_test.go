package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaymentReference_Format(t *testing.T) {
	ref, err := NewPaymentReference()
	require.NoError(t, err)

	assert.Regexp(t, `^PAY-\d+-[0-9A-F]{16}$`, ref)
}

func TestNewPaymentReference_PairwiseDistinct(t *testing.T) {
	seen := make(map[string]bool, 10000)

	for i := 0; i < 10000; i++ {
		ref, err := NewPaymentReference()
		require.NoError(t, err)
		require.False(t, seen[ref], "duplicate payment reference %s", ref)
		seen[ref] = true
	}
}
