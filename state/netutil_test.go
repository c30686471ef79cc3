package state

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubtractPrefix(t *testing.T) {
	got := SubtractPrefix(
		[]netip.Prefix{netip.MustParsePrefix("10.0.0.0/24")},
		[]netip.Prefix{netip.MustParsePrefix("10.0.0.128/25")},
	)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/25")}, got)
}

func TestSubtractPrefixCoalesces(t *testing.T) {
	got := SubtractPrefix(
		[]netip.Prefix{
			netip.MustParsePrefix("10.0.0.0/31"),
			netip.MustParsePrefix("10.0.0.2/31"),
		},
		nil,
	)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/30")}, got)
}
