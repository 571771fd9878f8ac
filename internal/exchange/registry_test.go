package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewBinanceAdapter("", "", ""))
	reg.Register(NewBybitAdapter("", "", ""))

	a, err := reg.Get("binance")
	require.NoError(t, err)
	assert.Equal(t, "binance", a.Name())

	assert.Equal(t, []string{"binance", "bybit"}, reg.Names())
	assert.Len(t, reg.All(), 2)
}

func TestRegistryUnknownAdapter(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("okx")
	assert.ErrorIs(t, err, domain.ErrAdapterNotFound)
}

func TestBybitFetchOrderNotImplemented(t *testing.T) {
	b := NewBybitAdapter("", "key", "secret")

	_, err := b.FetchOrder(context.Background(), "BTCUSDT", "42")
	assert.ErrorIs(t, err, domain.ErrNotImplemented)
}

func TestHMACSignature(t *testing.T) {
	// Stable vector so signing regressions are caught without hitting a venue.
	sig := hmacSHA256Hex("secret", "message")
	assert.Equal(t, "8b5f48702995c1598c573db1e21866a9b825d4a794d169d7060a03605796360b", sig)
}
