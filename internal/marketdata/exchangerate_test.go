package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupExchangeRate(t *testing.T, handler http.HandlerFunc) *ExchangeRateClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewExchangeRateClient(ExchangeRateConfig{
		BaseURL:     server.URL,
		Timeout:     2 * time.Second,
		RetryConfig: fastRetry(),
	})
}

func TestExchangeRateClient_Latest(t *testing.T) {
	client := setupExchangeRate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/USD", r.URL.Path)
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"USD":1,"EUR":0.9,"GBP":0.79,"JPY":150.2}}`))
	})

	rates, err := client.Latest(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, 0.9, rates["EUR"])
	assert.Equal(t, 150.2, rates["JPY"])
	assert.Equal(t, "exchangerate", client.Name())
	assert.True(t, client.Health().Healthy())
}

func TestExchangeRateClient_EmptyTable(t *testing.T) {
	client := setupExchangeRate(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"USD"}`))
	})

	_, err := client.Latest(context.Background(), "USD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}
