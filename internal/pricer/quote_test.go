package pricer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

const chartPayload = `{
  "chart": {
    "result": [
      {
        "meta": {
          "currency": "EUR",
          "symbol": "BTC-EUR",
          "regularMarketPrice": 57123.45
        }
      }
    ],
    "error": null
  }
}`

func TestQuotePricerGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/BTC-EUR", r.URL.Path)
		w.Write([]byte(chartPayload))
	}))
	defer srv.Close()

	p := NewQuotePricer(srv.URL, nil)
	price, err := p.GetPrice(context.Background(), domain.Pair{From: "BTC", To: "EUR"})
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromFloat(57123.45)), "got %s", price)
}

func TestQuotePricerNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewQuotePricer(srv.URL, nil)
	_, err := p.GetPrice(context.Background(), domain.Pair{From: "BTC", To: "EUR"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 429")
}

func TestQuotePricerEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	p := NewQuotePricer(srv.URL, nil)
	_, err := p.GetPrice(context.Background(), domain.Pair{From: "BTC", To: "EUR"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no result")
}

func TestQuotePricerMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>rate limited</html>`))
	}))
	defer srv.Close()

	p := NewQuotePricer(srv.URL, nil)
	_, err := p.GetPrice(context.Background(), domain.Pair{From: "BTC", To: "EUR"})
	require.Error(t, err)
}

func TestQuotePricerContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewQuotePricer(srv.URL, nil)
	_, err := p.GetPrice(ctx, domain.Pair{From: "BTC", To: "EUR"})
	require.Error(t, err)
}
