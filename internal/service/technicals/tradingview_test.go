package technicals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want Ticker
		ok   bool
	}{
		{"BTC-USD", Ticker{"crypto", "BINANCE", "BTCUSDT"}, true},
		{"RELIANCE.NS", Ticker{"india", "NSE", "RELIANCE"}, true},
		{"AAPL", Ticker{"america", "NASDAQ", "AAPL"}, true},
		{"^NSEI", Ticker{}, false},
		{"", Ticker{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Resolve(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecommendation(t *testing.T) {
	assert.Equal(t, "STRONG_BUY", Recommendation(0.6))
	assert.Equal(t, "BUY", Recommendation(0.2))
	assert.Equal(t, "NEUTRAL", Recommendation(0))
	assert.Equal(t, "SELL", Recommendation(-0.3))
	assert.Equal(t, "STRONG_SELL", Recommendation(-0.7))
}

func TestTradingView_FetchTechnicals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crypto/scan", r.URL.Path)
		var body scanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"BINANCE:BTCUSDT"}, body.Symbols.Tickers)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"s":"BINANCE:BTCUSDT","d":[0.55,0.7,0.1,64.2,67000.5]}],"totalCount":1}`))
	}))
	defer srv.Close()

	tv := NewTradingView(srv.URL, 0, nil, nil)
	got, err := tv.FetchTechnicals(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BTC-USD", got.Symbol)
	assert.Equal(t, "STRONG_BUY", got.Recommendation)
	assert.Equal(t, 64.2, got.RSI)
	assert.Equal(t, 67000.5, got.Close)
}

func TestTradingView_UnsupportedSymbol(t *testing.T) {
	tv := NewTradingView("http://127.0.0.1:1", 0, nil, nil)
	got, err := tv.FetchTechnicals(context.Background(), "^GSPC")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestTradingView_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"empty data", http.StatusOK, `{"data":[],"totalCount":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewTradingView(srv.URL, 0, nil, nil).FetchTechnicals(context.Background(), "AAPL")
			assert.Error(t, err)
			assert.Nil(t, got)
		})
	}
}
