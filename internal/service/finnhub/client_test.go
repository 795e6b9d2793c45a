package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketBrain/internal/domain/models"
)

func fakeFinnhub(t *testing.T, subscribed chan<- string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("token"))
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub["symbol"]

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"AAPL","p":191.2,"v":10,"t":1700000000000}]}`))

		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestClient_RunForwardsTrades(t *testing.T) {
	subscribed := make(chan string, 1)
	srv := fakeFinnhub(t, subscribed)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New("k", url, []string{"AAPL"}, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan models.Tick, 4)
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx, out) }()

	select {
	case s := <-subscribed:
		assert.Equal(t, "AAPL", s)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe")
	}

	select {
	case tick := <-out:
		assert.Equal(t, "AAPL", tick.Symbol)
		assert.Equal(t, 191.2, tick.Price)
		assert.Equal(t, int64(1700000000000), tick.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("no tick")
	}

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestClient_ClosedRefusesRun(t *testing.T) {
	c := New("k", "ws://127.0.0.1:1", nil, 0, nil)
	require.NoError(t, c.Close())
	err := c.Run(context.Background(), make(chan models.Tick))
	assert.ErrorIs(t, err, errClosed)
}

func TestClient_DialFailure(t *testing.T) {
	c := New("k", "ws://127.0.0.1:1", nil, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, c.Run(ctx, make(chan models.Tick)))
}
