package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBotAPI(t *testing.T, sent chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"brain","username":"brain_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.PostForm.Get("chat_id"))
			sent <- r.PostForm.Get("text")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestTelegram_Notify(t *testing.T) {
	sent := make(chan string, 1)
	srv := fakeBotAPI(t, sent)
	defer srv.Close()

	tg, err := NewTelegramWithEndpoint("token", srv.URL+"/bot%s/%s", srv.Client(), 42)
	require.NoError(t, err)

	require.NoError(t, tg.Notify(context.Background(), "⚠️ brain loop CRITICAL: boom"))
	assert.Equal(t, "⚠️ brain loop CRITICAL: boom", <-sent)
}

func TestTelegram_NotifyCancelled(t *testing.T) {
	sent := make(chan string, 1)
	srv := fakeBotAPI(t, sent)
	defer srv.Close()

	tg, err := NewTelegramWithEndpoint("token", srv.URL+"/bot%s/%s", srv.Client(), 42)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tg.Notify(ctx, "x"), context.Canceled)
	assert.Empty(t, sent)
}
