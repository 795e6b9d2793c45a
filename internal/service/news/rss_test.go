package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>news</title>
<item><title>Older headline</title><link>https://ex.com/1</link>
<pubDate>Mon, 04 Mar 2024 10:00:00 GMT</pubDate>
<description>&lt;a href="x"&gt;Older&lt;/a&gt; story</description></item>
<item><title>Newer headline</title><link>https://ex.com/2</link>
<pubDate>Tue, 05 Mar 2024 10:00:00 GMT</pubDate>
<description>plain</description></item>
</channel></rss>`

func TestRSS_FetchNews(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "RELIANCE stock", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	r := NewRSS(Config{BaseURL: srv.URL}, nil)

	got, err := r.FetchNews(context.Background(), "RELIANCE.NS")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Newer headline", got[0].Title)
	assert.Equal(t, "Older story", got[1].Summary)
	assert.Equal(t, 2024, got[0].Published.Year())

	// second call is served from cache
	_, err = r.FetchNews(context.Background(), "RELIANCE.NS")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRSS_MaxItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	got, err := NewRSS(Config{BaseURL: srv.URL, MaxItems: 1}, nil).FetchNews(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRSS_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRSS(Config{BaseURL: srv.URL}, nil).FetchNews(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello world", StripHTML(`<p>Hello <b>world</b></p>`))
	assert.Equal(t, "plain", StripHTML("  plain "))
}

func TestRSS_Flush(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	r := NewRSS(Config{BaseURL: srv.URL}, nil)
	_, err := r.FetchNews(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NoError(t, r.Flush(context.Background()))
	_, err = r.FetchNews(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
