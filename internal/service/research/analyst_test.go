package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketBrain/internal/domain/models"
)

// geminiReplying serves a generateContent response whose text is reply.
func geminiReplying(t *testing.T, reply string) *Gemini {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []interface{}{map[string]string{"text": reply}},
				},
			},
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	g, err := NewGemini(context.Background(), Config{APIKey: "k", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	return g
}

func history(n int) []models.PriceBar {
	out := make([]models.PriceBar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.PriceBar{Symbol: "AAPL", Time: start.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100 + float64(i)}
	}
	return out
}

func TestAnalyst_GenerateSignal(t *testing.T) {
	a := NewAnalyst(geminiReplying(t, "```json\n{\"signal\":\"BUY\",\"confidence\":1.4,\"reasoning\":\"Higher highs.\"}\n```"))

	got, err := a.GenerateSignal(context.Background(), models.SignalRequest{Symbol: "AAPL", History: history(10)})
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, got.Signal)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, "Higher highs.", got.Rationale)
}

func TestAnalyst_GenerateSignalBadJSON(t *testing.T) {
	a := NewAnalyst(geminiReplying(t, "I think it goes up"))
	_, err := a.GenerateSignal(context.Background(), models.SignalRequest{Symbol: "AAPL"})
	assert.Error(t, err)
}

func TestAnalyst_DetectPatterns(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"list", `[{"name":"Bull Flag","type":"Bullish","reliability":"High","stop_loss":95,"target_price":120},{"name":""}]`},
		{"wrapped", `{"patterns":[{"name":"Bull Flag","type":"Bullish","reliability":"High","stop_loss":95,"target_price":120}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyst(geminiReplying(t, tt.reply))
			got, err := a.DetectPatterns(context.Background(), "AAPL", history(40))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "Bull Flag", got[0].Name)
			assert.Equal(t, models.PatternBullish, got[0].Type)
			assert.Equal(t, 0.8, got[0].Confidence)
			require.NotNil(t, got[0].Target)
			assert.Equal(t, 120.0, *got[0].Target)
			assert.Equal(t, 95.0, *got[0].StopLoss)
		})
	}
}

func TestPatternPrompt_UsesLastThirtyBars(t *testing.T) {
	p := patternPrompt("AAPL", history(40))
	assert.NotContains(t, p, "2024-01-10:")
	assert.Contains(t, p, "2024-01-11:")
	assert.Contains(t, p, "2024-02-09:")
}
