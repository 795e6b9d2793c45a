package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"MarketBrain/internal/domain/models"
)

// Analyst asks Gemini for trading signals and chart patterns.
type Analyst struct {
	g *Gemini
}

func NewAnalyst(g *Gemini) *Analyst { return &Analyst{g: g} }

type signalReply struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (a *Analyst) GenerateSignal(ctx context.Context, req models.SignalRequest) (models.SignalResult, error) {
	text, err := a.g.generate(ctx, signalPrompt(req))
	if err != nil {
		return models.SignalResult{}, err
	}
	var r signalReply
	if err := json.Unmarshal([]byte(stripFences(text)), &r); err != nil {
		return models.SignalResult{}, fmt.Errorf("decode signal: %w", err)
	}
	return models.SignalResult{
		Signal:     models.ParseSignal(r.Signal),
		Confidence: clamp01(r.Confidence),
		Rationale:  r.Reasoning,
	}, nil
}

type patternReply struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Reliability string   `json:"reliability"`
	StopLoss    *float64 `json:"stop_loss"`
	Target      *float64 `json:"target_price"`
}

func (a *Analyst) DetectPatterns(ctx context.Context, symbol string, history []models.PriceBar) ([]models.PatternCandidate, error) {
	if len(history) == 0 {
		return nil, nil
	}
	text, err := a.g.generate(ctx, patternPrompt(symbol, history))
	if err != nil {
		return nil, err
	}
	body := []byte(stripFences(text))

	var list []patternReply
	if err := json.Unmarshal(body, &list); err != nil {
		var wrapped struct {
			Patterns []patternReply `json:"patterns"`
		}
		if werr := json.Unmarshal(body, &wrapped); werr != nil {
			return nil, fmt.Errorf("decode patterns: %w", err)
		}
		list = wrapped.Patterns
	}

	out := make([]models.PatternCandidate, 0, len(list))
	for _, p := range list {
		if p.Name == "" {
			continue
		}
		t := models.PatternBullish
		if strings.EqualFold(p.Type, string(models.PatternBearish)) {
			t = models.PatternBearish
		}
		out = append(out, models.PatternCandidate{
			Name:        p.Name,
			Type:        t,
			Confidence:  reliability(p.Reliability),
			Description: p.Description,
			Target:      p.Target,
			StopLoss:    p.StopLoss,
			Source:      sourceName,
		})
	}
	return out, nil
}

func signalPrompt(req models.SignalRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a technical analyst known for confluence-based setups.\nAsset: %s\n\n", req.Symbol)

	b.WriteString("1. Technical overview:\n")
	if t := req.Technicals; t != nil {
		fmt.Fprintf(&b, "Overall recommendation: %s (score %.2f), moving averages %.2f, oscillators %.2f, RSI %.1f\n",
			t.Recommendation, t.Score, t.MAScore, t.OscScore, t.RSI)
	} else {
		b.WriteString("No technical data available.\n")
	}

	b.WriteString("\n2. Recent closes:\n")
	recent := req.History
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, p := range recent {
		fmt.Fprintf(&b, "%s: Close %.4f\n", p.Time.Format("2006-01-02"), p.Close)
	}

	b.WriteString("\n3. News:\n")
	for i, n := range req.News {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s (%s)\n", n.Title, n.Source)
	}

	fmt.Fprintf(&b, "\n4. Historical performance:\n%s\n", req.LearningContext)
	fmt.Fprintf(&b, "\nOnly call Buy or Sell with confidence of at least %.2f.\n", req.ConfidenceMin)
	b.WriteString(`Reply with JSON only: {"signal": "Buy"|"Sell"|"Neutral", "confidence": 0.0-1.0, "reasoning": "max 2 sentences"}`)
	return b.String()
}

func patternPrompt(symbol string, history []models.PriceBar) string {
	if len(history) > 30 {
		history = history[len(history)-30:]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Identify significant technical chart patterns in the daily OHLC data for %s.\n\n", symbol)
	for _, p := range history {
		fmt.Fprintf(&b, "%s: Open %.4f, High %.4f, Low %.4f, Close %.4f\n", p.Time.Format("2006-01-02"), p.Open, p.High, p.Low, p.Close)
	}
	b.WriteString("\nReply with a JSON list, empty when nothing is clear. Each item: ")
	b.WriteString(`{"name": "...", "type": "Bullish"|"Bearish", "description": "...", "reliability": "High"|"Medium"|"Low", "stop_loss": number, "target_price": number}`)
	return b.String()
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func reliability(r string) float64 {
	switch strings.ToLower(r) {
	case "high":
		return 0.8
	case "low":
		return 0.4
	default:
		return 0.6
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
