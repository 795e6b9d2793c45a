package models

import "time"

// PriceBar is one daily OHLCV bar.
type PriceBar struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes extracts closing prices in order.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

type Mover struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
	Volume float64 `json:"volume"`
	Type   string  `json:"type"`
}

// Tick is a single trade print from a live feed.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"t"` // unix millis
	Price     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

type Headline struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
	Summary   string    `json:"summary,omitempty"`
}

// TechnicalSummary is an oscillator/moving-average digest for a symbol.
type TechnicalSummary struct {
	Symbol         string  `json:"symbol"`
	Recommendation string  `json:"recommendation"`
	Score          float64 `json:"score"`
	MAScore        float64 `json:"ma_score"`
	OscScore       float64 `json:"oscillators_score"`
	RSI            float64 `json:"rsi"`
	Close          float64 `json:"close"`
}
