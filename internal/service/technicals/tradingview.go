package technicals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"MarketBrain/internal/domain/models"
	svcmetrics "MarketBrain/internal/service/metrics"
	"MarketBrain/internal/service/ratelimit"
	"MarketBrain/pkg/logger"
)

const (
	DefaultBaseURL = "https://scanner.tradingview.com"
	sourceName     = "tradingview"
)

var columns = []string{"Recommend.All", "Recommend.MA", "Recommend.Other", "RSI", "close"}

// Ticker is a symbol resolved to a TradingView screener and exchange.
type Ticker struct {
	Screener string
	Exchange string
	Symbol   string
}

func (t Ticker) String() string { return t.Exchange + ":" + t.Symbol }

// Resolve maps a Yahoo-style symbol onto TradingView. Indices ("^...") are
// not supported and resolve to false.
func Resolve(symbol string) (Ticker, bool) {
	switch {
	case symbol == "" || strings.HasPrefix(symbol, "^"):
		return Ticker{}, false
	case strings.Contains(symbol, "-USD"):
		return Ticker{Screener: "crypto", Exchange: "BINANCE", Symbol: strings.Replace(symbol, "-USD", "USDT", 1)}, true
	case strings.HasSuffix(symbol, ".NS"):
		return Ticker{Screener: "india", Exchange: "NSE", Symbol: strings.TrimSuffix(symbol, ".NS")}, true
	default:
		return Ticker{Screener: "america", Exchange: "NASDAQ", Symbol: symbol}, true
	}
}

// Recommendation converts a Recommend.* score in [-1, 1] into a label.
func Recommendation(score float64) string {
	switch {
	case score >= 0.5:
		return "STRONG_BUY"
	case score >= 0.1:
		return "BUY"
	case score > -0.1:
		return "NEUTRAL"
	case score > -0.5:
		return "SELL"
	default:
		return "STRONG_SELL"
	}
}

type scanRequest struct {
	Symbols struct {
		Tickers []string `json:"tickers"`
		Query   struct {
			Types []string `json:"types"`
		} `json:"query"`
	} `json:"symbols"`
	Columns []string `json:"columns"`
}

type scanResponse struct {
	Data []struct {
		S string     `json:"s"`
		D []*float64 `json:"d"`
	} `json:"data"`
	TotalCount int `json:"totalCount"`
}

// TradingView is a TechnicalsSource backed by the TradingView scanner API.
type TradingView struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

func NewTradingView(baseURL string, timeout time.Duration, limiter *ratelimit.Limiter, log *logger.Logger) *TradingView {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	return &TradingView{client: client, limiter: limiter, log: log}
}

// FetchTechnicals returns the daily technical digest for symbol, or nil
// without error when the symbol cannot be resolved.
func (tv *TradingView) FetchTechnicals(ctx context.Context, symbol string) (*models.TechnicalSummary, error) {
	ticker, ok := Resolve(symbol)
	if !ok {
		return nil, nil
	}
	if tv.limiter != nil {
		if err := tv.limiter.Wait(ctx, sourceName); err != nil {
			return nil, err
		}
	}

	var req scanRequest
	req.Symbols.Tickers = []string{ticker.String()}
	req.Symbols.Query.Types = []string{}
	req.Columns = columns

	var out scanResponse
	began := time.Now()
	resp, err := tv.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/" + ticker.Screener + "/scan")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("tradingview status %d", resp.StatusCode())
	}
	svcmetrics.Observe(sourceName, began, err)
	if err != nil {
		tv.log.Warn("TradingView request failed", logger.String("symbol", symbol), logger.Error(err))
		return nil, err
	}

	if len(out.Data) == 0 || len(out.Data[0].D) < len(columns) {
		return nil, fmt.Errorf("tradingview: no data for %s", ticker)
	}
	d := out.Data[0].D
	val := func(i int) float64 {
		if d[i] == nil {
			return 0
		}
		return *d[i]
	}

	return &models.TechnicalSummary{
		Symbol:         symbol,
		Recommendation: Recommendation(val(0)),
		Score:          val(0),
		MAScore:        val(1),
		OscScore:       val(2),
		RSI:            val(3),
		Close:          val(4),
	}, nil
}
