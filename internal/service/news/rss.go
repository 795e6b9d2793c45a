package news

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	gocache "github.com/patrickmn/go-cache"

	"MarketBrain/internal/domain/models"
	svcmetrics "MarketBrain/internal/service/metrics"
	"MarketBrain/pkg/logger"
)

const (
	DefaultBaseURL = "https://news.google.com/rss/search"
	sourceName     = "google_news"
)

type Config struct {
	BaseURL  string
	MaxItems int
	CacheTTL time.Duration
	Timeout  time.Duration
}

// RSS is a NewsSource reading the Google News search feed.
type RSS struct {
	cfg    Config
	parser *gofeed.Parser
	cache  *gocache.Cache
	log    *logger.Logger
}

func NewRSS(cfg Config, log *logger.Logger) *RSS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RSS{
		cfg:    cfg,
		parser: gofeed.NewParser(),
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		log:    log,
	}
}

// FetchNews returns the newest headlines mentioning symbol.
func (r *RSS) FetchNews(ctx context.Context, symbol string) ([]models.Headline, error) {
	if cached, ok := r.cache.Get(symbol); ok {
		return cached.([]models.Headline), nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	began := time.Now()
	feed, err := r.parser.ParseURLWithContext(r.feedURL(symbol), ctx)
	svcmetrics.Observe(sourceName, began, err)
	if err != nil {
		r.log.Warn("Failed to parse RSS feed", logger.String("symbol", symbol), logger.Error(err))
		return nil, fmt.Errorf("news feed %s: %w", symbol, err)
	}

	items := feed.Items
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PublishedParsed == nil || items[j].PublishedParsed == nil {
			return false
		}
		return items[i].PublishedParsed.After(*items[j].PublishedParsed)
	})

	out := make([]models.Headline, 0, r.cfg.MaxItems)
	for _, it := range items {
		if len(out) == r.cfg.MaxItems {
			break
		}
		h := models.Headline{
			Title:   strings.TrimSpace(it.Title),
			Link:    it.Link,
			Summary: StripHTML(it.Description),
		}
		if it.PublishedParsed != nil {
			h.Published = it.PublishedParsed.UTC()
		}
		if it.Author != nil {
			h.Source = it.Author.Name
		}
		out = append(out, h)
	}

	r.cache.SetDefault(symbol, out)
	return out, nil
}

func (r *RSS) feedURL(symbol string) string {
	q := url.Values{}
	q.Set("q", searchTerm(symbol)+" stock")
	q.Set("hl", "en-US")
	q.Set("gl", "US")
	q.Set("ceid", "US:en")
	return r.cfg.BaseURL + "?" + q.Encode()
}

// searchTerm drops exchange suffixes so "RELIANCE.NS" searches for "RELIANCE".
func searchTerm(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// StripHTML returns the visible text of an HTML fragment.
func StripHTML(fragment string) string {
	if !strings.ContainsRune(fragment, '<') {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Flush drops every cached feed.
func (r *RSS) Flush(context.Context) error {
	r.cache.Flush()
	return nil
}
