// Package feed provides the market data client: an HTTP snapshot
// endpoint for on-demand refresh and a WebSocket stream for live
// updates. Both feed the same cached view, which is what the rest of
// the system consumes through domain.PriceSource.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/domain"
)

const (
	requestTimeout = 10 * time.Second

	// DefaultStaleThreshold is how old a cached view may be before
	// View() refuses to serve it.
	DefaultStaleThreshold = 5 * time.Minute
)

// Config holds the feed endpoints.
type Config struct {
	BaseURL        string        // HTTP snapshot endpoint base
	WebSocketURL   string        // streaming endpoint, optional
	StaleThreshold time.Duration // zero means DefaultStaleThreshold
}

// Client is the market data client. It implements domain.PriceSource.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger

	cacheMu  sync.RWMutex
	view     domain.MarketView
	hasView  bool
	onUpdate func(domain.MarketView)
}

// NewClient creates a feed client. The cache starts empty; call Refresh
// or Start before the first View.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.StaleThreshold == 0 {
		cfg.StaleThreshold = DefaultStaleThreshold
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log.With().Str("component", "feed_client").Logger(),
	}
}

// OnUpdate registers a callback invoked on every accepted view update.
// Must be set before Start; it runs on the client's goroutines.
func (c *Client) OnUpdate(fn func(domain.MarketView)) {
	c.onUpdate = fn
}

// Seed primes the cache, typically from the persisted last view so a
// restart can render prices before the feed answers.
func (c *Client) Seed(view domain.MarketView) {
	c.store(view)
}

// View returns the cached market view. It fails when the cache is empty
// or older than the stale threshold; previews must not run on dead prices.
func (c *Client) View() (domain.MarketView, error) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	if !c.hasView {
		return domain.MarketView{}, fmt.Errorf("no market view available yet")
	}
	if age := time.Since(c.view.AsOf); age > c.cfg.StaleThreshold {
		return domain.MarketView{}, fmt.Errorf("market view is stale: %s old", age.Round(time.Second))
	}
	return c.view, nil
}

// wireView is the feed's snapshot payload.
type wireView struct {
	AsOf           time.Time          `json:"as_of"`
	USDPrice       map[string]float64 `json:"usd_price"`
	IrrPerUSD      float64            `json:"irr_per_usd"`
	HighVolatility bool               `json:"high_volatility"`
}

func (w wireView) toDomain() (domain.MarketView, error) {
	if w.IrrPerUSD <= 0 {
		return domain.MarketView{}, fmt.Errorf("invalid irr_per_usd %v", w.IrrPerUSD)
	}
	if len(w.USDPrice) == 0 {
		return domain.MarketView{}, fmt.Errorf("empty price map")
	}
	for id, price := range w.USDPrice {
		if price <= 0 {
			return domain.MarketView{}, fmt.Errorf("invalid price %v for %s", price, id)
		}
	}
	return domain.MarketView{
		AsOf:           w.AsOf,
		USDPrice:       w.USDPrice,
		IrrPerUSD:      w.IrrPerUSD,
		HighVolatility: w.HighVolatility,
	}, nil
}

// Refresh fetches a fresh snapshot over HTTP and updates the cache.
func (c *Client) Refresh(ctx context.Context) (domain.MarketView, error) {
	url := c.cfg.BaseURL + "/v1/prices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.MarketView{}, fmt.Errorf("build prices request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MarketView{}, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.MarketView{}, fmt.Errorf("prices endpoint returned %d", resp.StatusCode)
	}

	var wire wireView
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return domain.MarketView{}, fmt.Errorf("decode prices response: %w", err)
	}
	view, err := wire.toDomain()
	if err != nil {
		return domain.MarketView{}, fmt.Errorf("invalid prices response: %w", err)
	}

	c.store(view)
	c.log.Debug().Time("as_of", view.AsOf).Int("assets", len(view.USDPrice)).Msg("Refreshed market view")
	return view, nil
}

// store accepts a view into the cache unless it is older than the one
// already cached. Out-of-order stream frames must not rewind time.
func (c *Client) store(view domain.MarketView) {
	c.cacheMu.Lock()
	if c.hasView && view.AsOf.Before(c.view.AsOf) {
		c.cacheMu.Unlock()
		c.log.Debug().Time("as_of", view.AsOf).Msg("Dropped out-of-order view")
		return
	}
	c.view = view
	c.hasView = true
	fn := c.onUpdate
	c.cacheMu.Unlock()

	if fn != nil {
		fn(view)
	}
}
