// Package market provides the display-only price oracle. Prices never feed
// settlement math that affects signed amounts.
package market

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/jellydator/ttlcache/v3"

	"shadowprism/go-core/internal/config"
)

// FallbackPrice is served when the market API is unreachable.
const FallbackPrice = 142.65

const lamportsPerSol = 1_000_000_000

type Oracle struct {
	http  *resty.Client
	base  string
	cache *ttlcache.Cache[string, float64]
	log   *slog.Logger
}

func New(cfg config.Market, log *slog.Logger) *Oracle {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = config.DefaultPriceTTL
	}
	cache := ttlcache.New[string, float64](ttlcache.WithTTL[string, float64](ttl))
	go cache.Start()

	return &Oracle{
		http:  resty.New().SetTimeout(config.DefaultRequestTimeout),
		base:  cfg.BaseURL,
		cache: cache,
		log:   log,
	}
}

// Price returns the USD price for an asset pair such as "SOL-USD", cached for
// roughly five minutes.
func (o *Oracle) Price(ctx context.Context, pair string) float64 {
	if item := o.cache.Get(pair); item != nil {
		return item.Value()
	}
	price, err := o.fetch(ctx, pair)
	if err != nil {
		o.log.Warn("price lookup failed, using fallback", "pair", pair, "err", err)
		return FallbackPrice
	}
	o.cache.Set(pair, price, ttlcache.DefaultTTL)
	return price
}

func (o *Oracle) fetch(ctx context.Context, pair string) (float64, error) {
	if o.base == "" {
		return 0, fmt.Errorf("market API is not configured")
	}
	var body struct {
		Price float64 `json:"price"`
	}
	resp, err := o.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("%s/v1/price/%s", o.base, pair))
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("market API returned %s", resp.Status())
	}
	if body.Price <= 0 {
		return 0, fmt.Errorf("market API returned non-positive price %v", body.Price)
	}
	return body.Price, nil
}

// FormatUSD renders a lamport amount as a USD string at the given price.
func FormatUSD(lamports uint64, solPrice float64) string {
	usd := float64(lamports) / lamportsPerSol * solPrice
	return fmt.Sprintf("$%.2f", usd)
}

// Stop ends the cache eviction goroutine.
func (o *Oracle) Stop() {
	o.cache.Stop()
}
