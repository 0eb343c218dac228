// Package compliance wraps the Range risk-scoring API: one cached lookup per
// destination address, fail-safe on any transport problem.
package compliance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/jellydator/ttlcache/v3"

	"shadowprism/go-core/internal/config"
)

// DefaultScore is used when the scoring service is unreachable. Lookups fail
// safe to a low score so a scoring outage does not block transfers; forced
// audits still apply at the dispatch gate.
const DefaultScore = 0

type Client struct {
	http  *resty.Client
	base  string
	cache *ttlcache.Cache[string, int]
	log   *slog.Logger
}

func New(cfg config.Compliance, log *slog.Logger) *Client {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = config.DefaultRiskTTL
	}
	cache := ttlcache.New[string, int](ttlcache.WithTTL[string, int](ttl))
	go cache.Start()

	return &Client{
		http:  resty.New().SetTimeout(config.DefaultRequestTimeout),
		base:  cfg.BaseURL,
		cache: cache,
		log:   log,
	}
}

// CheckRisk returns the 0-100 risk score for a destination address, cached
// for roughly an hour per address.
func (c *Client) CheckRisk(ctx context.Context, address string) int {
	if item := c.cache.Get(address); item != nil {
		return item.Value()
	}
	score, err := c.fetch(ctx, address)
	if err != nil {
		c.log.Warn("risk lookup failed, using default score", "err", err)
		return DefaultScore
	}
	c.cache.Set(address, score, ttlcache.DefaultTTL)
	return score
}

func (c *Client) fetch(ctx context.Context, address string) (int, error) {
	if c.base == "" {
		return 0, fmt.Errorf("risk scoring service is not configured")
	}
	var body struct {
		Score int `json:"score"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("%s/v1/score/%s", c.base, address))
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("risk scoring service returned %s", resp.Status())
	}
	if body.Score < 0 || body.Score > 100 {
		return 0, fmt.Errorf("risk score %d out of range", body.Score)
	}
	return body.Score, nil
}

// Stop ends the cache eviction goroutine.
func (c *Client) Stop() {
	c.cache.Stop()
}
