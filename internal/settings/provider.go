package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"storefront/internal/platform/metrics"
)

// Snapshot holds the pricing settings the cart derives totals from. Values
// are read live on every computation; the provider owns the only mutable
// copy.
type Snapshot struct {
	VATRatePercent        decimal.Decimal
	ShippingCost          decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// wire mirrors the settings endpoint payload. Fields are optional: the
// endpoint may carry only a subset and absent fields keep their current
// values.
type wire struct {
	VATRate               *decimal.Decimal `json:"vat_rate"`
	ShippingCost          *decimal.Decimal `json:"shipping_cost"`
	FreeShippingThreshold *decimal.Decimal `json:"free_shipping_threshold"`
}

// Provider serves the current settings snapshot and refreshes it from the
// settings endpoint. A failed refresh is logged and leaves the previous
// snapshot (initially the configured defaults) in place; settings
// unavailability never blocks cart operation.
type Provider struct {
	mu      sync.RWMutex
	current Snapshot

	url     string
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
}

type Option func(*Provider)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// NewProvider builds a provider seeded with defaults. The defaults apply
// until the first successful refresh, and again for any field the endpoint
// omits.
func NewProvider(url string, defaults Snapshot, opts ...Option) *Provider {
	p := &Provider{
		current: defaults,
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the live settings. Callers must not hold the result
// across suspension points they care about; re-read per computation.
func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Refresh fetches the settings endpoint and applies whatever fields it
// returns. Concurrent calls collapse into a single fetch. Failure is
// absorbed: the error is logged and the current snapshot stands.
func (p *Provider) Refresh(ctx context.Context) {
	_, _, _ = p.group.Do("refresh", func() (any, error) {
		if err := p.fetch(ctx); err != nil {
			p.metrics.IncrementSettingsRefreshFailures()
			p.logger.WarnContext(ctx, "settings refresh failed, keeping current snapshot", "error", err)
		}
		return nil, nil
	})
}

func (p *Provider) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build settings request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch settings: unexpected status %d", resp.StatusCode)
	}

	var w wire
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if w.VATRate != nil {
		p.current.VATRatePercent = *w.VATRate
	}
	if w.ShippingCost != nil {
		p.current.ShippingCost = *w.ShippingCost
	}
	if w.FreeShippingThreshold != nil {
		p.current.FreeShippingThreshold = *w.FreeShippingThreshold
	}
	return nil
}

// StartRefreshing refreshes immediately and then on every tick until ctx is
// cancelled. Intended to run in its own goroutine from main.
func (p *Provider) StartRefreshing(ctx context.Context, interval time.Duration) {
	p.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}
