package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"storefront/internal/cart/models"
	"storefront/internal/cart/store/snapshot"
	"storefront/internal/catalog"
	"storefront/internal/platform/metrics"
	"storefront/internal/settings"
)

// SettingsSource is the injected read accessor for live pricing settings.
// The service never caches a snapshot: every computation re-reads it.
type SettingsSource interface {
	Snapshot() settings.Snapshot
}

// Service owns the cart line state and derives all monetary totals. All
// mutations serialize under one mutex and persist the whole snapshot before
// returning, so rapid calls from independent triggers cannot lose updates.
//
// Persistence and settings failures are absorbed here: they are logged and
// the cart keeps operating, per the recovery contract of the engine.
type Service struct {
	mu     sync.Mutex
	lines  []models.Line
	isOpen bool

	store    snapshot.Store
	settings SettingsSource
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New builds the cart and immediately rehydrates it from the snapshot store.
// An unreadable store yields an empty cart, never a construction failure.
func New(ctx context.Context, store snapshot.Store, source SettingsSource, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if source == nil {
		return nil, fmt.Errorf("settings source is required")
	}

	s := &Service{
		store:    store,
		settings: source,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	lines, err := store.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cart snapshot unavailable, starting empty", "error", err)
		lines = nil
	}
	s.lines = lines

	return s, nil
}

// AddItem merges the product into the cart. An existing line keeps its
// original gross price and gains quantity; a new line freezes its gross
// price from the settings snapshot available right now. Quantities below 1
// are clamped to 1, never rejected. Opens the cart as a UI affordance.
func (s *Service) AddItem(ctx context.Context, product catalog.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if line := s.findLocked(product.ID); line != nil {
		line.Quantity += quantity
	} else {
		snap := s.settings.Snapshot()
		gross := product.NetPrice.
			Mul(decimal.NewFromInt(100).Add(snap.VATRatePercent)).
			Div(decimal.NewFromInt(100)).
			Round(2)
		s.lines = append(s.lines, models.Line{
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceGross: gross,
			Image:          product.Image,
			Category:       product.Category,
			Quantity:       quantity,
		})
	}

	s.isOpen = true
	s.metrics.IncrementItemsAdded(quantity)
	s.persistLocked(ctx)
}

// RemoveItem drops the matching line. A missing id is a no-op, not an
// error, and does not trigger a persist.
func (s *Service) RemoveItem(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.lines {
		if l.ProductID == productID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			s.persistLocked(ctx)
			return
		}
	}
}

// IncrementItem raises the line quantity by one. Unknown ids are a no-op.
func (s *Service) IncrementItem(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line := s.findLocked(productID); line != nil {
		line.Quantity++
		s.persistLocked(ctx)
	}
}

// DecrementItem lowers the line quantity by one; at quantity 1 the line is
// removed entirely. A quantity-0 line never exists.
func (s *Service) DecrementItem(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].ProductID != productID {
			continue
		}
		if s.lines[i].Quantity > 1 {
			s.lines[i].Quantity--
		} else {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		}
		s.persistLocked(ctx)
		return
	}
}

// Clear drops every line and persists the empty snapshot. Called by the
// checkout coordinator only after the order service confirms acceptance,
// and by explicit "empty cart" actions.
func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.persistLocked(ctx)
}

// ToggleOpen flips the ephemeral UI flag. Not part of the durable snapshot.
func (s *Service) ToggleOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isOpen = !s.isOpen
}

func (s *Service) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOpen
}

// Lines returns a copy of the current line sequence in insertion order.
func (s *Service) Lines() []models.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// TotalItems is the summed quantity across all lines.
func (s *Service) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

// Subtotal is the gross sum over all lines; zero for an empty cart.
func (s *Service) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subtotalLocked()
}

// ShippingFee is zero for an empty cart and zero once the subtotal reaches
// the free-shipping threshold (inclusive); otherwise the flat cost. Settings
// are re-read live on every call.
func (s *Service) ShippingFee() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shippingLocked()
}

// Total is subtotal plus shipping. The empty cart yields an explicit zero.
func (s *Service) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return decimal.Zero
	}
	return s.subtotalLocked().Add(s.shippingLocked())
}

func (s *Service) findLocked(productID string) *models.Line {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return &s.lines[i]
		}
	}
	return nil
}

func (s *Service) subtotalLocked() decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range s.lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	return subtotal
}

func (s *Service) shippingLocked() decimal.Decimal {
	if len(s.lines) == 0 {
		return decimal.Zero
	}
	snap := s.settings.Snapshot()
	if s.subtotalLocked().GreaterThanOrEqual(snap.FreeShippingThreshold) {
		return decimal.Zero
	}
	return snap.ShippingCost
}

func (s *Service) persistLocked(ctx context.Context) {
	if err := s.store.Save(ctx, s.lines); err != nil {
		s.metrics.IncrementSnapshotSaveFailures()
		s.logger.ErrorContext(ctx, "cart snapshot save failed", "error", err)
	}
}
