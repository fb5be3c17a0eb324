package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/auth"
	"storefront/internal/cart/models"
	"storefront/internal/platform/metrics"
)

// Cart is the slice of the cart service the coordinator needs.
type Cart interface {
	Lines() []models.Line
	Total() decimal.Decimal
	Clear(ctx context.Context)
}

// OrderService submits the payload with the given bearer credential and
// returns a confirmation, a *RejectionError, or a transport error.
type OrderService interface {
	Submit(ctx context.Context, token string, payload OrderPayload) (*Confirmation, error)
}

// EventSink receives notification of confirmed orders. Publication is
// fire-and-forget; it can never fail or delay a checkout.
type EventSink interface {
	OrderPlaced(ctx context.Context, confirmation Confirmation, payload OrderPayload)
}

// Coordinator drives checkout. It is safe for concurrent use, but a second
// Submit while one is pending fails with ErrCheckoutInFlight rather than
// racing two submissions.
type Coordinator struct {
	cart     Cart
	creds    auth.TokenSource
	orders   OrderService
	inFlight atomic.Bool

	events  EventSink
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithEventSink(sink EventSink) Option {
	return func(c *Coordinator) {
		c.events = sink
	}
}

func NewCoordinator(cart Cart, creds auth.TokenSource, orders OrderService, opts ...Option) (*Coordinator, error) {
	if cart == nil {
		return nil, fmt.Errorf("cart is required")
	}
	if creds == nil {
		return nil, fmt.Errorf("credential source is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order service is required")
	}

	c := &Coordinator{
		cart:   cart,
		creds:  creds,
		orders: orders,
		logger: slog.Default(),
		tracer: otel.Tracer("storefront/checkout"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit places the current cart contents as an order. On confirmed
// acceptance it clears the cart and persists the empty snapshot; on any
// failure the cart's line state is guaranteed unchanged. No retries.
func (c *Coordinator) Submit(ctx context.Context, addr AddressData) (*Confirmation, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.metrics.ObserveCheckout("in_flight")
		return nil, ErrCheckoutInFlight
	}
	defer c.inFlight.Store(false)

	token, ok := c.creds.Token(ctx)
	if !ok {
		c.metrics.ObserveCheckout("unauthenticated")
		return nil, ErrAuthenticationRequired
	}

	lines := c.cart.Lines()
	payload := BuildOrderPayload(lines, c.cart.Total(), addr)

	ctx, span := c.tracer.Start(ctx, "checkout.submit",
		trace.WithAttributes(
			attribute.Int("cart.lines", len(lines)),
			attribute.String("cart.total", payload.TotalAmount.String()),
		))
	defer span.End()

	confirmation, err := c.orders.Submit(ctx, token, payload)
	if err != nil {
		span.RecordError(err)
		var rejected *RejectionError
		if errors.As(err, &rejected) {
			c.metrics.ObserveCheckout("rejected")
			c.logger.WarnContext(ctx, "order rejected by backend", "reason", rejected.Reason)
			return nil, err
		}
		c.metrics.ObserveCheckout("network_error")
		c.logger.ErrorContext(ctx, "order submission failed", "error", err)
		return nil, err
	}

	// Only a confirmed acceptance clears the cart; there is no window where
	// the order is placed but stale lines remain, nor one where the cart
	// empties before confirmation.
	c.cart.Clear(ctx)

	c.metrics.ObserveCheckout("success")
	c.logger.InfoContext(ctx, "order placed", "order_id", confirmation.OrderID, "total", payload.TotalAmount)

	if c.events != nil {
		c.events.OrderPlaced(ctx, *confirmation, payload)
	}

	return confirmation, nil
}
