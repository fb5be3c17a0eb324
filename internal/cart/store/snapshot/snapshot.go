// Package snapshot persists the cart as one namespaced whole-snapshot
// record. Every mutating cart operation rewrites the full record, so the
// durable state never diverges from memory across a successful call.
package snapshot

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shopspring/decimal"

	"storefront/internal/cart/models"
)

// Store implementations are interface-driven so the cart service can swap
// in-memory, Redis, or Postgres persistence without rewiring business code.
//
// Load of a missing record returns an empty line set. A record that cannot
// be decoded is treated the same way: the failure is logged by the store and
// never propagated, so a corrupt snapshot can never wedge the cart.
type Store interface {
	Load(ctx context.Context) ([]models.Line, error)
	Save(ctx context.Context, lines []models.Line) error
}

// record is the wire shape of one persisted line: a JSON array of these, in
// line order, forms the durable cart record.
type record struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Type     string          `json:"type"`
	Quantity int             `json:"quantity"`
}

func encodeLines(lines []models.Line) ([]byte, error) {
	records := make([]record, 0, len(lines))
	for _, l := range lines {
		records = append(records, record{
			ID:       l.ProductID,
			Name:     l.Name,
			Price:    l.UnitPriceGross,
			Image:    l.Image,
			Type:     l.Category,
			Quantity: l.Quantity,
		})
	}
	return json.Marshal(records)
}

// decodeLines absorbs malformed data: it logs and returns an empty line set
// rather than an error, per the recovery contract of Load.
func decodeLines(data []byte, logger *slog.Logger) []models.Line {
	if len(data) == 0 {
		return nil
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn("cart snapshot unreadable, starting from empty cart", "error", err)
		return nil
	}
	lines := make([]models.Line, 0, len(records))
	for _, r := range records {
		lines = append(lines, models.Line{
			ProductID:      r.ID,
			Name:           r.Name,
			UnitPriceGross: r.Price,
			Image:          r.Image,
			Category:       r.Type,
			Quantity:       r.Quantity,
		})
	}
	return lines
}
