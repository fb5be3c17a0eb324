package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a catalog item as delivered by the product API. The catalog
// serves prices either as a bare number or as a display string like "€25.00";
// parsing is confined to this boundary so the cart only ever handles typed
// money.
type Product struct {
	ID       string
	Name     string
	NetPrice decimal.Decimal
	Image    string
	Category string
}

// productJSON mirrors the catalog wire shape. Records originating from the
// document store carry the id under "_id"; seeded or relational records use
// "id". When both are present "_id" wins.
type productJSON struct {
	ExternalID string          `json:"_id"`
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      json.RawMessage `json:"price"`
	Image      string          `json:"image"`
	Type       string          `json:"type"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var raw productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id := raw.ExternalID
	if id == "" {
		id = raw.ID
	}
	if id == "" {
		return fmt.Errorf("catalog: product has no id")
	}

	price, err := parseRawPrice(raw.Price)
	if err != nil {
		return fmt.Errorf("catalog: product %s: %w", id, err)
	}

	*p = Product{
		ID:       id,
		Name:     raw.Name,
		NetPrice: price,
		Image:    raw.Image,
		Category: raw.Type,
	}
	return nil
}

func parseRawPrice(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 {
		return decimal.Zero, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, fmt.Errorf("decode price: %w", err)
		}
		return ParsePrice(s)
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return decimal.Zero, fmt.Errorf("decode price: %w", err)
	}
	return d, nil
}

// ParsePrice converts a human-formatted currency string into a decimal
// amount. Currency symbols and surrounding whitespace are stripped; the
// remainder must parse as a plain decimal number.
func ParsePrice(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.Trim(cleaned, "€$£ \t")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty price %q", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", s, err)
	}
	return d, nil
}
