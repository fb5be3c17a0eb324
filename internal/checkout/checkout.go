// Package checkout coordinates the handoff from cart to order placement:
// it builds the order payload, enforces the credential precondition, and
// clears the cart exactly once on confirmed success.
package checkout

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/cart/models"
)

var (
	// ErrAuthenticationRequired is returned before any network call when no
	// bearer credential is available.
	ErrAuthenticationRequired = errors.New("checkout: authentication required")

	// ErrCheckoutInFlight rejects a second submission while one is pending.
	ErrCheckoutInFlight = errors.New("checkout: a submission is already in flight")
)

// RejectionError carries the backend-provided reason for a declined order
// (stock, pricing mismatch, validation). The cart is left untouched so the
// shopper can retry or edit.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("checkout rejected: %s", e.Reason)
}

// Address mirrors the order service address shape.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// AddressData is the pre-validated address block the caller supplies at
// checkout. Customer fields are optional; the backend falls back to the
// authenticated profile when they are omitted.
type AddressData struct {
	ShippingAddress Address `json:"shipping_address"`
	BillingAddress  Address `json:"billing_address"`
	CustomerName    string  `json:"customer_name,omitempty"`
	CustomerEmail   string  `json:"customer_email,omitempty"`
	CustomerTaxCode string  `json:"tax_code,omitempty"`
}

// OrderItem is one payload line as the order service expects it.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// OrderPayload is the order submission body.
type OrderPayload struct {
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  Address         `json:"billing_address"`
	CustomerName    string          `json:"customer_name,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	CustomerTaxCode string          `json:"customer_tax_code,omitempty"`
}

// Confirmation is the order service acceptance record.
type Confirmation struct {
	OrderID      string `json:"orderId"`
	ClientSecret string `json:"clientSecret"`
}

// BuildOrderPayload maps the cart lines and total into the order service
// wire shape.
func BuildOrderPayload(lines []models.Line, total decimal.Decimal, addr AddressData) OrderPayload {
	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.UnitPriceGross,
			Quantity:  l.Quantity,
		})
	}
	return OrderPayload{
		Items:           items,
		TotalAmount:     total,
		ShippingAddress: addr.ShippingAddress,
		BillingAddress:  addr.BillingAddress,
		CustomerName:    addr.CustomerName,
		CustomerEmail:   addr.CustomerEmail,
		CustomerTaxCode: addr.CustomerTaxCode,
	}
}
