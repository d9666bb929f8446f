// Package catalog holds the locally persisted product catalog: the models,
// the PostgreSQL repository, the redis read cache and the read service that
// the storefront endpoints are built on.
package catalog

import "time"

// Product is the local, authoritative copy of one catalog item. ProviderID is
// the reconciliation key; ID is generated locally when the row is created.
type Product struct {
	ID           string            `json:"id"`
	ProviderID   string            `json:"provider_id"`
	Name         string            `json:"name"`
	SKU          string            `json:"sku"`
	EAN          string            `json:"ean,omitempty"`
	PriceGross   float64           `json:"price_gross"`
	PriceNet     float64           `json:"price_net"`
	Quantity     int               `json:"quantity"`
	Weight       float64           `json:"weight"`
	TaxRate      float64           `json:"tax_rate"`
	Description  string            `json:"description,omitempty"`
	Images       []string          `json:"images"`
	TextFields   map[string]string `json:"text_fields,omitempty"`
	CategoryID   *string           `json:"category_id,omitempty"`
	CategoryName string            `json:"category_name"`
	IsActive     bool              `json:"is_active"`
	LastSync     time.Time         `json:"last_sync"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Category mirrors one provider category. The id is the provider's category
// id, stringified; categories carry no local surrogate key.
type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

// FallbackCategoryName labels products whose category reference cannot be
// resolved locally.
const FallbackCategoryName = "Bez kategorii"

// Stats summarizes the persisted catalog for the status endpoint.
type Stats struct {
	TotalProducts    int `json:"total_products"`
	ActiveProducts   int `json:"active_products"`
	InactiveProducts int `json:"inactive_products"`
	OutOfStock       int `json:"out_of_stock"`
	TotalCategories  int `json:"total_categories"`
}
