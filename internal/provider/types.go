package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Provider API method names used by the catalog sync.
const (
	methodGetCategories   = "getInventoryCategories"
	methodGetProductsList = "getInventoryProductsList"
	methodGetProductsData = "getInventoryProductsData"

	statusSuccess = "SUCCESS"
)

// Category is one row of the provider's flat category tree.
type Category struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	ParentID   int64  `json:"parent_id"`
}

// ProductDetails is the detailed product record returned by
// getInventoryProductsData. Prices and stock are keyed by price-list and
// warehouse identifiers; images are keyed by slot number.
type ProductDetails struct {
	SKU        string             `json:"sku"`
	EAN        string             `json:"ean"`
	CategoryID int64              `json:"category_id"`
	TextFields map[string]string  `json:"text_fields"`
	Prices     map[string]float64 `json:"prices"`
	Stock      map[string]float64 `json:"stock"`
	Images     map[string]string  `json:"images"`
	TaxRate    float64            `json:"tax_rate"`
	Weight     float64            `json:"weight"`
}

// envelope is the outer shape every provider response shares.
type envelope struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type categoriesResponse struct {
	Categories []Category `json:"categories"`
}

type productsListResponse struct {
	Products json.RawMessage `json:"products"`
}

// ids decodes the product list, tolerating the two shapes the provider emits
// for an empty category: an object keyed by product id, or a bare empty
// array.
func (r productsListResponse) ids() ([]string, error) {
	raw := bytes.TrimSpace(r.Products)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		if len(list) > 0 {
			return nil, fmt.Errorf("unexpected array product list with %d entries", len(list))
		}
		return nil, nil
	}
	var byID map[string]struct{}
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	return ids, nil
}

type productsDataResponse struct {
	Products map[string]ProductDetails `json:"products"`
}

type categoriesParams struct {
	InventoryID int64 `json:"inventory_id"`
}

type productsListParams struct {
	InventoryID      int64 `json:"inventory_id"`
	FilterCategoryID int64 `json:"filter_category_id,omitempty"`
}

type productsDataParams struct {
	InventoryID int64    `json:"inventory_id"`
	Products    []string `json:"products"`
}
