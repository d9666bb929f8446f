package sync

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lumina-clinic/lumina-clinic/internal/catalog"
	"github.com/lumina-clinic/lumina-clinic/internal/provider"
)

// Localized text field keys, checked in priority order. The provider suffixes
// keys with a language tag after a pipe; a bare key wins over any tag.
var (
	nameKeys        = []string{"name", "name|pl", "name|en", "name|"}
	descriptionKeys = []string{"description", "description|pl", "description|en", "description|"}
)

// resolveLocalized returns the first non-empty value among the given keys.
func resolveLocalized(fields map[string]string, keys []string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(fields[key]); value != "" {
			return value
		}
	}
	return ""
}

// collapseImages flattens the provider's slot-keyed image map into an ordered
// list of non-empty URLs. Slots are numeric; ordering by slot number keeps
// the primary image first.
func collapseImages(images map[string]string) []string {
	if len(images) == 0 {
		return nil
	}
	slots := make([]string, 0, len(images))
	for slot, url := range images {
		if strings.TrimSpace(url) != "" {
			slots = append(slots, slot)
		}
	}
	if len(slots) == 0 {
		return nil
	}
	sort.Slice(slots, func(i, j int) bool {
		a, errA := strconv.Atoi(slots[i])
		b, errB := strconv.Atoi(slots[j])
		if errA != nil || errB != nil {
			return slots[i] < slots[j]
		}
		return a < b
	})
	urls := make([]string, 0, len(slots))
	for _, slot := range slots {
		urls = append(urls, images[slot])
	}
	return urls
}

// pickValue selects the canonical value from a price-list or warehouse keyed
// map. A configured key wins when present; otherwise the first available
// value is used, taken in sorted key order so the choice is stable between
// runs.
func pickValue(values map[string]float64, preferredKey string) float64 {
	if len(values) == 0 {
		return 0
	}
	if preferredKey != "" {
		if v, ok := values[preferredKey]; ok {
			return v
		}
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return values[keys[0]]
}

// netPrice derives the net price from the gross price and tax rate
// percentage. A non-positive tax rate means net equals gross.
func netPrice(gross, taxRate float64) float64 {
	if taxRate > 0 {
		return gross / (1 + taxRate/100)
	}
	return gross
}

// mapProduct converts one provider record into a local product row. The
// second return value is false when the record has no resolvable name and
// must be skipped entirely.
func mapProduct(providerID string, d provider.ProductDetails, cat catalog.Category, now time.Time, priceKey, stockKey string) (catalog.Product, bool) {
	name := resolveLocalized(d.TextFields, nameKeys)
	if name == "" {
		return catalog.Product{}, false
	}

	sku := strings.TrimSpace(d.SKU)
	if sku == "" {
		sku = providerID
	}

	gross := pickValue(d.Prices, priceKey)
	quantity := int(pickValue(d.Stock, stockKey))
	if quantity < 0 {
		quantity = 0
	}

	categoryID := cat.ID
	return catalog.Product{
		ID:           providerID,
		ProviderID:   providerID,
		Name:         name,
		SKU:          sku,
		EAN:          strings.TrimSpace(d.EAN),
		PriceGross:   gross,
		PriceNet:     netPrice(gross, d.TaxRate),
		Quantity:     quantity,
		Weight:       d.Weight,
		TaxRate:      d.TaxRate,
		Description:  resolveLocalized(d.TextFields, descriptionKeys),
		Images:       collapseImages(d.Images),
		TextFields:   d.TextFields,
		CategoryID:   &categoryID,
		CategoryName: cat.Name,
		LastSync:     now,
		IsActive:     true,
	}, true
}
