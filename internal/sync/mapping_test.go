package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-clinic/lumina-clinic/internal/catalog"
	"github.com/lumina-clinic/lumina-clinic/internal/provider"
)

func TestResolveLocalizedPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{
			name:   "bare key wins over tagged",
			fields: map[string]string{"name|en": "A", "name": "B"},
			want:   "B",
		},
		{
			name:   "polish wins over english",
			fields: map[string]string{"name|en": "Cream", "name|pl": "Krem"},
			want:   "Krem",
		},
		{
			name:   "empty values are skipped",
			fields: map[string]string{"name": "  ", "name|pl": "Krem"},
			want:   "Krem",
		},
		{
			name:   "trailing pipe key is last resort",
			fields: map[string]string{"name|": "Fallback"},
			want:   "Fallback",
		},
		{
			name:   "nothing resolvable",
			fields: map[string]string{"description": "not a name"},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveLocalized(tt.fields, nameKeys))
		})
	}
}

func TestCollapseImagesOrdersBySlot(t *testing.T) {
	images := map[string]string{
		"10": "https://cdn.example.com/10.jpg",
		"2":  "https://cdn.example.com/2.jpg",
		"1":  "https://cdn.example.com/1.jpg",
		"3":  "",
	}
	got := collapseImages(images)
	assert.Equal(t, []string{
		"https://cdn.example.com/1.jpg",
		"https://cdn.example.com/2.jpg",
		"https://cdn.example.com/10.jpg",
	}, got)
}

func TestCollapseImagesEmpty(t *testing.T) {
	assert.Nil(t, collapseImages(nil))
	assert.Nil(t, collapseImages(map[string]string{"1": ""}))
	assert.Nil(t, collapseImages(map[string]string{"1": " ", "2": ""}))
}

func TestPickValue(t *testing.T) {
	values := map[string]float64{"5": 10, "2": 20, "9": 30}

	assert.Equal(t, 20.0, pickValue(values, "2"), "configured key wins")
	assert.Equal(t, 20.0, pickValue(values, ""), "fallback takes lowest key")
	assert.Equal(t, 20.0, pickValue(values, "missing"), "missing key falls back")
	assert.Equal(t, 0.0, pickValue(nil, ""))
}

func TestNetPrice(t *testing.T) {
	assert.InDelta(t, 100.0, netPrice(123, 23), 0.01)
	assert.Equal(t, 50.0, netPrice(50, 0))
	assert.Equal(t, 50.0, netPrice(50, -5))
}

func TestMapProduct(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cat := catalog.Category{ID: "7", Name: "Twarz"}
	details := provider.ProductDetails{
		SKU:        " KR-01 ",
		EAN:        "5901234567890",
		TextFields: map[string]string{"name|pl": "Krem", "description|pl": "Opis"},
		Prices:     map[string]float64{"2": 123},
		Stock:      map[string]float64{"wh_1": 4},
		Images:     map[string]string{"1": "https://cdn.example.com/a.jpg"},
		TaxRate:    23,
		Weight:     0.2,
	}

	p, ok := mapProduct("1001", details, cat, now, "", "")
	require.True(t, ok)

	assert.Equal(t, "1001", p.ID)
	assert.Equal(t, "1001", p.ProviderID)
	assert.Equal(t, "Krem", p.Name)
	assert.Equal(t, "KR-01", p.SKU)
	assert.Equal(t, 123.0, p.PriceGross)
	assert.InDelta(t, 100.0, p.PriceNet, 0.01)
	assert.Equal(t, 4, p.Quantity)
	assert.Equal(t, "Opis", p.Description)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, p.Images)
	require.NotNil(t, p.CategoryID)
	assert.Equal(t, "7", *p.CategoryID)
	assert.Equal(t, "Twarz", p.CategoryName)
	assert.True(t, p.IsActive)
	assert.Equal(t, now, p.LastSync)
}

func TestMapProductSKUDefaultsToProviderID(t *testing.T) {
	p, ok := mapProduct("1002", provider.ProductDetails{
		TextFields: map[string]string{"name": "Serum"},
	}, catalog.Category{ID: "7", Name: "Twarz"}, time.Now(), "", "")
	require.True(t, ok)
	assert.Equal(t, "1002", p.SKU)
}

func TestMapProductSkipsUnnamedRecord(t *testing.T) {
	_, ok := mapProduct("1003", provider.ProductDetails{
		TextFields: map[string]string{"description": "no name here"},
		Prices:     map[string]float64{"1": 10},
	}, catalog.Category{ID: "7", Name: "Twarz"}, time.Now(), "", "")
	assert.False(t, ok)
}
