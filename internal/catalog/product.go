package catalog

import (
	"fmt"
	"strings"
)

// TaxRate is one of the VAT rates a catalog product can carry, in percent
type TaxRate int

const (
	TaxRateReduced  TaxRate = 7
	TaxRateStandard TaxRate = 19
)

// ParseTaxRate maps a catalog value ("7", "19", "19%") onto a TaxRate
func ParseTaxRate(raw string) (TaxRate, error) {
	switch strings.TrimSuffix(strings.TrimSpace(raw), "%") {
	case "7":
		return TaxRateReduced, nil
	case "19":
		return TaxRateStandard, nil
	default:
		return 0, fmt.Errorf("unsupported tax rate %q", raw)
	}
}

// Divisor converts a gross price to net: net = gross / Divisor()
func (t TaxRate) Divisor() float64 {
	return 1 + float64(t)/100
}

// Product is a read-only catalog record. Optional numeric fields are nil when
// the import had no value for them.
type Product struct {
	ID              string   `json:"id" db:"id"`
	GTIN            string   `json:"gtin,omitempty" db:"gtin"`
	Name            string   `json:"name" db:"name"`
	QuantitySold    *int     `json:"quantitySold" db:"quantity"`
	NetRevenue      *float64 `json:"netRevenue" db:"revenue_net"`
	ListingURL      string   `json:"listingUrl,omitempty" db:"idealo_link"`
	GrossSalePrice  *float64 `json:"grossSalePrice" db:"price_gross"`
	NetSalePrice    *float64 `json:"netSalePrice" db:"price_net"`
	NetPurchaseCost *float64 `json:"netPurchaseCost" db:"purchase_price_net"`
	UVP             *float64 `json:"uvp" db:"uvp"`
	TaxRate         TaxRate  `json:"taxRate" db:"tax_rate"`
	Clicks          *int     `json:"clicks30Days" db:"clicks_30_days"`
}

// IsMonitored reports whether the product has a marketplace listing to scrape
func (p Product) IsMonitored() bool {
	return strings.TrimSpace(p.ListingURL) != ""
}
