package analytics

import "sjsage522/pricewatch/internal/catalog"

// TrafficLight classifies competitive margin health
type TrafficLight string

const (
	TrafficLightGreen  TrafficLight = "green"
	TrafficLightYellow TrafficLight = "yellow"
	TrafficLightRed    TrafficLight = "red"
	TrafficLightGray   TrafficLight = "gray"
)

// Projected margin thresholds in percent
const (
	GreenMarginThreshold  = 15.0
	YellowMarginThreshold = 0.0
)

// conversionWindowMonths is the period quantity sold covers
const conversionWindowMonths = 3.0

// DerivedMetrics are computed on every read from a product and its latest
// snapshot. Nil means the inputs for that figure are missing.
type DerivedMetrics struct {
	MarginPct             *float64     `json:"marginPct"`
	GrossProfit           *float64     `json:"grossProfit"`
	UVPDeviationPct       *float64     `json:"uvpDeviationPct"`
	LowestCompetitorPrice *float64     `json:"lowestCompetitorPrice"`
	DiffToLowestEur       *float64     `json:"diffToLowestEur"`
	DiffToLowestPct       *float64     `json:"diffToLowestPct"`
	ProjectedMarginPct    *float64     `json:"projectedMarginPct"`
	ConversionRatePct     *float64     `json:"conversionRatePct"`
	TrafficLight          TrafficLight `json:"trafficLight"`
}

// Calculate derives all metrics for p. latest may be nil.
func Calculate(p catalog.Product, latest *catalog.Snapshot) DerivedMetrics {
	m := DerivedMetrics{
		MarginPct:         marginPct(p.NetSalePrice, p.NetPurchaseCost),
		GrossProfit:       grossProfit(p),
		UVPDeviationPct:   uvpDeviationPct(p),
		ConversionRatePct: conversionRatePct(p),
	}

	m.LowestCompetitorPrice = lowestCompetitorPrice(latest)
	if p.GrossSalePrice != nil && m.LowestCompetitorPrice != nil {
		diff := *p.GrossSalePrice - *m.LowestCompetitorPrice
		m.DiffToLowestEur = &diff
		if *m.LowestCompetitorPrice > 0 {
			pct := diff / *m.LowestCompetitorPrice * 100
			m.DiffToLowestPct = &pct
		}
	}

	m.TrafficLight, m.ProjectedMarginPct = classify(p, latest)
	return m
}

// marginPct is (net - cost) / net * 100, defined for net > 0 and known cost
func marginPct(netPrice, netCost *float64) *float64 {
	if netPrice == nil || netCost == nil || *netPrice <= 0 {
		return nil
	}
	v := (*netPrice - *netCost) / *netPrice * 100
	return &v
}

func grossProfit(p catalog.Product) *float64 {
	if p.NetSalePrice == nil || p.NetPurchaseCost == nil || p.QuantitySold == nil {
		return nil
	}
	v := (*p.NetSalePrice - *p.NetPurchaseCost) * float64(*p.QuantitySold)
	return &v
}

func uvpDeviationPct(p catalog.Product) *float64 {
	if p.UVP == nil || p.GrossSalePrice == nil || *p.UVP <= 0 {
		return nil
	}
	v := (*p.GrossSalePrice - *p.UVP) / *p.UVP * 100
	return &v
}

func conversionRatePct(p catalog.Product) *float64 {
	if p.QuantitySold == nil || p.Clicks == nil || *p.QuantitySold <= 0 || *p.Clicks <= 0 {
		return nil
	}
	v := float64(*p.QuantitySold) / conversionWindowMonths / float64(*p.Clicks) * 100
	return &v
}

// lowestCompetitorPrice prefers the recorded lowest price and falls back to
// the cheaper of the two leading offers
func lowestCompetitorPrice(snap *catalog.Snapshot) *float64 {
	if snap == nil {
		return nil
	}
	if snap.LowestPrice != nil {
		v := *snap.LowestPrice
		return &v
	}

	var lowest *float64
	for _, candidate := range []*float64{snap.Rank1Price(), snap.Rank2Price()} {
		if candidate != nil && (lowest == nil || *candidate < *lowest) {
			v := *candidate
			lowest = &v
		}
	}
	return lowest
}

// classify applies the traffic-light decision. It also returns the projected
// margin at the rank-1 competitor's net price when that was computed.
func classify(p catalog.Product, snap *catalog.Snapshot) (TrafficLight, *float64) {
	if !p.IsMonitored() || snap == nil {
		return TrafficLightGray, nil
	}

	if snap.OwnRank != nil && *snap.OwnRank == 1 {
		return TrafficLightGreen, nil
	}

	rank1 := snap.Rank1Price()
	if rank1 == nil || *rank1 <= 0 {
		return TrafficLightGray, nil
	}

	competitorNet := *rank1 / p.TaxRate.Divisor()
	projected := marginPct(&competitorNet, p.NetPurchaseCost)
	if projected == nil {
		return TrafficLightGray, nil
	}

	switch {
	case *projected >= GreenMarginThreshold:
		return TrafficLightGreen, projected
	case *projected >= YellowMarginThreshold:
		return TrafficLightYellow, projected
	default:
		return TrafficLightRed, projected
	}
}
