package analytics

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"sjsage522/pricewatch/internal/catalog"
)

// DefaultTopN is the size of the gross profit ranking
const DefaultTopN = 10

// ProductView is a product with its two latest snapshots and everything
// derived from them
type ProductView struct {
	catalog.Product
	Latest   *catalog.Snapshot `json:"latestSnapshot"`
	Previous *catalog.Snapshot `json:"previousSnapshot"`
	Metrics  DerivedMetrics    `json:"metrics"`
	Trend    Trend             `json:"trend"`
}

// BuildView computes metrics and trend for p
func BuildView(p catalog.Product, latest, previous *catalog.Snapshot) ProductView {
	return ProductView{
		Product:  p,
		Latest:   latest,
		Previous: previous,
		Metrics:  Calculate(p, latest),
		Trend:    Diff(latest, previous),
	}
}

// KPIs are portfolio-level figures
type KPIs struct {
	TotalRevenue      float64    `json:"totalRevenue"`
	TotalGrossProfit  float64    `json:"totalGrossProfit"`
	WeightedMarginPct *float64   `json:"weightedMarginPct"`
	MonitoredProducts int        `json:"monitoredProducts"`
	ScrapedProducts   int        `json:"scrapedProducts"`
	LastScrapeAt      *time.Time `json:"lastScrapeAt"`
}

// Distribution counts products per traffic light
type Distribution struct {
	Green  int `json:"green"`
	Yellow int `json:"yellow"`
	Red    int `json:"red"`
	Gray   int `json:"gray"`
}

// NeedsActionItem is a red or yellow product
type NeedsActionItem struct {
	ProductID          string       `json:"productId"`
	Name               string       `json:"name"`
	TrafficLight       TrafficLight `json:"trafficLight"`
	NetRevenue         *float64     `json:"netRevenue"`
	MarginPct          *float64     `json:"marginPct"`
	ProjectedMarginPct *float64     `json:"projectedMarginPct"`
	Rank1Price         *float64     `json:"rank1Price"`
	DiffToLowestEur    *float64     `json:"diffToLowestEur"`
	DiffToLowestPct    *float64     `json:"diffToLowestPct"`
	OwnRank            *int         `json:"ownRank"`
	RankChange         int          `json:"rankChange"`
}

// GrossProfitEntry is one row of the gross profit ranking
type GrossProfitEntry struct {
	ProductID    string       `json:"productId"`
	Name         string       `json:"name"`
	GrossProfit  float64      `json:"grossProfit"`
	MarginPct    *float64     `json:"marginPct"`
	TrafficLight TrafficLight `json:"trafficLight"`
}

// MarginBand counts products whose margin falls into a range
type MarginBand struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Dashboard is the aggregated portfolio view
type Dashboard struct {
	KPIs                     KPIs               `json:"kpis"`
	TrafficLightDistribution Distribution       `json:"trafficLightDistribution"`
	TopByGrossProfit         []GrossProfitEntry `json:"top10ByGrossProfit"`
	NeedsAction              []NeedsActionItem  `json:"needsAction"`
	MarginBands              []MarginBand       `json:"marginBands"`
	AllProductsWithMetrics   []ProductView      `json:"allProductsWithMetrics"`
}

// Aggregate folds per-product views into a Dashboard. It performs no I/O.
func Aggregate(views []ProductView, topN int) Dashboard {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if views == nil {
		views = []ProductView{}
	}

	return Dashboard{
		KPIs:                     kpis(views),
		TrafficLightDistribution: distribution(views),
		TopByGrossProfit:         topByGrossProfit(views, topN),
		NeedsAction:              needsAction(views),
		MarginBands:              marginBands(views),
		AllProductsWithMetrics:   views,
	}
}

func kpis(views []ProductView) KPIs {
	k := KPIs{
		TotalRevenue: lo.SumBy(views, func(v ProductView) float64 { return value(v.NetRevenue) }),
		TotalGrossProfit: lo.SumBy(views, func(v ProductView) float64 {
			return value(v.Metrics.GrossProfit)
		}),
		MonitoredProducts: lo.CountBy(views, func(v ProductView) bool { return v.IsMonitored() }),
		ScrapedProducts:   lo.CountBy(views, func(v ProductView) bool { return v.Latest != nil }),
	}
	k.WeightedMarginPct = WeightedMargin(views)

	for _, v := range views {
		if v.Latest == nil {
			continue
		}
		if k.LastScrapeAt == nil || v.Latest.TakenAt.After(*k.LastScrapeAt) {
			at := v.Latest.TakenAt
			k.LastScrapeAt = &at
		}
	}
	return k
}

// WeightedMargin is Σ(margin·revenue) / Σ(revenue) over products with a
// defined margin and positive revenue
func WeightedMargin(views []ProductView) *float64 {
	weighted := lo.Filter(views, func(v ProductView, _ int) bool {
		return v.Metrics.MarginPct != nil && v.NetRevenue != nil && *v.NetRevenue > 0
	})
	if len(weighted) == 0 {
		return nil
	}

	numerator := lo.SumBy(weighted, func(v ProductView) float64 { return *v.Metrics.MarginPct * *v.NetRevenue })
	denominator := lo.SumBy(weighted, func(v ProductView) float64 { return *v.NetRevenue })
	avg := numerator / denominator
	return &avg
}

func distribution(views []ProductView) Distribution {
	var d Distribution
	for _, v := range views {
		switch v.Metrics.TrafficLight {
		case TrafficLightGreen:
			d.Green++
		case TrafficLightYellow:
			d.Yellow++
		case TrafficLightRed:
			d.Red++
		default:
			d.Gray++
		}
	}
	return d
}

func topByGrossProfit(views []ProductView, n int) []GrossProfitEntry {
	entries := lo.FilterMap(views, func(v ProductView, _ int) (GrossProfitEntry, bool) {
		if v.Metrics.GrossProfit == nil {
			return GrossProfitEntry{}, false
		}
		return GrossProfitEntry{
			ProductID:    v.ID,
			Name:         v.Name,
			GrossProfit:  *v.Metrics.GrossProfit,
			MarginPct:    v.Metrics.MarginPct,
			TrafficLight: v.Metrics.TrafficLight,
		}, true
	})

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].GrossProfit != entries[j].GrossProfit {
			return entries[i].GrossProfit > entries[j].GrossProfit
		}
		return entries[i].ProductID < entries[j].ProductID
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// needsAction lists red before yellow, then by revenue descending
func needsAction(views []ProductView) []NeedsActionItem {
	items := lo.FilterMap(views, func(v ProductView, _ int) (NeedsActionItem, bool) {
		light := v.Metrics.TrafficLight
		if light != TrafficLightRed && light != TrafficLightYellow {
			return NeedsActionItem{}, false
		}
		item := NeedsActionItem{
			ProductID:          v.ID,
			Name:               v.Name,
			TrafficLight:       light,
			NetRevenue:         v.NetRevenue,
			MarginPct:          v.Metrics.MarginPct,
			ProjectedMarginPct: v.Metrics.ProjectedMarginPct,
			Rank1Price:         v.Latest.Rank1Price(),
			DiffToLowestEur:    v.Metrics.DiffToLowestEur,
			DiffToLowestPct:    v.Metrics.DiffToLowestPct,
			OwnRank:            v.Latest.OwnRank,
		}
		if v.Trend.RankDelta != nil {
			item.RankChange = *v.Trend.RankDelta
		}
		return item, true
	})

	severity := map[TrafficLight]int{TrafficLightRed: 0, TrafficLightYellow: 1}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.TrafficLight != b.TrafficLight {
			return severity[a.TrafficLight] < severity[b.TrafficLight]
		}
		if value(a.NetRevenue) != value(b.NetRevenue) {
			return value(a.NetRevenue) > value(b.NetRevenue)
		}
		return a.ProductID < b.ProductID
	})
	return items
}

// marginBands buckets defined margins; each upper bound is inclusive
func marginBands(views []ProductView) []MarginBand {
	bands := []MarginBand{{Label: "<0%"}, {Label: "0-10%"}, {Label: "10-20%"}, {Label: "20-30%"}, {Label: ">30%"}}
	for _, v := range views {
		if v.Metrics.MarginPct == nil {
			continue
		}
		switch m := *v.Metrics.MarginPct; {
		case m < 0:
			bands[0].Count++
		case m <= 10:
			bands[1].Count++
		case m <= 20:
			bands[2].Count++
		case m <= 30:
			bands[3].Count++
		default:
			bands[4].Count++
		}
	}
	return bands
}

func value(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
