package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricewatch/config"
	"sjsage522/pricewatch/internal/analytics"
	"sjsage522/pricewatch/internal/catalog"
	"sjsage522/pricewatch/internal/crawler"
	"sjsage522/pricewatch/services/publisher"
	"sjsage522/pricewatch/services/server"
	"sjsage522/pricewatch/services/store"
	"sjsage522/pricewatch/services/worker"
)

// offerRow mimics one entry of an idealo offer list
func offerRow(shop, price string) string {
	return fmt.Sprintf(`
        <li class="productOffers-listItem">
            <a class="productOffers-listItemTitle" data-shop-name="%s" href="/shop"></a>
            <a class="productOffers-listItemOfferPrice" href="/relocator/relocate?shop=%s">%s
                <span class="productOffers-listItemOfferShippingDetails">inkl. Versand</span>
            </a>
        </li>`, shop, strings.ReplaceAll(strings.ToLower(shop), " ", "-"), price)
}

func listingPage(title string, rows ...string) string {
	return `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>idealo</title></head>
<body>
    <h1>` + title + `</h1>
    <ul class="productOffers-list">` + strings.Join(rows, "") + `
    </ul>
</body>
</html>`
}

// marketplace serves two listing pages; the second sweep sees the own shop
// undercut the rank-1 offer on the first page
type marketplace struct {
	sweep atomic.Int32
}

func (m *marketplace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body string
	switch r.URL.Path {
	case "/preisvergleich/OffersOfProduct/1.html":
		if m.sweep.Load() < 2 {
			body = listingPage("Vitamin D3 2000 I.E.",
				offerRow("medpex", "11,90 €"),
				offerRow("shop-apotheke.com - Versandapotheke", "12,20 €"),
				offerRow("Health Rise", "12,50 €"),
			)
		} else {
			body = listingPage("Vitamin D3 2000 I.E.",
				offerRow("Health Rise", "11,50 €"),
				offerRow("medpex", "11,90 €"),
			)
		}
	case "/preisvergleich/OffersOfProduct/2.html":
		body = listingPage("Magnesium Citrat",
			offerRow("medpex", "11,90 €"),
			offerRow("Health Rise", "12,90 €"),
		)
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, body)
}

func f(v float64) *float64 { return &v }
func n(v int) *int         { return &v }

func testCatalog(baseURL string) []catalog.Product {
	return []catalog.Product{
		{
			ID: "vd3", Name: "Vitamin D3", ListingURL: baseURL + "/preisvergleich/OffersOfProduct/1.html",
			QuantitySold: n(10), NetRevenue: f(120), GrossSalePrice: f(14.28), NetSalePrice: f(12),
			NetPurchaseCost: f(8), TaxRate: catalog.TaxRateStandard,
		},
		{
			ID: "mg", Name: "Magnesium", ListingURL: baseURL + "/preisvergleich/OffersOfProduct/2.html",
			QuantitySold: n(5), NetRevenue: f(60), GrossSalePrice: f(15.35), NetSalePrice: f(12.9),
			NetPurchaseCost: f(11), TaxRate: catalog.TaxRateStandard,
		},
		{
			ID: "zn", Name: "Zink", NetSalePrice: f(5), NetPurchaseCost: f(2), TaxRate: catalog.TaxRateReduced,
		},
	}
}

func newPipeline(t *testing.T, baseURL string, pub publisher.Publisher) (*store.MemoryStore, *worker.SweepRunner, *analytics.Service) {
	t.Helper()

	cfg := config.LoadConfig()
	cfg.FetchMode = config.FetchModeHTTP
	cfg.MarketplaceBaseURL = baseURL
	cfg.ScrapeDelay = 0
	cfg.OwnShopAliases = []string{"health rise"}

	s := store.NewMemoryStore(testCatalog(baseURL)...)
	fetcher := crawler.NewFetcher(&cfg, nil)
	t.Cleanup(func() { fetcher.Close() })

	o := worker.NewOrchestrator(s, s, fetcher, crawler.NewExtractor(&cfg), pub, crawler.FetchOptionsFor(&cfg), cfg.ScrapeDelay)
	return s, worker.NewSweepRunner(context.Background(), o), analytics.NewService(s, s, cfg.TopNGrossProfit)
}

// TestIntegration runs two sweeps against a fake marketplace and reads the
// dashboard back through the HTTP API
func TestIntegration(t *testing.T) {
	market := &marketplace{}
	site := httptest.NewServer(market)
	defer site.Close()

	ctx := context.Background()
	s, runner, reader := newPipeline(t, site.URL, nil)

	// First sweep: no baseline yet
	market.sweep.Store(1)
	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	views, err := reader.ListProducts(ctx, analytics.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	byID := make(map[string]analytics.ProductView)
	for _, v := range views {
		byID[v.ID] = v
	}
	assert.Equal(t, analytics.TrafficLightGreen, byID["vd3"].Metrics.TrafficLight)
	assert.InDelta(t, 20.0, *byID["vd3"].Metrics.ProjectedMarginPct, 1e-9)
	assert.Equal(t, analytics.TrafficLightRed, byID["mg"].Metrics.TrafficLight)
	assert.Equal(t, analytics.TrafficLightGray, byID["zn"].Metrics.TrafficLight)
	assert.Equal(t, analytics.RankNoBaseline, byID["vd3"].Trend.OwnRank)
	assert.Equal(t, "shop-apotheke.com", byID["vd3"].Latest.Rank2.Shop)
	assert.Equal(t, site.URL+"/relocator/relocate?shop=medpex", byID["vd3"].Latest.Rank1.Link)

	// Second sweep: own shop takes rank 1 on vd3
	market.sweep.Store(2)
	_, err = runner.Run(ctx)
	require.NoError(t, err)

	history, err := s.LatestSnapshots(ctx, "vd3", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, *history[0].OwnRank)
	assert.Equal(t, 3, *history[1].OwnRank)

	// Dashboard through the HTTP transport
	gin.SetMode(gin.TestMode)
	api := httptest.NewServer(server.NewServer(":0", reader, runner).Handler())
	defer api.Close()

	resp, err := http.Get(api.URL + "/api/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dashboard struct {
		Success                  bool                         `json:"success"`
		KPIs                     analytics.KPIs               `json:"kpis"`
		TrafficLightDistribution analytics.Distribution       `json:"trafficLightDistribution"`
		NeedsAction              []analytics.NeedsActionItem  `json:"needsAction"`
		TopByGrossProfit         []analytics.GrossProfitEntry `json:"top10ByGrossProfit"`
		AllProductsWithMetrics   []analytics.ProductView      `json:"allProductsWithMetrics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dashboard))

	assert.True(t, dashboard.Success)
	assert.Equal(t, analytics.Distribution{Green: 1, Red: 1, Gray: 1}, dashboard.TrafficLightDistribution)
	assert.Equal(t, 2, dashboard.KPIs.MonitoredProducts)
	assert.Equal(t, 2, dashboard.KPIs.ScrapedProducts)
	assert.NotNil(t, dashboard.KPIs.LastScrapeAt)
	require.Len(t, dashboard.NeedsAction, 1)
	assert.Equal(t, "mg", dashboard.NeedsAction[0].ProductID)
	assert.Equal(t, 0, dashboard.NeedsAction[0].RankChange)
	assert.Len(t, dashboard.AllProductsWithMetrics, 3)

	for _, v := range dashboard.AllProductsWithMetrics {
		if v.ID == "vd3" {
			assert.Equal(t, analytics.RankImproved, v.Trend.OwnRank)
			assert.Equal(t, analytics.DirectionDown, v.Trend.Rank1Price)
			assert.Equal(t, analytics.DirectionDown, v.Trend.OwnPrice)
		}
	}
}

// TestIntegrationRedisEvents checks that every stored snapshot lands on the
// redis stream
func TestIntegrationRedisEvents(t *testing.T) {
	ctx := context.Background()
	redisAddr := "localhost:6379"
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()

	// Check if Redis is available by attempting a ping, skip test if not
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis is not available, skipping integration test")
	}

	site := httptest.NewServer(&marketplace{})
	defer site.Close()

	prefix := "pricewatch_test_" + xid.New().String()
	defer client.Del(ctx, prefix+":0")

	pub := publisher.NewRedisPublisher(ctx, redisAddr, 0, prefix, 1, 100)
	defer pub.Close()

	_, runner, _ := newPipeline(t, site.URL, pub)
	result, err := runner.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)

	entries, err := client.XRange(ctx, prefix+":0", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	encoded, ok := entries[0].Values[publisher.SnapshotEventKey].(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var event worker.SnapshotEvent
	require.NoError(t, json.Unmarshal(decoded, &event))
	assert.Equal(t, "mg", event.Snapshot.ProductID)
	assert.Equal(t, "Magnesium Citrat", event.PageTitle)
	require.NotNil(t, event.Snapshot.OwnRank)
	assert.Equal(t, 2, *event.Snapshot.OwnRank)
}
