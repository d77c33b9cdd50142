package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricewatch/internal/analytics"
	"sjsage522/pricewatch/internal/catalog"
	"sjsage522/pricewatch/internal/crawler"
	"sjsage522/pricewatch/pkg/errors"
	"sjsage522/pricewatch/services/store"
)

const (
	urlA = "https://www.idealo.de/preisvergleich/OffersOfProduct/1.html"
	urlB = "https://www.idealo.de/preisvergleich/OffersOfProduct/2.html"
	urlC = "https://www.idealo.de/preisvergleich/OffersOfProduct/3.html"
)

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "a", Name: "Vitamin D3", ListingURL: urlA, TaxRate: catalog.TaxRateStandard},
		{ID: "b", Name: "Magnesium", ListingURL: urlB, TaxRate: catalog.TaxRateStandard},
		{ID: "c", Name: "Zink", ListingURL: urlC, TaxRate: catalog.TaxRateReduced},
		{ID: "d", Name: "Not listed"},
	}
}

func newTestOrchestrator(s store.Store, fetcher crawler.PageFetcher, pub *MockPublisher, delay time.Duration) *Orchestrator {
	extractor := crawler.NewPageOfferExtractor(crawler.IdealoSelectors(), []string{"health rise"}, crawler.DefaultScanLimit, "https://www.idealo.de")
	return NewOrchestrator(s, s, fetcher, extractor, pub, crawler.FetchOptions{}, delay)
}

func TestRunFullScrapeSweep(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(testProducts()...)
	fetcher := NewMockFetcher()
	fetcher.pages[urlA] = offerPage([2]string{"docmorris.de - Shop aus Heerlen", "11,90 €"}, [2]string{"medpex", "12,10 €"}, [2]string{"Health Rise", "12,50 €"})
	fetcher.pages[urlC] = offerPage()
	// urlB is unreachable
	pub := &MockPublisher{}

	result, err := newTestOrchestrator(s, fetcher, pub, 0).RunFullScrapeSweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "b", result.Errors[0].ProductID)
	assert.Equal(t, errors.ErrorTypeNavigation, result.Errors[0].Type)
	assert.Contains(t, result.Errors[0].Message, "ERR_NAME_NOT_RESOLVED")

	// Unlisted products are never visited, order is preserved
	assert.Equal(t, []string{urlA, urlB, urlC}, fetcher.visits)

	snaps, err := s.LatestSnapshots(ctx, "a", 5)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	snap := snaps[0]
	assert.Equal(t, "docmorris.de", snap.Rank1.Shop)
	assert.InDelta(t, 11.90, *snap.Rank1.Price, 1e-9)
	assert.Equal(t, "https://www.idealo.de/relocator/relocate?offerKey=1", snap.Rank1.Link)
	assert.Equal(t, "medpex", snap.Rank2.Shop)
	require.NotNil(t, snap.OwnRank)
	assert.Equal(t, 3, *snap.OwnRank)
	assert.InDelta(t, 12.50, *snap.OwnPrice, 1e-9)
	assert.Equal(t, 2, snap.CompetitorCount)
	assert.InDelta(t, 11.90, *snap.LowestPrice, 1e-9)

	// Zero offers is a successful snapshot with empty ranks
	empty, err := s.LatestSnapshots(ctx, "c", 5)
	require.NoError(t, err)
	require.Len(t, empty, 1)
	assert.Nil(t, empty[0].Rank1)
	assert.Nil(t, empty[0].Rank2)
	assert.Nil(t, empty[0].OwnRank)
	assert.Equal(t, 0, empty[0].CompetitorCount)

	none, err := s.LatestSnapshots(ctx, "b", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	// One event per stored snapshot, streams trimmed once
	require.Len(t, pub.messages, 2)
	assert.Equal(t, 1, pub.trimmed)
	var event SnapshotEvent
	require.NoError(t, json.Unmarshal(pub.messages[0], &event))
	assert.Equal(t, "Vitamin D3", event.ProductName)
	assert.Equal(t, "a", event.Snapshot.ProductID)
	assert.Len(t, event.Offers, 3)
}

func TestRunFullScrapeSweepTwiceAppendsHistory(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(testProducts()[:1]...)
	fetcher := NewMockFetcher()
	fetcher.pages[urlA] = offerPage([2]string{"medpex", "11,90 €"}, [2]string{"Health Rise", "12,50 €"})

	o := newTestOrchestrator(s, fetcher, &MockPublisher{}, 0)
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return clock }

	_, err := o.RunFullScrapeSweep(ctx)
	require.NoError(t, err)

	clock = clock.Add(24 * time.Hour)
	fetcher.pages[urlA] = offerPage([2]string{"Health Rise", "11,50 €"}, [2]string{"medpex", "11,90 €"})
	_, err = o.RunFullScrapeSweep(ctx)
	require.NoError(t, err)

	snaps, err := s.LatestSnapshots(ctx, "a", 5)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].TakenAt.After(snaps[1].TakenAt))

	trend := analytics.Diff(&snaps[0], &snaps[1])
	assert.Equal(t, analytics.RankImproved, trend.OwnRank)
	assert.Equal(t, analytics.DirectionDown, trend.Rank1Price)
	assert.Equal(t, analytics.DirectionDown, trend.OwnPrice)
	assert.Equal(t, 1, *trend.RankDelta)
}

func TestRunFullScrapeSweepPacesEvenAfterFailures(t *testing.T) {
	s := store.NewMemoryStore(testProducts()...)
	fetcher := NewMockFetcher() // every product fails
	delay := 30 * time.Millisecond

	start := time.Now()
	result, err := newTestOrchestrator(s, fetcher, &MockPublisher{}, delay).RunFullScrapeSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Failed)
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
}

func TestRunFullScrapeSweepPersistenceFailure(t *testing.T) {
	s := store.NewMemoryStore(testProducts()[:2]...)
	fetcher := NewMockFetcher()
	fetcher.pages[urlA] = offerPage([2]string{"medpex", "9,99 €"})
	fetcher.pages[urlB] = offerPage([2]string{"medpex", "9,99 €"})

	extractor := crawler.NewPageOfferExtractor(crawler.IdealoSelectors(), []string{"health rise"}, 0, "https://www.idealo.de")
	o := NewOrchestrator(s, failingSnapshots{s}, fetcher, extractor, nil, crawler.FetchOptions{}, 0)

	result, err := o.RunFullScrapeSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	for _, e := range result.Errors {
		assert.Equal(t, errors.ErrorTypePersistence, e.Type)
		assert.Contains(t, e.Message, "disk full")
	}
}

func TestRunFullScrapeSweepStopsWhenContextEnds(t *testing.T) {
	s := store.NewMemoryStore(testProducts()...)
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := NewMockFetcher()
	o := newTestOrchestrator(s, fetcher, &MockPublisher{}, time.Hour)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := o.RunFullScrapeSweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, fetcher.visits, 1)
}

func TestBuildSnapshot(t *testing.T) {
	p := func(v float64) *float64 { return &v }
	scan := crawler.ScanResult{
		Offers: []crawler.Offer{
			{Rank: 1, ShopName: "a", Price: p(10)},
			{Rank: 2, ShopName: "b", Price: nil},
		},
		RowCount: 2,
	}
	snap := buildSnapshot("x", time.Now(), scan)
	assert.Equal(t, "a", snap.Rank1.Shop)
	assert.Nil(t, snap.Rank2.Price)
	assert.Nil(t, snap.OwnRank)
	assert.Equal(t, 2, snap.CompetitorCount)
}
