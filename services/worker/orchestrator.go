package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"

	"sjsage522/pricewatch/internal/catalog"
	"sjsage522/pricewatch/internal/crawler"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/pkg/errors"
	"sjsage522/pricewatch/services/publisher"
	"sjsage522/pricewatch/services/store"
)

// SweepError is one product's failure in a sweep
type SweepError struct {
	ProductID string           `json:"productId"`
	Type      errors.ErrorType `json:"type"`
	Message   string           `json:"message"`
}

// SweepResult summarises a full sweep
type SweepResult struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Errors    []SweepError `json:"errors"`
}

// SnapshotEvent is published for every stored snapshot
type SnapshotEvent struct {
	ProductName string           `json:"productName"`
	PageTitle   string           `json:"pageTitle,omitempty"`
	Snapshot    catalog.Snapshot `json:"snapshot"`
	Offers      []crawler.Offer  `json:"offers"`
}

// Orchestrator visits monitored products one at a time and records a
// snapshot for each
type Orchestrator struct {
	products  store.ProductStore
	snapshots store.SnapshotStore
	fetcher   crawler.PageFetcher
	extractor *crawler.PageOfferExtractor
	publisher publisher.Publisher
	fetchOpts crawler.FetchOptions
	delay     time.Duration
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. delay is kept between consecutive
// products, including after failures.
func NewOrchestrator(
	products store.ProductStore,
	snapshots store.SnapshotStore,
	fetcher crawler.PageFetcher,
	extractor *crawler.PageOfferExtractor,
	pub publisher.Publisher,
	fetchOpts crawler.FetchOptions,
	delay time.Duration,
) *Orchestrator {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	return &Orchestrator{
		products:  products,
		snapshots: snapshots,
		fetcher:   fetcher,
		extractor: extractor,
		publisher: pub,
		fetchOpts: fetchOpts,
		delay:     delay,
		now:       time.Now,
	}
}

// RunFullScrapeSweep scrapes every monitored product. Per-product failures are
// collected in the result; the returned error is only set when the product
// list could not be read or ctx ended the sweep early.
func (o *Orchestrator) RunFullScrapeSweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{Errors: []SweepError{}}

	products, err := o.products.ListProducts(ctx)
	if err != nil {
		return result, fmt.Errorf("list products: %w", err)
	}
	monitored := lo.Filter(products, func(p catalog.Product, _ int) bool { return p.IsMonitored() })

	log := logger.ForWorker()
	log.Info().Int("products", len(monitored)).Msg("Starting scrape sweep")

	start := time.Now()
	for idx, p := range monitored {
		if idx > 0 {
			if err := o.waitForNextSlot(ctx); err != nil {
				log.Warn().Err(err).Int("remaining", len(monitored)-idx).Msg("Sweep interrupted")
				return result, err
			}
		}

		if err := o.scrapeProduct(ctx, p); err != nil {
			se := errors.WithProduct(err, p.ID, errors.ErrorTypeNavigation)
			result.Failed++
			result.Errors = append(result.Errors, SweepError{ProductID: p.ID, Type: se.Type, Message: se.Error()})
			productOutcomes.WithLabelValues("failed").Inc()
			productFailures.WithLabelValues(string(se.Type)).Inc()
			logger.ForProduct(p.ID).Error().Err(se).Str("error_type", string(se.Type)).Msg("Product scrape failed")
			continue
		}

		result.Succeeded++
		productOutcomes.WithLabelValues("succeeded").Inc()
	}

	if err := o.publisher.TrimStreams(); err != nil {
		logger.ForPublisher().Warn().Err(err).Msg("Failed to trim snapshot streams")
	}

	elapsed := time.Since(start)
	sweepDuration.Observe(elapsed.Seconds())
	log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("elapsed", elapsed).
		Msg("Scrape sweep finished")

	return result, nil
}

// waitForNextSlot paces requests to the marketplace
func (o *Orchestrator) waitForNextSlot(ctx context.Context) error {
	if o.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(o.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scrapeProduct fetches, extracts and stores one snapshot
func (o *Orchestrator) scrapeProduct(ctx context.Context, p catalog.Product) error {
	log := logger.ForProduct(p.ID)
	start := time.Now()
	defer func() {
		productDuration.Observe(time.Since(start).Seconds())
	}()

	doc, err := o.fetcher.FetchDocument(ctx, p.ListingURL, o.fetchOpts)
	if err != nil {
		return errors.WithProduct(err, p.ID, errors.ErrorTypeNavigation)
	}

	scan, err := o.scan(p.ID, doc)
	if err != nil {
		return err
	}

	snap := buildSnapshot(p.ID, o.now(), scan)
	if scan.RowCount == 0 {
		log.Warn().Str("url", p.ListingURL).Msg("No offers on listing page")
	}

	if err := o.snapshots.AppendSnapshot(ctx, snap); err != nil {
		return errors.WithProduct(err, p.ID, errors.ErrorTypePersistence)
	}

	log.Debug().
		Int("competitors", snap.CompetitorCount).
		Interface("own_rank", snap.OwnRank).
		Str("title", scan.Title).
		Msg("Snapshot stored")

	o.publish(p, scan, snap)
	return nil
}

// scan runs the extractor, turning a panic in DOM handling into an error
func (o *Orchestrator) scan(productID string, doc crawler.Document) (scan crawler.ScanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewExtraction(productID, "extractor panicked", fmt.Errorf("%v", r))
		}
	}()
	return o.extractor.Scan(doc), nil
}

func (o *Orchestrator) publish(p catalog.Product, scan crawler.ScanResult, snap *catalog.Snapshot) {
	data, err := json.Marshal(SnapshotEvent{
		ProductName: p.Name,
		PageTitle:   scan.Title,
		Snapshot:    *snap,
		Offers:      scan.Offers,
	})
	if err != nil {
		logger.ForPublisher().Error().Err(err).Str("product_id", p.ID).Msg("Failed to encode snapshot event")
		return
	}
	if err := o.publisher.Publish(publisher.SnapshotEventKey, data); err != nil {
		logger.ForPublisher().Warn().Err(err).Str("product_id", p.ID).Msg("Failed to publish snapshot event")
	}
}

// buildSnapshot maps an extraction onto the persisted snapshot shape
func buildSnapshot(productID string, at time.Time, scan crawler.ScanResult) *catalog.Snapshot {
	snap := &catalog.Snapshot{
		ProductID:       productID,
		TakenAt:         at,
		CompetitorCount: scan.RowCount,
		LowestPrice:     scan.LowestPrice,
	}

	for _, offer := range scan.Offers {
		ranked := &catalog.RankedOffer{Shop: offer.ShopName, Price: offer.Price, Link: offer.Link}
		switch offer.Rank {
		case 1:
			snap.Rank1 = ranked
		case 2:
			snap.Rank2 = ranked
		}
	}

	if scan.Own != nil {
		rank := scan.Own.Rank
		snap.OwnRank = &rank
		snap.OwnPrice = scan.Own.Price
		snap.OwnLink = scan.Own.Link
		snap.CompetitorCount--
	}
	return snap
}
