package crawler

import (
	"sjsage522/pricewatch/config"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/services/cache"
)

// NewFetcher creates the page fetcher selected by cfg.FetchMode, wrapped
// with the rate-limit block when a cache is available
func NewFetcher(cfg *config.Config, cacheSvc cache.CacheService) PageFetcher {
	var fetcher PageFetcher
	switch cfg.FetchMode {
	case config.FetchModeHTTP:
		logger.Info("Using standard fetch for %s", cfg.MarketplaceBaseURL)
		fetcher = NewHTTPFetcher()
	default:
		logger.Info("Using headless Chrome for %s", cfg.MarketplaceBaseURL)
		fetcher = NewChromeFetcher(cfg.ChromeBin)
	}
	return NewBlockingFetcher(fetcher, cacheSvc, cfg.RateLimitBlock)
}

// NewExtractor creates the idealo offer extractor configured by cfg
func NewExtractor(cfg *config.Config) *PageOfferExtractor {
	return NewPageOfferExtractor(IdealoSelectors(), cfg.OwnShopAliases, cfg.OfferScanLimit, cfg.MarketplaceBaseURL)
}

// FetchOptionsFor returns the per-product fetch bounds from cfg
func FetchOptionsFor(cfg *config.Config) FetchOptions {
	return FetchOptions{
		WaitForSelector:   IdealoSelectors().Price,
		NavigationTimeout: cfg.NavigationTimeout,
		WaitTimeout:       cfg.OfferWaitTimeout,
	}
}
