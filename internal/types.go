package internal

import (
	"sjsage522/pricewatch/internal/crawler"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/services/cache"
	"sjsage522/pricewatch/services/publisher"
	"sjsage522/pricewatch/services/store"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Store     store.Store
	Cache     cache.CacheService // nil when no memcache is configured
	Publisher publisher.Publisher
	Fetcher   crawler.PageFetcher
}

// Close releases every dependency that holds a connection or process
func (d *Dependencies) Close() {
	if d.Fetcher != nil {
		if err := d.Fetcher.Close(); err != nil {
			logger.LogError("fetcher", err, "Failed to close page fetcher")
		}
	}
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "Failed to close publisher")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			logger.LogError("store", err, "Failed to close store")
		}
	}
}
