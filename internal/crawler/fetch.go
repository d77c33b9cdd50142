package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/pkg/errors"
	"sjsage522/pricewatch/services/cache"
)

// rateLimitKeyPrefix namespaces per-host block markers in the cache
const rateLimitKeyPrefix = "pricewatch_rate_limited:"

// HTTPFetcher loads pages with a plain GET. It cannot wait for script-rendered
// offers, so WaitForSelector is ignored.
type HTTPFetcher struct{}

// NewHTTPFetcher creates a static HTML fetcher
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{}
}

// FetchDocument fetches url and parses the response body
func (f *HTTPFetcher) FetchDocument(ctx context.Context, url string, opts FetchOptions) (Document, error) {
	if opts.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.NavigationTimeout)
		defer cancel()
	}

	body, err := helpers.FetchWithRandomHeaders(ctx, url)
	if err != nil {
		var rl *helpers.RateLimitError
		if stderrors.As(err, &rl) {
			return nil, errors.New(errors.ErrorTypeRateLimit, "", "fetch "+url, err)
		}
		return nil, errors.NewNavigation("", "fetch "+url, err)
	}

	doc, err := NewDocumentFromReader(body)
	if err != nil {
		return nil, errors.NewParsing("", "parse "+url, err)
	}
	return doc, nil
}

// Close is a no-op
func (f *HTTPFetcher) Close() error {
	return nil
}

// BlockingFetcher stops fetching from a host for a while after it answered
// with a rate limit.
type BlockingFetcher struct {
	next      PageFetcher
	cacheSvc  cache.CacheService
	blockTime time.Duration
}

// NewBlockingFetcher wraps next. Without a cache service next is returned as is.
func NewBlockingFetcher(next PageFetcher, cacheSvc cache.CacheService, blockTime time.Duration) PageFetcher {
	if cacheSvc == nil || blockTime <= 0 {
		return next
	}
	return &BlockingFetcher{next: next, cacheSvc: cacheSvc, blockTime: blockTime}
}

// FetchDocument refuses blocked hosts and blocks hosts that rate limit us
func (f *BlockingFetcher) FetchDocument(ctx context.Context, url string, opts FetchOptions) (Document, error) {
	host := helpers.Host(url)
	key := rateLimitKeyPrefix + host

	// Check if the host is still blocked
	if _, err := f.cacheSvc.Get(key); err == nil {
		return nil, errors.NewRateLimit(host, f.blockTime)
	}

	doc, err := f.next.FetchDocument(ctx, url, opts)
	if err != nil && errors.TypeOf(err) == errors.ErrorTypeRateLimit {
		value := []byte(fmt.Sprintf("%d", int(f.blockTime/time.Second)))
		if setErr := f.cacheSvc.Set(key, value, f.blockTime); setErr != nil {
			logger.ForCache().Warn().Err(setErr).Str("host", host).Msg("Failed to store rate limit block")
		} else {
			logger.ForFetcher(host).Warn().Dur("block_time", f.blockTime).Msg("Host rate limited, blocking further requests")
		}
	}
	return doc, err
}

// Close closes the wrapped fetcher
func (f *BlockingFetcher) Close() error {
	return f.next.Close()
}
