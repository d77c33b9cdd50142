package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/pkg/errors"
)

// ChromeFetcher renders pages in a single headless Chrome session. Fetches
// are serialized; each one opens and closes its own tab.
type ChromeFetcher struct {
	chromeBin string

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewChromeFetcher creates a fetcher that launches chromeBin on first use.
// An empty chromeBin lets rod locate or download a browser.
func NewChromeFetcher(chromeBin string) *ChromeFetcher {
	return &ChromeFetcher{chromeBin: chromeBin}
}

// connect starts the browser once; the caller holds mu
func (c *ChromeFetcher) connect() error {
	if c.browser != nil {
		return nil
	}

	l := launcher.New().Headless(true).NoSandbox(true)
	if c.chromeBin != "" {
		l = l.Bin(c.chromeBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return errors.NewConfiguration("failed to launch chrome", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return errors.NewConfiguration("failed to connect to chrome", err)
	}

	c.launcher = l
	c.browser = browser
	logger.ForFetcher("chrome").Info().Str("control_url", controlURL).Msg("Chrome session started")
	return nil
}

// FetchDocument navigates to url, waits up to opts.WaitTimeout for the offer
// list and returns whatever DOM is present at that point.
func (c *ChromeFetcher) FetchDocument(ctx context.Context, url string, opts FetchOptions) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(); err != nil {
		return nil, err
	}

	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, errors.NewNavigation("", "failed to open tab", err)
	}
	defer page.Close()

	log := logger.ForFetcher(helpers.Host(url))

	navPage := page.Context(ctx)
	if opts.NavigationTimeout > 0 {
		navPage = navPage.Timeout(opts.NavigationTimeout)
	}
	if err := navPage.Navigate(url); err != nil {
		return nil, errors.NewNavigation("", fmt.Sprintf("navigate %s", url), err)
	}

	if opts.WaitForSelector != "" {
		waitPage := page.Context(ctx)
		if opts.WaitTimeout > 0 {
			waitPage = waitPage.Timeout(opts.WaitTimeout)
		}
		if _, err := waitPage.Element(opts.WaitForSelector); err != nil {
			log.Warn().Err(err).Str("selector", opts.WaitForSelector).Msg("Offers not present before timeout, continuing with current DOM")
		}
	}

	html, err := page.Context(ctx).HTML()
	if err != nil {
		return nil, errors.NewExtraction("", "read rendered HTML", err)
	}

	return NewDocumentFromHTML(html)
}

// Close shuts the browser down
func (c *ChromeFetcher) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.launcher.Kill()
	c.browser = nil
	c.launcher = nil
	return err
}
