package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sjsage522/pricewatch/internal/catalog"
	"sjsage522/pricewatch/internal/crawler"
	"sjsage522/pricewatch/pkg/errors"
	"sjsage522/pricewatch/services/publisher"
	"sjsage522/pricewatch/services/store"
)

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu       sync.Mutex
	messages [][]byte
	trimmed  int
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy the message to ensure thread safety
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)
	m.messages = append(m.messages, messageCopy)
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// MockFetcher serves fixed HTML per URL and records the visit order
type MockFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	visits []string
}

// Ensure MockFetcher implements crawler.PageFetcher
var _ crawler.PageFetcher = (*MockFetcher)(nil)

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{pages: make(map[string]string), errs: make(map[string]error)}
}

func (m *MockFetcher) FetchDocument(ctx context.Context, url string, opts crawler.FetchOptions) (crawler.Document, error) {
	m.mu.Lock()
	m.visits = append(m.visits, url)
	html, ok := m.pages[url]
	err := m.errs[url]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNavigation("", "navigate "+url, fmt.Errorf("net::ERR_NAME_NOT_RESOLVED"))
	}
	return crawler.NewDocumentFromHTML(html)
}

func (m *MockFetcher) Close() error {
	return nil
}

// failingSnapshots rejects every append
type failingSnapshots struct {
	store.SnapshotStore
}

func (failingSnapshots) AppendSnapshot(ctx context.Context, snap *catalog.Snapshot) error {
	return errors.NewPersistence(snap.ProductID, "insert snapshot", fmt.Errorf("disk full"))
}

// offerPage renders offer rows from {shop, price} pairs
func offerPage(offers ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><h1>Produkt</h1><ul>`)
	for i, o := range offers {
		fmt.Fprintf(&b, `<li class="productOffers-listItem"><a data-shop-name="%s"></a>
			<a class="productOffers-listItemOfferPrice" href="/relocator/relocate?offerKey=%d">%s</a></li>`, o[0], i+1, o[1])
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}
