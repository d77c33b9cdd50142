package store

import (
	"context"
	"sort"
	"sync"

	"sjsage522/pricewatch/internal/catalog"
)

// MemoryStore keeps products and snapshots in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	products  map[string]catalog.Product
	snapshots map[string][]catalog.Snapshot // per product, in insertion order
	nextID    int64
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store seeded with products
func NewMemoryStore(products ...catalog.Product) *MemoryStore {
	s := &MemoryStore{
		products:  make(map[string]catalog.Product),
		snapshots: make(map[string][]catalog.Snapshot),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// ListProducts returns all products ordered by id
func (s *MemoryStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// UpsertProducts inserts or replaces products by id
func (s *MemoryStore) UpsertProducts(ctx context.Context, products []catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
	}
	return nil
}

// AppendSnapshot stores a copy of snap
func (s *MemoryStore) AppendSnapshot(ctx context.Context, snap *catalog.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	snap.ID = s.nextID
	s.snapshots[snap.ProductID] = append(s.snapshots[snap.ProductID], *snap)
	return nil
}

// LatestSnapshots returns up to n snapshots for productID, newest first
func (s *MemoryStore) LatestSnapshots(ctx context.Context, productID string, n int) ([]catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.snapshots[productID], n), nil
}

// RecentSnapshots returns up to n snapshots per product, newest first
func (s *MemoryStore) RecentSnapshots(ctx context.Context, n int) (map[string][]catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := make(map[string][]catalog.Snapshot, len(s.snapshots))
	for productID, history := range s.snapshots {
		if latest := newestFirst(history, n); len(latest) > 0 {
			recent[productID] = latest
		}
	}
	return recent, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// newestFirst orders by timestamp descending; equal timestamps keep the
// later insert first
func newestFirst(history []catalog.Snapshot, n int) []catalog.Snapshot {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	sorted := make([]catalog.Snapshot, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].TakenAt.Equal(sorted[j].TakenAt) {
			return sorted[i].TakenAt.After(sorted[j].TakenAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
