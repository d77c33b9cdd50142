package store

import (
	"context"

	"sjsage522/pricewatch/internal/catalog"
)

// ProductStore reads the product catalog
type ProductStore interface {
	// ListProducts returns every catalog product ordered by id
	ListProducts(ctx context.Context) ([]catalog.Product, error)

	// UpsertProducts inserts or replaces catalog records by id
	UpsertProducts(ctx context.Context, products []catalog.Product) error
}

// SnapshotStore keeps the append-only scrape history
type SnapshotStore interface {
	// AppendSnapshot stores snap and assigns its ID
	AppendSnapshot(ctx context.Context, snap *catalog.Snapshot) error

	// LatestSnapshots returns up to n snapshots for productID, newest first
	LatestSnapshots(ctx context.Context, productID string, n int) ([]catalog.Snapshot, error)

	// RecentSnapshots returns up to n snapshots per product, newest first
	RecentSnapshots(ctx context.Context, n int) (map[string][]catalog.Snapshot, error)
}

// Store is the full persistence surface
type Store interface {
	ProductStore
	SnapshotStore

	Close() error
}
