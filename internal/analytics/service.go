package analytics

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"sjsage522/pricewatch/internal/catalog"
	"sjsage522/pricewatch/services/store"
)

// historyDepth is how many snapshots per product the trend needs
const historyDepth = 2

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	// Search matches product name, id or GTIN, case-insensitively
	Search string
	// MinMarginPct drops products whose margin is lower or undefined
	MinMarginPct *float64
	// Lights keeps only the given traffic lights
	Lights []TrafficLight
}

// Service answers the read-side queries over the catalog and snapshot history
type Service struct {
	products  store.ProductStore
	snapshots store.SnapshotStore
	topN      int
}

// NewService creates a read service
func NewService(products store.ProductStore, snapshots store.SnapshotStore, topN int) *Service {
	return &Service{products: products, snapshots: snapshots, topN: topN}
}

// ListProducts returns every product with its latest and previous snapshot
// and derived figures
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]ProductView, error) {
	views, err := s.views(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(views, func(v ProductView, _ int) bool { return filter.matches(v) }), nil
}

// Dashboard aggregates the whole catalog
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	views, err := s.views(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Aggregate(views, s.topN), nil
}

func (s *Service) views(ctx context.Context) ([]ProductView, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	history, err := s.snapshots.RecentSnapshots(ctx, historyDepth)
	if err != nil {
		return nil, fmt.Errorf("recent snapshots: %w", err)
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		recent := history[p.ID]
		views = append(views, BuildView(p, at(recent, 0), at(recent, 1)))
	}
	return views, nil
}

func (f ProductFilter) matches(v ProductView) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystacks := []string{v.Name, v.ID, v.GTIN}
		if !lo.SomeBy(haystacks, func(h string) bool { return strings.Contains(strings.ToLower(h), needle) }) {
			return false
		}
	}
	if f.MinMarginPct != nil {
		if v.Metrics.MarginPct == nil || *v.Metrics.MarginPct < *f.MinMarginPct {
			return false
		}
	}
	if len(f.Lights) > 0 && !lo.Contains(f.Lights, v.Metrics.TrafficLight) {
		return false
	}
	return true
}

func at(snapshots []catalog.Snapshot, i int) *catalog.Snapshot {
	if i >= len(snapshots) {
		return nil
	}
	snap := snapshots[i]
	return &snap
}
