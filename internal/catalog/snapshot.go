package catalog

import "time"

// RankedOffer is one of the two leading offers on a listing page
type RankedOffer struct {
	Shop  string   `json:"shop"`
	Price *float64 `json:"price"`
	Link  string   `json:"link"`
}

// Snapshot is one immutable scrape observation for a product. Rank2 is nil
// when fewer than two offers were listed; OwnRank is nil when the own shop
// was not found in the scanned window.
type Snapshot struct {
	ID              int64        `json:"id"`
	ProductID       string       `json:"productId"`
	TakenAt         time.Time    `json:"takenAt"`
	Rank1           *RankedOffer `json:"rank1"`
	Rank2           *RankedOffer `json:"rank2"`
	OwnRank         *int         `json:"ownRank"`
	OwnPrice        *float64     `json:"ownPrice"`
	OwnLink         string       `json:"ownLink,omitempty"`
	CompetitorCount int          `json:"competitorCount"`
	LowestPrice     *float64     `json:"lowestPrice"`
}

// Rank1Price returns the rank-1 price or nil
func (s *Snapshot) Rank1Price() *float64 {
	if s == nil || s.Rank1 == nil {
		return nil
	}
	return s.Rank1.Price
}

// Rank2Price returns the rank-2 price or nil
func (s *Snapshot) Rank2Price() *float64 {
	if s == nil || s.Rank2 == nil {
		return nil
	}
	return s.Rank2.Price
}
