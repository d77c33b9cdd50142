package analytics

import (
	"math"

	"sjsage522/pricewatch/internal/catalog"
)

// priceEpsilon treats sub-cent differences as unchanged
const priceEpsilon = 0.005

// Direction describes how a price moved between two snapshots
type Direction string

const (
	DirectionUp         Direction = "up"
	DirectionDown       Direction = "down"
	DirectionFlat       Direction = "flat"
	DirectionUnknown    Direction = "unknown"
	DirectionNoBaseline Direction = "no_baseline"
)

// RankMovement describes how the own rank moved; a lower rank is better
type RankMovement string

const (
	RankImproved   RankMovement = "improved"
	RankWorsened   RankMovement = "worsened"
	RankUnchanged  RankMovement = "unchanged"
	RankUnknown    RankMovement = "unknown"
	RankNoBaseline RankMovement = "no_baseline"
)

// Trend compares the two most recent snapshots of a product
type Trend struct {
	Rank1Price Direction    `json:"rank1Price"`
	OwnPrice   Direction    `json:"ownPrice"`
	OwnRank    RankMovement `json:"ownRank"`
	// RankDelta is previous minus current own rank; positive means improved
	RankDelta *int `json:"rankDelta"`
}

// Diff compares current with previous. A missing previous snapshot (or no
// snapshot at all) yields the no-baseline indicators.
func Diff(current, previous *catalog.Snapshot) Trend {
	if current == nil || previous == nil {
		return Trend{
			Rank1Price: DirectionNoBaseline,
			OwnPrice:   DirectionNoBaseline,
			OwnRank:    RankNoBaseline,
		}
	}

	trend := Trend{
		Rank1Price: priceDirection(current.Rank1Price(), previous.Rank1Price()),
		OwnPrice:   priceDirection(current.OwnPrice, previous.OwnPrice),
		OwnRank:    rankMovement(current.OwnRank, previous.OwnRank),
	}
	if current.OwnRank != nil && previous.OwnRank != nil {
		delta := *previous.OwnRank - *current.OwnRank
		trend.RankDelta = &delta
	}
	return trend
}

func priceDirection(current, previous *float64) Direction {
	if current == nil || previous == nil {
		return DirectionUnknown
	}
	diff := *current - *previous
	switch {
	case math.Abs(diff) < priceEpsilon:
		return DirectionFlat
	case diff > 0:
		return DirectionUp
	default:
		return DirectionDown
	}
}

// rankMovement is inverted relative to prices: going from 3 to 1 is an improvement
func rankMovement(current, previous *int) RankMovement {
	if current == nil || previous == nil {
		return RankUnknown
	}
	switch {
	case *current < *previous:
		return RankImproved
	case *current > *previous:
		return RankWorsened
	default:
		return RankUnchanged
	}
}
