package crawler

import (
	"strings"

	"github.com/samber/lo"

	"sjsage522/pricewatch/helpers"
)

// DefaultScanLimit is how many offer rows are inspected per page
const DefaultScanLimit = 20

// leadingRanks are always reported, whoever holds them
const leadingRanks = 2

// PageOfferExtractor turns a rendered offer list into ranked offers
type PageOfferExtractor struct {
	selectors  Selectors
	shops      *ShopIdentityResolver
	ownAliases []string
	scanLimit  int
	baseURL    string
}

// NewPageOfferExtractor creates an extractor. ownAliases are matched as
// case-insensitive substrings of the resolved shop name; links are resolved
// against baseURL.
func NewPageOfferExtractor(sel Selectors, ownAliases []string, scanLimit int, baseURL string) *PageOfferExtractor {
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}
	aliases := lo.Compact(lo.Map(ownAliases, func(a string, _ int) string {
		return strings.ToLower(strings.TrimSpace(a))
	}))
	return &PageOfferExtractor{
		selectors:  sel,
		shops:      NewShopIdentityResolver(sel),
		ownAliases: aliases,
		scanLimit:  scanLimit,
		baseURL:    baseURL,
	}
}

// Extract returns ranks 1 and 2 plus the own offer when it ranks lower.
// A document without offer rows yields an empty slice.
func (x *PageOfferExtractor) Extract(doc Document) []Offer {
	return x.Scan(doc).Offers
}

// Scan reads up to the scan limit of offer rows from doc
func (x *PageOfferExtractor) Scan(doc Document) ScanResult {
	rows := doc.QueryAll(x.selectors.OfferList)
	result := ScanResult{
		Offers:   []Offer{},
		RowCount: len(rows),
		Title:    x.title(doc),
	}

	limit := min(len(rows), x.scanLimit)
	for i := 0; i < limit; i++ {
		offer := x.readRow(rows[i], i+1)

		if i < leadingRanks {
			result.Offers = append(result.Offers, offer)
		}

		if offer.IsOwn {
			if result.Own == nil {
				own := offer
				result.Own = &own
			}
			continue
		}

		if offer.Price != nil && (result.LowestPrice == nil || *offer.Price < *result.LowestPrice) {
			lowest := *offer.Price
			result.LowestPrice = &lowest
		}
	}

	if result.Own != nil && result.Own.Rank > leadingRanks {
		result.Offers = append(result.Offers, *result.Own)
	}

	return result
}

func (x *PageOfferExtractor) readRow(row Element, rank int) Offer {
	offer := Offer{
		Rank:     rank,
		ShopName: x.shops.Resolve(row),
	}

	if priceEl := first(row, x.selectors.Price); priceEl != nil {
		offer.Price = rowPrice(priceEl)
		if href, ok := priceEl.Attr("href"); ok {
			offer.Link = helpers.ResolveURL(x.baseURL, href)
		}
	}

	offer.IsOwn = x.isOwnShop(offer.ShopName)
	return offer
}

// rowPrice prefers the element's direct text so a nested reference price
// is not picked up.
func rowPrice(priceEl Element) *float64 {
	text := priceEl.OwnText()
	if text == "" {
		text = priceEl.Text()
	}
	return helpers.ParseGermanPrice(text)
}

func (x *PageOfferExtractor) isOwnShop(shop string) bool {
	name := strings.ToLower(shop)
	return lo.SomeBy(x.ownAliases, func(alias string) bool {
		return strings.Contains(name, alias)
	})
}

func (x *PageOfferExtractor) title(doc Document) string {
	if x.selectors.Title == "" {
		return ""
	}
	headings := doc.QueryAll(x.selectors.Title)
	if len(headings) == 0 {
		return ""
	}
	return headings[0].Text()
}
