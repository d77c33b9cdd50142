package crawler

import (
	"context"
	"time"
)

// Offer represents one row of a marketplace offer list
type Offer struct {
	Rank     int      `json:"rank"`
	Price    *float64 `json:"price"`
	ShopName string   `json:"shopName"`
	Link     string   `json:"link,omitempty"`
	IsOwn    bool     `json:"isOwn,omitempty"`
}

// Document is a parsed product page
type Document interface {
	// QueryAll returns every element matching selector in document order
	QueryAll(selector string) []Element
}

// Element is a single DOM node inside a Document
type Element interface {
	// Attr returns the attribute value and whether it was present
	Attr(name string) (string, bool)

	// Text returns the combined text of the element and its descendants
	Text() string

	// OwnText returns only the element's direct text nodes
	OwnText() string

	// InnerHTML returns the element's inner markup
	InnerHTML() string

	// QueryAll returns descendants matching selector
	QueryAll(selector string) []Element
}

// FetchOptions bounds a single page fetch
type FetchOptions struct {
	// WaitForSelector is awaited after navigation; a timeout is not an error
	WaitForSelector string
	// NavigationTimeout bounds reaching the page at all
	NavigationTimeout time.Duration
	// WaitTimeout bounds the wait for WaitForSelector
	WaitTimeout time.Duration
}

// PageFetcher loads a product page and returns its document
type PageFetcher interface {
	FetchDocument(ctx context.Context, url string, opts FetchOptions) (Document, error)

	// Close releases browser sessions or connections
	Close() error
}

// Selectors contains CSS selectors for an offer list page
type Selectors struct {
	OfferList string
	Price     string
	ShopLink  string
	ShopLogo  string
	Title     string

	// ShopNameAttr is read from ShopLink; TrackingAttr from the row itself
	ShopNameAttr string
	TrackingAttr string
	// TrackingShopKey is the JSON field naming the shop in TrackingAttr
	TrackingShopKey string
	// MarketplaceBrand marks logo alt texts that only echo the marketplace
	MarketplaceBrand string
}

// IdealoSelectors returns the selectors for idealo.de offer lists
func IdealoSelectors() Selectors {
	return Selectors{
		OfferList:        "li.productOffers-listItem",
		Price:            "a.productOffers-listItemOfferPrice",
		ShopLink:         "a[data-shop-name]",
		ShopLogo:         "img.productOffers-listItemOfferShopV2LogoImage",
		Title:            "h1",
		ShopNameAttr:     "data-shop-name",
		TrackingAttr:     "data-mtrx-click",
		TrackingShopKey:  "shop_name",
		MarketplaceBrand: "idealo",
	}
}

// ScanResult is what PageOfferExtractor reads from one document
type ScanResult struct {
	// Offers holds ranks 1 and 2 plus the own offer when it ranks lower
	Offers []Offer
	// Own is the own shop's offer if it was found in the scan window
	Own *Offer
	// RowCount is the number of offer rows on the page
	RowCount int
	// LowestPrice is the cheapest parsed competitor price in the scan window
	LowestPrice *float64
	// Title is the product headline, if present
	Title string
}
