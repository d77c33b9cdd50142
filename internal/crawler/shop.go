package crawler

import (
	"encoding/json"
	"strings"
)

// UnknownShop is reported when no DOM signal names the seller
const UnknownShop = "Unknown"

// shopSuffixSeparator splits "<name> - <locality>" display names
const shopSuffixSeparator = " - "

// ShopStrategy reads a shop name from one DOM signal of an offer row and
// returns "" when that signal is missing or unusable.
type ShopStrategy func(row Element) string

// ShopIdentityResolver tries its strategies in order; the first non-empty
// result wins.
type ShopIdentityResolver struct {
	strategies []ShopStrategy
}

// NewShopIdentityResolver builds the attribute, logo alt text, tracking
// payload chain for the given selectors
func NewShopIdentityResolver(sel Selectors) *ShopIdentityResolver {
	return NewShopIdentityResolverWith(
		ShopNameAttribute(sel.ShopLink, sel.ShopNameAttr),
		LogoAltText(sel.ShopLogo, sel.MarketplaceBrand),
		TrackingPayload(sel.TrackingAttr, sel.TrackingShopKey),
	)
}

// NewShopIdentityResolverWith builds a resolver from an explicit chain
func NewShopIdentityResolverWith(strategies ...ShopStrategy) *ShopIdentityResolver {
	return &ShopIdentityResolver{strategies: strategies}
}

// Resolve returns the cleaned shop name for row, or UnknownShop
func (r *ShopIdentityResolver) Resolve(row Element) string {
	return CleanShopName(applyStrategies(row, r.strategies))
}

// applyStrategies applies a series of strategies to a row
func applyStrategies(row Element, strategies []ShopStrategy) string {
	for _, strategy := range strategies {
		if strategy == nil {
			continue
		}
		if name := strings.TrimSpace(strategy(row)); name != "" {
			return name
		}
	}
	return ""
}

// CleanShopName drops a " - <suffix>" locality tail
func CleanShopName(name string) string {
	if prefix, _, found := strings.Cut(name, shopSuffixSeparator); found {
		name = prefix
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownShop
	}
	return name
}

// ShopNameAttribute reads attr from the first element matching selector
func ShopNameAttribute(selector, attr string) ShopStrategy {
	return func(row Element) string {
		el := first(row, selector)
		if el == nil {
			return ""
		}
		value, _ := el.Attr(attr)
		return value
	}
}

// LogoAltText reads the logo's alt text unless it only names the marketplace
func LogoAltText(selector, marketplaceBrand string) ShopStrategy {
	brand := strings.ToLower(marketplaceBrand)
	return func(row Element) string {
		img := first(row, selector)
		if img == nil {
			return ""
		}
		alt, _ := img.Attr("alt")
		if brand != "" && strings.Contains(strings.ToLower(alt), brand) {
			return ""
		}
		return alt
	}
}

// TrackingPayload parses the row's JSON click-tracking attribute and reads
// key from it. Malformed payloads yield "".
func TrackingPayload(attr, key string) ShopStrategy {
	return func(row Element) string {
		raw, ok := row.Attr(attr)
		if !ok || strings.TrimSpace(raw) == "" {
			return ""
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return ""
		}
		name, _ := payload[key].(string)
		return name
	}
}
