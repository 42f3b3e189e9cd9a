package rates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/domain/shipping"
)

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// CartItem is one line of the checkout cart, already resolved to its
// fulfillment provider.
type CartItem struct {
	ProviderID int
	Quantity   int
}

// Request is one shipping rate computation for a cart.
type Request struct {
	Items       []CartItem
	Destination shipping.Destination
	// Currency is the display currency for computed costs.
	Currency string
}

// Option is a single shipping choice offered at checkout.
type Option struct {
	Provider        string          `json:"provider,omitempty"`
	Method          string          `json:"method"`
	Carrier         string          `json:"carrier,omitempty"`
	Cost            decimal.Decimal `json:"cost"`
	Currency        string          `json:"currency"`
	MinDeliveryDays int             `json:"min_delivery_days"`
	MaxDeliveryDays int             `json:"max_delivery_days"`
	Fallback        bool            `json:"fallback,omitempty"`
}

// Quote is the full set of options for a cart.
type Quote struct {
	Options  []Option `json:"options"`
	Combined bool     `json:"combined"`
}

// ProfileFinder is the slice of the shipping profile cache the aggregator
// consumes.
type ProfileFinder interface {
	Find(ctx context.Context, providerID int, dest shipping.Destination) (*shipping.Region, *shipping.Profile, error)
}

// QuoteCache caches computed quotes across repeated pushes of the same cart.
type QuoteCache interface {
	Get(ctx context.Context, key string) (*Quote, bool)
	Set(ctx context.Context, key string, quote *Quote, ttl time.Duration)
}

// Config holds rate aggregation settings.
type Config struct {
	// TieredPricing charges first-item + additional-item * (qty-1); when
	// disabled the first-item rate is charged once regardless of quantity.
	TieredPricing bool
	// CombinedMode merges methods across providers instead of emitting one
	// option per (provider, method) pair.
	CombinedMode bool
	// FallbackCost, in the base currency, is contributed by providers with
	// no matching region. Checkout always returns some option.
	FallbackCost decimal.Decimal
	// FallbackMethod names the fallback option.
	FallbackMethod string
	// ResultTTL is the quote cache lifetime.
	ResultTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.FallbackMethod == "" {
		c.FallbackMethod = "Standard"
	}
	if c.ResultTTL == 0 {
		c.ResultTTL = 5 * time.Minute
	}
}

// Aggregator computes checkout shipping options by querying cached provider
// rate tables, grouping or splitting results per cart composition.
type Aggregator struct {
	profiles  ProfileFinder
	converter *Converter
	cache     QuoteCache
	config    Config
	logger    *zap.Logger
}

// NewAggregator creates a shipping rate aggregator. cache may be nil to
// disable quote caching.
func NewAggregator(profiles ProfileFinder, converter *Converter, cache QuoteCache, config Config, logger *zap.Logger) *Aggregator {
	config.applyDefaults()
	return &Aggregator{
		profiles:  profiles,
		converter: converter,
		cache:     cache,
		config:    config,
		logger:    logger,
	}
}

// ---------------------------------------------------------------------------
// Quote computation
// ---------------------------------------------------------------------------

// providerGroup is one provider's slice of the cart.
type providerGroup struct {
	providerID int
	quantity   int
}

// Quote computes shipping options for a cart. One provider's failure never
// blocks the others; providers without a matching region contribute the
// configured flat fallback cost.
func (a *Aggregator) Quote(ctx context.Context, req Request) (*Quote, error) {
	groups := groupByProvider(req.Items)
	if len(groups) == 0 {
		return &Quote{Options: []Option{}, Combined: a.config.CombinedMode}, nil
	}

	key := a.cacheKey(req, groups)
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	perProvider := make([][]Option, 0, len(groups))
	for _, group := range groups {
		perProvider = append(perProvider, a.providerOptions(ctx, group, req))
	}

	quote := &Quote{Combined: a.config.CombinedMode}
	if a.config.CombinedMode && len(perProvider) > 1 {
		quote.Options = combineOptions(perProvider, req.Currency)
		if len(quote.Options) == 0 {
			// No method survived the intersection. Checkout still gets an
			// option: every provider contributes the flat fallback.
			quote.Options = []Option{a.combinedFallback(groups, req.Currency)}
		}
	} else {
		for _, options := range perProvider {
			quote.Options = append(quote.Options, options...)
		}
	}

	if a.cache != nil {
		a.cache.Set(ctx, key, quote, a.config.ResultTTL)
	}
	return quote, nil
}

// providerOptions computes the options one provider contributes to the cart.
func (a *Aggregator) providerOptions(ctx context.Context, group providerGroup, req Request) []Option {
	region, profile, err := a.profiles.Find(ctx, group.providerID, req.Destination)
	if err != nil {
		a.logger.Warn("falling back to flat shipping rate",
			zap.Int("provider_id", group.providerID),
			zap.String("country", req.Destination.Country),
			zap.Error(err),
		)
		return []Option{a.fallbackOption(group, profile, req.Currency)}
	}

	options := make([]Option, 0, len(region.Rates))
	for _, rate := range region.Rates {
		cost := a.methodCost(rate, group.quantity)
		// Conversion happens once per computed cost, before any merging.
		cost = a.converter.Convert(cost, rate.Currency, req.Currency)
		options = append(options, Option{
			Provider:        profile.ProviderName,
			Method:          rate.Method,
			Carrier:         rate.Carrier,
			Cost:            cost,
			Currency:        req.Currency,
			MinDeliveryDays: rate.MinDeliveryDays,
			MaxDeliveryDays: rate.MaxDeliveryDays,
		})
	}
	if len(options) == 0 {
		return []Option{a.fallbackOption(group, profile, req.Currency)}
	}
	return options
}

// methodCost applies the pricing policy for one method. Tiered pricing
// charges the first-item rate once and the additional-item rate for every
// unit after the first; flat mode charges the first-item rate once
// regardless of quantity.
func (a *Aggregator) methodCost(rate shipping.Rate, quantity int) decimal.Decimal {
	if !a.config.TieredPricing || quantity <= 1 {
		return rate.FirstItem
	}
	extra := rate.AdditionalItem.Mul(decimal.NewFromInt(int64(quantity - 1)))
	return rate.FirstItem.Add(extra)
}

func (a *Aggregator) fallbackOption(group providerGroup, profile *shipping.Profile, currency string) Option {
	providerName := fmt.Sprintf("provider %d", group.providerID)
	if profile != nil && profile.ProviderName != "" {
		providerName = profile.ProviderName
	}
	return Option{
		Provider: providerName,
		Method:   a.config.FallbackMethod,
		Cost:     a.converter.Convert(a.config.FallbackCost, a.converter.Base(), currency),
		Currency: currency,
		Fallback: true,
	}
}

// combinedFallback is the combined-mode option emitted when no method is
// offered by every provider in the cart.
func (a *Aggregator) combinedFallback(groups []providerGroup, currency string) Option {
	perProvider := a.converter.Convert(a.config.FallbackCost, a.converter.Base(), currency)
	return Option{
		Method:   a.config.FallbackMethod,
		Cost:     perProvider.Mul(decimal.NewFromInt(int64(len(groups)))),
		Currency: currency,
		Fallback: true,
	}
}

// ---------------------------------------------------------------------------
// Combined mode
// ---------------------------------------------------------------------------

// combineOptions intersects method names across all provider groups and
// sums costs for methods present in every group. Methods missing from any
// group are dropped; the delivery-day range widens to the extremes across
// contributing providers.
func combineOptions(perProvider [][]Option, currency string) []Option {
	type combined struct {
		option Option
		count  int
	}

	merged := make(map[string]*combined)
	order := make([]string, 0)

	for _, options := range perProvider {
		seen := make(map[string]struct{})
		for _, option := range options {
			key := normalizeMethod(option.Method)
			// Count each method once per provider group.
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			entry, ok := merged[key]
			if !ok {
				merged[key] = &combined{
					option: Option{
						Method:          option.Method,
						Cost:            option.Cost,
						Currency:        currency,
						MinDeliveryDays: option.MinDeliveryDays,
						MaxDeliveryDays: option.MaxDeliveryDays,
						Fallback:        option.Fallback,
					},
					count: 1,
				}
				order = append(order, key)
				continue
			}

			entry.count++
			entry.option.Cost = entry.option.Cost.Add(option.Cost)
			entry.option.Fallback = entry.option.Fallback || option.Fallback
			if option.MinDeliveryDays > 0 &&
				(entry.option.MinDeliveryDays == 0 || option.MinDeliveryDays < entry.option.MinDeliveryDays) {
				entry.option.MinDeliveryDays = option.MinDeliveryDays
			}
			if option.MaxDeliveryDays > entry.option.MaxDeliveryDays {
				entry.option.MaxDeliveryDays = option.MaxDeliveryDays
			}
		}
	}

	result := make([]Option, 0, len(merged))
	for _, key := range order {
		entry := merged[key]
		if entry.count == len(perProvider) {
			result = append(result, entry.option)
		}
	}
	return result
}

// normalizeMethod folds case and whitespace so "Express " and "express"
// intersect.
func normalizeMethod(method string) string {
	return strings.Join(strings.Fields(strings.ToLower(method)), " ")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func groupByProvider(items []CartItem) []providerGroup {
	totals := make(map[int]int)
	for _, item := range items {
		if item.Quantity > 0 {
			totals[item.ProviderID] += item.Quantity
		}
	}

	groups := make([]providerGroup, 0, len(totals))
	for providerID, quantity := range totals {
		groups = append(groups, providerGroup{providerID: providerID, quantity: quantity})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].providerID < groups[j].providerID
	})
	return groups
}

// cacheKey derives the quote cache key from the destination and the cart's
// provider composition.
func (a *Aggregator) cacheKey(req Request, groups []providerGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rates:%s:%s:%s:%s",
		strings.ToUpper(req.Destination.Country),
		strings.ToUpper(req.Destination.Region),
		req.Destination.Postcode,
		strings.ToUpper(req.Currency),
	)
	for _, group := range groups {
		fmt.Fprintf(&b, ":%d=%d", group.providerID, group.quantity)
	}
	return b.String()
}
