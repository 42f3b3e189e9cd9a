package rates

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/domain/shipping"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeProfileFinder serves fixed profiles per provider id.
type fakeProfileFinder struct {
	profiles map[int]*shipping.Profile
	calls    int
}

func (f *fakeProfileFinder) Find(_ context.Context, providerID int, dest shipping.Destination) (*shipping.Region, *shipping.Profile, error) {
	f.calls++
	profile, ok := f.profiles[providerID]
	if !ok {
		return nil, nil, shipping.ErrNoMatchingRegion
	}
	region, err := profile.FindRegion(dest)
	if err != nil {
		return nil, profile, err
	}
	return region, profile, nil
}

// fakeQuoteCache is an in-memory QuoteCache.
type fakeQuoteCache struct {
	entries map[string]*Quote
}

func newFakeQuoteCache() *fakeQuoteCache {
	return &fakeQuoteCache{entries: make(map[string]*Quote)}
}

func (f *fakeQuoteCache) Get(_ context.Context, key string) (*Quote, bool) {
	quote, ok := f.entries[key]
	return quote, ok
}

func (f *fakeQuoteCache) Set(_ context.Context, key string, quote *Quote, _ time.Duration) {
	f.entries[key] = quote
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func usProfile(providerID int, name string, rates ...shipping.Rate) *shipping.Profile {
	return &shipping.Profile{
		ProviderID:   providerID,
		ProviderName: name,
		Currency:     "USD",
		Regions:      []shipping.Region{{Country: "US", Rates: rates}},
		FetchedAt:    time.Now(),
	}
}

func standardRate(first, additional float64) shipping.Rate {
	return shipping.Rate{
		Method:          "Standard",
		FirstItem:       d(first),
		AdditionalItem:  d(additional),
		MinDeliveryDays: 3,
		MaxDeliveryDays: 7,
		Currency:        "USD",
	}
}

func newTestAggregator(finder ProfileFinder, config Config) *Aggregator {
	converter := NewConverter("USD", map[string]float64{"EUR": 0.9})
	return NewAggregator(finder, converter, nil, config, zap.NewNop())
}

func usRequest(items ...CartItem) Request {
	return Request{
		Items:       items,
		Destination: shipping.Destination{Country: "US"},
		Currency:    "USD",
	}
}

// ---------------------------------------------------------------------------
// Pricing
// ---------------------------------------------------------------------------

func TestQuoteTieredPricing(t *testing.T) {
	finder := &fakeProfileFinder{profiles: map[int]*shipping.Profile{
		1: usProfile(1, "Acme", standardRate(4, 2)),
	}}

	t.Run("tiered charges first plus additional per extra unit", func(t *testing.T) {
		agg := newTestAggregator(finder, Config{TieredPricing: true})
		quote, err := agg.Quote(context.Background(), usRequest(CartItem{ProviderID: 1, Quantity: 3}))
		require.NoError(t, err)
		require.Len(t, quote.Options, 1)
		// 4 + 2*2 = 8
		assert.True(t, quote.Options[0].Cost.Equal(d(8)), "got %s", quote.Options[0].Cost)
	})

	t.Run("flat charges the first-item rate once", func(t *testing.T) {
		agg := newTestAggregator(finder, Config{TieredPricing: false})
		quote, err := agg.Quote(context.Background(), usRequest(CartItem{ProviderID: 1, Quantity: 3}))
		require.NoError(t, err)
		require.Len(t, quote.Options, 1)
		assert.True(t, quote.Options[0].Cost.Equal(d(4)), "got %s", quote.Options[0].Cost)
	})

	t.Run("single unit costs the same either way", func(t *testing.T) {
		for _, tiered := range []bool{true, false} {
			agg := newTestAggregator(finder, Config{TieredPricing: tiered})
			quote, err := agg.Quote(context.Background(), usRequest(CartItem{ProviderID: 1, Quantity: 1}))
			require.NoError(t, err)
			assert.True(t, quote.Options[0].Cost.Equal(d(4)))
		}
	})

	t.Run("quantities for one provider accumulate across cart lines", func(t *testing.T) {
		agg := newTestAggregator(finder, Config{TieredPricing: true})
		quote, err := agg.Quote(context.Background(), usRequest(
			CartItem{ProviderID: 1, Quantity: 2},
			CartItem{ProviderID: 1, Quantity: 2},
		))
		require.NoError(t, err)
		require.Len(t, quote.Options, 1)
		// 4 + 2*3 = 10
		assert.True(t, quote.Options[0].Cost.Equal(d(10)))
	})
}

func TestQuoteCurrencyConversion(t *testing.T) {
	eurRate := shipping.Rate{
		Method:    "Standard",
		FirstItem: d(9),
		Currency:  "EUR",
	}
	finder := &fakeProfileFinder{profiles: map[int]*shipping.Profile{
		1: usProfile(1, "Euro Prints", eurRate),
	}}
	agg := newTestAggregator(finder, Config{})

	quote, err := agg.Quote(context.Background(), usRequest(CartItem{ProviderID: 1, Quantity: 1}))
	require.NoError(t, err)
	require.Len(t, quote.Options, 1)
	// 9 EUR at 0.9 EUR per USD is 10 USD.
	assert.True(t, quote.Options[0].Cost.Equal(d(10)), "got %s", quote.Options[0].Cost)
	assert.Equal(t, "USD", quote.Options[0].Currency)
}

// ---------------------------------------------------------------------------
// Modes
// ---------------------------------------------------------------------------

func TestQuotePerProviderMode(t *testing.T) {
	finder := &fakeProfileFinder{profiles: map[int]*shipping.Profile{
		1: usProfile(1, "Acme", standardRate(4, 2), shipping.Rate{
			Method: "Express", FirstItem: d(12), Currency: "USD",
			MinDeliveryDays: 1, MaxDeliveryDays: 2,
		}),
		2: usProfile(2, "Budget", standardRate(3, 1)),
	}}
	agg := newTestAggregator(finder, Config{})

	quote, err := agg.Quote(context.Background(), usRequest(
		CartItem{ProviderID: 1, Quantity: 1},
		CartItem{ProviderID: 2, Quantity: 1},
	))
	require.NoError(t, err)
	assert.False(t, quote.Combined)
	// One option per (provider, method) pair, each carrying its provider name.
	require.Len(t, quote.Options, 3)

	providers := map[string]int{}
	for _, option := range quote.Options {
		providers[option.Provider]++
	}
	assert.Equal(t, 2, providers["Acme"])
	assert.Equal(t, 1, providers["Budget"])
}

func TestQuoteCombinedMode(t *testing.T) {
	t.Run("intersects methods and sums costs", func(t *testing.T) {
		finder := &fakeProfileFinder{profiles: map[int]*shipping.Profile{
			1: usProfile(1, "Acme",
				standardRate(4, 2),
				shipping.Rate{Method: "Express", FirstItem: d(12), Currency: "USD", MinDeliveryDays: 1, MaxDeliveryDays: 2},
			),
			2: usProfile(2, "Budget", shipping.Rate{
				Method: "standard", FirstItem: d(3), Currency: "USD",
				MinDeliveryDays: 5, MaxDeliveryDays: 10,
			}),
		}}
		agg := newTestAggregator(finder, Config{CombinedMode: true})

		quote, err := agg.Quote(context.Background(), usRequest(
			CartItem{ProviderID: 1, Quantity: 1},
			CartItem{ProviderID: 2, Quantity: 1},
		))
		require.NoError(t, err)
		assert.True(t, quote.Combined)
		// Express exists only at Acme and drops out of the intersection.
		require.Len(t, quote.Options, 1)

		option := quote.Options[0]
		assert.True(t, option.Cost.Equal(d(7)), "got %s", option.Cost)
		// Day range widens to the extremes across providers.
		assert.Equal(t, 3, option.MinDeliveryDays)
		assert.Equal(t, 10, option.MaxDeliveryDays)
		assert.Empty(t, option.Provider)
	})

	t.Run("empty intersection falls back to a flat combined option", func(t *testing.T) {
		finder := &fakeProfileFinder{profiles: map[int]*shipping.Profile{
			1: usProfile(1, "Acme", shipping.Rate{
				Method: "Express", FirstItem: d(12), Currency: "USD",
			}),
			2: usProfile(2, "Budget", shipping.Rate{
				Method: "Ground", FirstItem: d(3), Currency: "USD",
			}),
		}}
		agg := newTestAggregator(finder, Config{CombinedMode: true, FallbackCost: d(10)})

		quote, err := agg.Quote(context.Background(), usRequest(
			CartItem{ProviderID: 1, Quantity: 1},
			CartItem{ProviderID: 2, Quantity: 1},
		))
		require.NoError(t, err)
		assert.True(t, quote.Combined)
		// No shared method, yet checkout still gets an option: the flat
		// fallback, contributed once per provider.
		require.Len(t, quote.Options, 1)
		assert.True(t, quote.Options[0].Fallback)
		assert.Equal(t, "Standard", quote.Options[0].Method)
		assert.True(t, quote.Options[0].Cost.Equal(d(20)), "got %s", quote.Options[0].Cost)
	})

	t.Run("single provider carts keep per-provider options", func(t *testing.T) {
		finder := &fakeProfileFinder{profiles: map[int]*shipping.Profile{
			1: usProfile(1, "Acme", standardRate(4, 2)),
		}}
		agg := newTestAggregator(finder, Config{CombinedMode: true})

		quote, err := agg.Quote(context.Background(), usRequest(CartItem{ProviderID: 1, Quantity: 1}))
		require.NoError(t, err)
		require.Len(t, quote.Options, 1)
		assert.Equal(t, "Acme", quote.Options[0].Provider)
	})
}

// ---------------------------------------------------------------------------
// Fallback
// ---------------------------------------------------------------------------

func TestQuoteFallback(t *testing.T) {
	t.Run("provider without a matching region contributes the flat fallback", func(t *testing.T) {
		finder := &fakeProfileFinder{profiles: map[int]*shipping.Profile{
			1: usProfile(1, "Acme", standardRate(4, 2)),
		}}
		agg := newTestAggregator(finder, Config{FallbackCost: d(10)})

		quote, err := agg.Quote(context.Background(), usRequest(
			CartItem{ProviderID: 1, Quantity: 1},
			CartItem{ProviderID: 99, Quantity: 1},
		))
		require.NoError(t, err)
		require.Len(t, quote.Options, 2)

		var fallback *Option
		for i := range quote.Options {
			if quote.Options[i].Fallback {
				fallback = &quote.Options[i]
			}
		}
		require.NotNil(t, fallback)
		assert.True(t, fallback.Cost.Equal(d(10)))
		assert.Equal(t, "Standard", fallback.Method)
	})

	t.Run("checkout always gets an option", func(t *testing.T) {
		finder := &fakeProfileFinder{profiles: map[int]*shipping.Profile{}}
		agg := newTestAggregator(finder, Config{FallbackCost: d(10)})

		quote, err := agg.Quote(context.Background(), usRequest(CartItem{ProviderID: 1, Quantity: 1}))
		require.NoError(t, err)
		require.Len(t, quote.Options, 1)
		assert.True(t, quote.Options[0].Fallback)
	})
}

// ---------------------------------------------------------------------------
// Caching and edge cases
// ---------------------------------------------------------------------------

func TestQuoteResultCache(t *testing.T) {
	finder := &fakeProfileFinder{profiles: map[int]*shipping.Profile{
		1: usProfile(1, "Acme", standardRate(4, 2)),
	}}
	converter := NewConverter("USD", nil)
	cache := newFakeQuoteCache()
	agg := NewAggregator(finder, converter, cache, Config{}, zap.NewNop())

	req := usRequest(CartItem{ProviderID: 1, Quantity: 2})
	_, err := agg.Quote(context.Background(), req)
	require.NoError(t, err)
	first := finder.calls

	// Same cart and destination hits the cache.
	_, err = agg.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, finder.calls)

	// A different quantity is a different cache key.
	_, err = agg.Quote(context.Background(), usRequest(CartItem{ProviderID: 1, Quantity: 3}))
	require.NoError(t, err)
	assert.Greater(t, finder.calls, first)
}

func TestQuoteEmptyCart(t *testing.T) {
	agg := newTestAggregator(&fakeProfileFinder{}, Config{})
	quote, err := agg.Quote(context.Background(), usRequest())
	require.NoError(t, err)
	assert.Empty(t, quote.Options)
}
