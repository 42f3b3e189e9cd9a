package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/domain/shipping"
	"github.com/printsync/backend/internal/infrastructure/provider"
)

var (
	// ErrProfileNotFound indicates no profile exists for the provider and
	// none could be fetched.
	ErrProfileNotFound = errors.New("cache: shipping profile not found")
	// ErrProfileStale indicates the cached profile is beyond the grace
	// window and a fresh fetch failed. Stale data is never served silently
	// past the hard ceiling.
	ErrProfileStale = errors.New("cache: shipping profile stale beyond grace window")
)

// ProfileGateway is the slice of the provider API the cache consumes.
type ProfileGateway interface {
	ListPrintProviders(ctx context.Context) ([]provider.PrintProvider, error)
	GetShippingInfo(ctx context.Context, providerID int) (*provider.ShippingInfo, error)
}

// SnapshotStore persists durable fallback copies of profiles.
type SnapshotStore interface {
	Save(ctx context.Context, profile *shipping.Profile) error
	Find(ctx context.Context, providerID int) (*shipping.Profile, error)
	FindAll(ctx context.Context) ([]shipping.Profile, error)
}

// Config holds profile cache settings.
type Config struct {
	TTL         time.Duration // snapshot lifetime, default 24h
	GraceWindow time.Duration // how long past TTL last-known-good may serve
}

func (c *Config) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.GraceWindow == 0 {
		c.GraceWindow = 6 * time.Hour
	}
}

// ProfileCache maintains per-provider shipping profile snapshots. Profiles
// are immutable once stored; a refresh swaps the map entry wholesale, so
// concurrent readers never observe a half-updated profile.
type ProfileCache struct {
	gateway   ProfileGateway
	snapshots SnapshotStore
	config    Config
	logger    *zap.Logger

	mu       sync.RWMutex
	profiles map[int]*shipping.Profile

	// now is swapped out in tests.
	now func() time.Time
}

// NewProfileCache creates a shipping profile cache.
func NewProfileCache(gateway ProfileGateway, snapshots SnapshotStore, config Config, logger *zap.Logger) *ProfileCache {
	config.applyDefaults()
	return &ProfileCache{
		gateway:   gateway,
		snapshots: snapshots,
		config:    config,
		logger:    logger,
		profiles:  make(map[int]*shipping.Profile),
		now:       time.Now,
	}
}

// WarmFromSnapshots preloads the in-memory cache from durable snapshots.
// Called at startup so the first checkout does not depend on the provider API.
func (c *ProfileCache) WarmFromSnapshots(ctx context.Context) error {
	stored, err := c.snapshots.FindAll(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range stored {
		p := stored[i]
		c.profiles[p.ProviderID] = &p
	}
	return nil
}

// Refresh fetches the print provider list and each provider's shipping info,
// replacing cached entries. When force is false, providers whose snapshot is
// still fresh are skipped. A failure fetching one provider never aborts the
// others; the failed provider keeps its previous snapshot.
func (c *ProfileCache) Refresh(ctx context.Context, force bool) error {
	providers, err := c.gateway.ListPrintProviders(ctx)
	if err != nil {
		return err
	}

	for _, pp := range providers {
		if !force {
			if cached := c.get(pp.ID); cached != nil && !c.expired(cached) {
				continue
			}
		}
		if err := c.refreshProvider(ctx, pp); err != nil {
			c.logger.Warn("failed to refresh shipping profile",
				zap.Int("provider_id", pp.ID),
				zap.String("provider", pp.Name),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Find resolves the most specific rate region for a destination. An expired
// entry triggers a refetch; when the refetch fails, last-known-good serves
// only within the grace window.
func (c *ProfileCache) Find(ctx context.Context, providerID int, dest shipping.Destination) (*shipping.Region, *shipping.Profile, error) {
	profile, err := c.Profile(ctx, providerID)
	if err != nil {
		return nil, nil, err
	}
	region, err := profile.FindRegion(dest)
	if err != nil {
		return nil, profile, err
	}
	return region, profile, nil
}

// Profile returns the current snapshot for a provider, refetching when
// expired and falling back to last-known-good within the grace window.
func (c *ProfileCache) Profile(ctx context.Context, providerID int) (*shipping.Profile, error) {
	cached := c.get(providerID)
	if cached != nil && !c.expired(cached) {
		return cached, nil
	}

	fetched, err := c.fetchProfile(ctx, providerID, "")
	if err == nil {
		c.store(fetched)
		return fetched, nil
	}
	c.logger.Warn("shipping profile refetch failed",
		zap.Int("provider_id", providerID),
		zap.Error(err),
	)

	// Fall back to last-known-good, memory first, then durable snapshot.
	if cached == nil {
		if stored, snapErr := c.snapshots.Find(ctx, providerID); snapErr == nil {
			cached = stored
			c.store(stored)
		}
	}
	if cached == nil {
		return nil, ErrProfileNotFound
	}
	if c.withinGrace(cached) {
		return cached, nil
	}
	return nil, ErrProfileStale
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (c *ProfileCache) refreshProvider(ctx context.Context, pp provider.PrintProvider) error {
	profile, err := c.fetchProfile(ctx, pp.ID, pp.Name)
	if err != nil {
		return err
	}
	c.store(profile)
	if err := c.snapshots.Save(ctx, profile); err != nil {
		// Snapshot persistence failure degrades the fallback path only.
		c.logger.Warn("failed to persist shipping profile snapshot",
			zap.Int("provider_id", pp.ID),
			zap.Error(err),
		)
	}
	return nil
}

func (c *ProfileCache) fetchProfile(ctx context.Context, providerID int, providerName string) (*shipping.Profile, error) {
	info, err := c.gateway.GetShippingInfo(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return normalizeShippingInfo(providerID, providerName, info, c.now()), nil
}

func (c *ProfileCache) get(providerID int) *shipping.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profiles[providerID]
}

// store replaces the cache entry atomically. The profile itself is never
// mutated after this point.
func (c *ProfileCache) store(profile *shipping.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[profile.ProviderID] = profile
}

func (c *ProfileCache) expired(p *shipping.Profile) bool {
	return c.now().After(p.FetchedAt.Add(c.config.TTL))
}

func (c *ProfileCache) withinGrace(p *shipping.Profile) bool {
	return c.now().Before(p.FetchedAt.Add(c.config.TTL + c.config.GraceWindow))
}

// normalizeShippingInfo converts the provider's raw shipping info into a
// region-keyed profile. Raw entries list one method across many countries;
// the normalized form groups rates under (country, subregion, postcode)
// regions. Missing first_item/additional_item default to cost/0.
func normalizeShippingInfo(providerID int, providerName string, info *provider.ShippingInfo, fetchedAt time.Time) *shipping.Profile {
	type regionKey struct {
		country, subregion, postcode string
	}

	regionIndex := make(map[regionKey]int)
	profile := &shipping.Profile{
		ProviderID:   providerID,
		ProviderName: providerName,
		Currency:     info.Currency,
		FetchedAt:    fetchedAt,
	}

	for _, raw := range info.Profiles {
		first, additional := normalizeRateCosts(raw)
		rate := shipping.Rate{
			Method:          raw.Method,
			Carrier:         raw.Carrier,
			FirstItem:       first,
			AdditionalItem:  additional,
			MinDeliveryDays: raw.MinDeliveryDays,
			MaxDeliveryDays: raw.MaxDeliveryDays,
			Currency:        info.Currency,
		}

		for _, country := range raw.Countries {
			key := regionKey{country: country, subregion: raw.Subregion, postcode: raw.PostcodePattern}
			idx, ok := regionIndex[key]
			if !ok {
				profile.Regions = append(profile.Regions, shipping.Region{
					Country:         country,
					Subregion:       raw.Subregion,
					PostcodePattern: raw.PostcodePattern,
				})
				idx = len(profile.Regions) - 1
				regionIndex[key] = idx
			}
			profile.Regions[idx].Rates = append(profile.Regions[idx].Rates, rate)
		}
	}

	return profile
}

func normalizeRateCosts(raw provider.ShippingProfile) (first, additional decimal.Decimal) {
	switch {
	case raw.FirstItem != nil:
		first = *raw.FirstItem
	case raw.Cost != nil:
		first = *raw.Cost
	}
	if raw.AdditionalItem != nil {
		additional = *raw.AdditionalItem
	}
	return first, additional
}
