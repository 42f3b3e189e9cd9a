package models

import (
	"encoding/json"
	"time"

	"github.com/printsync/backend/internal/domain/shipping"
)

// ShippingProfileSnapshotModel is the durable fallback copy of a provider's
// shipping profile. One row per print provider, replaced on every refresh.
type ShippingProfileSnapshotModel struct {
	ProviderID   int       `gorm:"primary_key;autoIncrement:false"`
	ProviderName string    `gorm:"type:varchar(255)"`
	Currency     string    `gorm:"type:varchar(3);not null"`
	RegionsJSON  string    `gorm:"type:jsonb;column:regions"`
	FetchedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShippingProfileSnapshotModel) TableName() string {
	return "shipping_profile_snapshots"
}

// ToDomain converts the persistence model to a domain Profile.
func (m *ShippingProfileSnapshotModel) ToDomain() *shipping.Profile {
	p := &shipping.Profile{
		ProviderID:   m.ProviderID,
		ProviderName: m.ProviderName,
		Currency:     m.Currency,
		FetchedAt:    m.FetchedAt,
	}
	if m.RegionsJSON != "" {
		var regions []shipping.Region
		if err := json.Unmarshal([]byte(m.RegionsJSON), &regions); err == nil {
			p.Regions = regions
		}
	}
	return p
}

// FromDomain populates the persistence model from a domain Profile.
func (m *ShippingProfileSnapshotModel) FromDomain(p *shipping.Profile) {
	m.ProviderID = p.ProviderID
	m.ProviderName = p.ProviderName
	m.Currency = p.Currency
	m.FetchedAt = p.FetchedAt
	m.RegionsJSON = marshalOrEmptyArray(p.Regions)
}

// ShippingProfileSnapshotModelFromDomain creates a persistence model from a
// domain Profile.
func ShippingProfileSnapshotModelFromDomain(p *shipping.Profile) *ShippingProfileSnapshotModel {
	m := &ShippingProfileSnapshotModel{}
	m.FromDomain(p)
	return m
}
