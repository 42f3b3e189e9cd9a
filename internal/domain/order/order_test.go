package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignProviderRef(t *testing.T) {
	t.Run("assigns once", func(t *testing.T) {
		o := &LocalOrder{ID: uuid.New()}
		require.NoError(t, o.AssignProviderRef("prov-123"))
		assert.Equal(t, "prov-123", o.ProviderOrderRef)
	})

	t.Run("rejects reassignment", func(t *testing.T) {
		o := &LocalOrder{ID: uuid.New()}
		require.NoError(t, o.AssignProviderRef("prov-123"))

		err := o.AssignProviderRef("prov-456")
		assert.ErrorIs(t, err, ErrProviderRefAssigned)
		assert.Equal(t, "prov-123", o.ProviderOrderRef)
	})

	t.Run("rejects reassignment even with the same value", func(t *testing.T) {
		o := &LocalOrder{ID: uuid.New()}
		require.NoError(t, o.AssignProviderRef("prov-123"))
		assert.ErrorIs(t, o.AssignProviderRef("prov-123"), ErrProviderRefAssigned)
	})
}

func TestApplyStatus(t *testing.T) {
	t.Run("moves forward", func(t *testing.T) {
		o := &LocalOrder{Status: StatusProcessing}
		require.NoError(t, o.ApplyStatus(StatusShipped))
		assert.Equal(t, StatusShipped, o.Status)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		o := &LocalOrder{Status: StatusShipped}
		require.NoError(t, o.ApplyStatus(StatusShipped))
		assert.Equal(t, StatusShipped, o.Status)
	})

	t.Run("rejects regression and keeps current status", func(t *testing.T) {
		o := &LocalOrder{Status: StatusShipped}
		err := o.ApplyStatus(StatusProcessing)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusShipped, o.Status)
	})

	t.Run("allows branch entry", func(t *testing.T) {
		o := &LocalOrder{Status: StatusProcessing}
		require.NoError(t, o.ApplyStatus(StatusRefundRequested))
		assert.Equal(t, StatusRefundRequested, o.Status)
	})
}

func TestMergeShipments(t *testing.T) {
	shipment := func(tracking string) Shipment {
		return Shipment{
			Carrier:        "usps",
			TrackingNumber: tracking,
			ShippedAt:      time.Now(),
		}
	}

	t.Run("appends new shipments", func(t *testing.T) {
		o := &LocalOrder{}
		added := o.MergeShipments([]Shipment{shipment("TRACK1"), shipment("TRACK2")})
		assert.Equal(t, 2, added)
		assert.Len(t, o.Shipments, 2)
	})

	t.Run("skips duplicates by tracking number", func(t *testing.T) {
		o := &LocalOrder{}
		o.MergeShipments([]Shipment{shipment("TRACK1")})

		added := o.MergeShipments([]Shipment{shipment("TRACK1"), shipment("TRACK2")})
		assert.Equal(t, 1, added)
		assert.Len(t, o.Shipments, 2)
	})

	t.Run("tracking comparison ignores case and whitespace", func(t *testing.T) {
		o := &LocalOrder{}
		o.MergeShipments([]Shipment{shipment("track1")})

		added := o.MergeShipments([]Shipment{shipment("  TRACK1 ")})
		assert.Equal(t, 0, added)
		assert.Len(t, o.Shipments, 1)
	})

	t.Run("skips shipments without a tracking number", func(t *testing.T) {
		o := &LocalOrder{}
		added := o.MergeShipments([]Shipment{shipment("")})
		assert.Equal(t, 0, added)
		assert.Empty(t, o.Shipments)
	})

	t.Run("deduplicates within one batch", func(t *testing.T) {
		o := &LocalOrder{}
		added := o.MergeShipments([]Shipment{shipment("TRACK1"), shipment("TRACK1")})
		assert.Equal(t, 1, added)
		assert.Len(t, o.Shipments, 1)
	})
}

func TestMarkSynced(t *testing.T) {
	o := &LocalOrder{}
	require.Nil(t, o.LastSyncedAt)

	at := time.Now()
	o.MarkSynced(at)
	require.NotNil(t, o.LastSyncedAt)
	assert.Equal(t, at, *o.LastSyncedAt)
}

func TestLineItemIsMapped(t *testing.T) {
	assert.True(t, LineItem{ProviderProductID: "p", ProviderVariantID: "v"}.IsMapped())
	assert.False(t, LineItem{ProviderProductID: "p"}.IsMapped())
	assert.False(t, LineItem{ProviderVariantID: "v"}.IsMapped())
	assert.False(t, LineItem{}.IsMapped())
}

func TestNewLink(t *testing.T) {
	localID := uuid.New()
	link := NewLink(localID, "prov-9")

	assert.NotEqual(t, uuid.Nil, link.ID)
	assert.Equal(t, localID, link.LocalOrderID)
	assert.Equal(t, "prov-9", link.ProviderOrderID)
	assert.False(t, link.CreatedAt.IsZero())
}
