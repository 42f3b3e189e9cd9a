package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/domain/order"
	"github.com/printsync/backend/internal/infrastructure/provider"
	"github.com/printsync/backend/internal/infrastructure/queue"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) GetOrder(ctx context.Context, orderID string) (*provider.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Order), args.Error(1)
}

func (m *mockGateway) ListOrders(ctx context.Context, page, limit int) (*provider.OrdersPage, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.OrdersPage), args.Error(1)
}

func (m *mockGateway) CreateOrder(ctx context.Context, submission *provider.OrderSubmission) (*provider.Order, error) {
	args := m.Called(ctx, submission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Order), args.Error(1)
}

func (m *mockGateway) SubmitOrderAction(ctx context.Context, orderID string, action provider.OrderAction) error {
	args := m.Called(ctx, orderID, action)
	return args.Error(0)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*order.LocalOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.LocalOrder), args.Error(1)
}

func (m *mockOrderRepo) Create(ctx context.Context, o *order.LocalOrder) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepo) CreateWithLink(ctx context.Context, o *order.LocalOrder, link *order.Link) error {
	args := m.Called(ctx, o, link)
	return args.Error(0)
}

func (m *mockOrderRepo) Update(ctx context.Context, o *order.LocalOrder) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

type mockLinkRepo struct {
	mock.Mock
}

func (m *mockLinkRepo) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*order.Link, error) {
	args := m.Called(ctx, providerOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Link), args.Error(1)
}

func (m *mockLinkRepo) FindByLocalOrderID(ctx context.Context, localOrderID uuid.UUID) (*order.Link, error) {
	args := m.Called(ctx, localOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Link), args.Error(1)
}

func (m *mockLinkRepo) Create(ctx context.Context, link *order.Link) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

type mockSyncLogRepo struct {
	mock.Mock
}

func (m *mockSyncLogRepo) Append(ctx context.Context, entry *order.SyncLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockSyncLogRepo) List(ctx context.Context, filter order.SyncLogFilter) ([]order.SyncLogEntry, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]order.SyncLogEntry), args.Get(1).(int64), args.Error(2)
}

func (m *mockSyncLogRepo) Prune(ctx context.Context, keep int) error {
	args := m.Called(ctx, keep)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type engineFixture struct {
	engine  *Engine
	gateway *mockGateway
	orders  *mockOrderRepo
	links   *mockLinkRepo
	logs    *mockSyncLogRepo
	tasks   *queue.MemoryQueue
}

func newEngineFixture(t *testing.T, config Config) *engineFixture {
	t.Helper()
	f := &engineFixture{
		gateway: new(mockGateway),
		orders:  new(mockOrderRepo),
		links:   new(mockLinkRepo),
		logs:    new(mockSyncLogRepo),
		tasks:   queue.NewMemoryQueue(),
	}
	f.logs.On("Append", mock.Anything, mock.Anything).Return(nil)
	f.engine = NewEngine(f.gateway, f.orders, f.links, f.logs, f.tasks, config, zap.NewNop())
	return f
}

func providerOrder(id, status string) *provider.Order {
	return &provider.Order{
		ID:         id,
		ExternalID: "store-" + id,
		Status:     status,
		Currency:   "USD",
		AddressTo:  provider.OrderAddress{Country: "US"},
		LineItems: []provider.OrderLineItem{
			{ProductID: "pp1", VariantID: "pv1", Quantity: 1,
				Metadata: provider.LineItemMetadata{ProductID: "local-p", VariantID: "local-v"}},
		},
	}
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

func TestImportOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("creates local order and link", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		f.links.On("FindByProviderOrderID", mock.Anything, "p1").
			Return(nil, order.ErrLinkNotFound)
		f.gateway.On("GetOrder", mock.Anything, "p1").
			Return(providerOrder("p1", "in_production"), nil)

		var created *order.LocalOrder
		var link *order.Link
		f.orders.On("CreateWithLink", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*order.LocalOrder)
				link = args.Get(2).(*order.Link)
			}).
			Return(nil)

		require.NoError(t, f.engine.ImportOrder(ctx, "p1"))
		require.NotNil(t, created)
		assert.Equal(t, order.StatusProcessing, created.Status)
		assert.Equal(t, "p1", created.ProviderOrderRef)
		assert.Equal(t, "store-p1", created.Number)
		require.NotNil(t, link)
		assert.Equal(t, created.ID, link.LocalOrderID)
		assert.Equal(t, "p1", link.ProviderOrderID)
	})

	t.Run("redirects to sync when already linked", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		localID := uuid.New()
		f.links.On("FindByProviderOrderID", mock.Anything, "p1").
			Return(&order.Link{LocalOrderID: localID, ProviderOrderID: "p1"}, nil)
		f.gateway.On("GetOrder", mock.Anything, "p1").
			Return(providerOrder("p1", "in_production"), nil)
		f.orders.On("FindByID", mock.Anything, localID).
			Return(&order.LocalOrder{ID: localID, Status: order.StatusProcessing}, nil)
		f.orders.On("Update", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, f.engine.ImportOrder(ctx, "p1"))
		// Duplicate import never creates a second local order.
		f.orders.AssertNotCalled(t, "CreateWithLink", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed fetch creates nothing", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		f.links.On("FindByProviderOrderID", mock.Anything, "p1").
			Return(nil, order.ErrLinkNotFound)
		f.gateway.On("GetOrder", mock.Anything, "p1").
			Return(nil, errors.New("provider down"))

		assert.Error(t, f.engine.ImportOrder(ctx, "p1"))
		f.orders.AssertNotCalled(t, "CreateWithLink", mock.Anything, mock.Anything, mock.Anything)
	})
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

func TestSyncExistingOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("advances status and merges shipments", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		localID := uuid.New()

		po := providerOrder("p1", "shipped")
		po.Shipments = []provider.OrderShipment{
			{Carrier: "usps", TrackingNumber: "TRACK1"},
		}
		f.gateway.On("GetOrder", mock.Anything, "p1").Return(po, nil)

		local := &order.LocalOrder{ID: localID, Status: order.StatusProcessing}
		f.orders.On("FindByID", mock.Anything, localID).Return(local, nil)

		var updated *order.LocalOrder
		f.orders.On("Update", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { updated = args.Get(1).(*order.LocalOrder) }).
			Return(nil)

		require.NoError(t, f.engine.SyncExistingOrder(ctx, "p1", localID))
		require.NotNil(t, updated)
		assert.Equal(t, order.StatusShipped, updated.Status)
		require.Len(t, updated.Shipments, 1)
		assert.Equal(t, "TRACK1", updated.Shipments[0].TrackingNumber)
		assert.NotNil(t, updated.LastSyncedAt)
	})

	t.Run("delivered maps to completed", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		localID := uuid.New()
		f.gateway.On("GetOrder", mock.Anything, "p1").
			Return(providerOrder("p1", "delivered"), nil)
		f.orders.On("FindByID", mock.Anything, localID).
			Return(&order.LocalOrder{ID: localID, Status: order.StatusShipped}, nil)

		var updated *order.LocalOrder
		f.orders.On("Update", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { updated = args.Get(1).(*order.LocalOrder) }).
			Return(nil)

		require.NoError(t, f.engine.SyncExistingOrder(ctx, "p1", localID))
		assert.Equal(t, order.StatusCompleted, updated.Status)
	})

	t.Run("status regression is skipped, rest of sync applies", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		localID := uuid.New()

		// Stale webhook: provider reports production while the order already
		// shipped.
		po := providerOrder("p1", "in_production")
		po.Shipments = []provider.OrderShipment{
			{Carrier: "usps", TrackingNumber: "TRACK9"},
		}
		f.gateway.On("GetOrder", mock.Anything, "p1").Return(po, nil)
		f.orders.On("FindByID", mock.Anything, localID).
			Return(&order.LocalOrder{ID: localID, Status: order.StatusShipped}, nil)

		var updated *order.LocalOrder
		f.orders.On("Update", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { updated = args.Get(1).(*order.LocalOrder) }).
			Return(nil)

		require.NoError(t, f.engine.SyncExistingOrder(ctx, "p1", localID))
		assert.Equal(t, order.StatusShipped, updated.Status)
		assert.Len(t, updated.Shipments, 1)
	})

	t.Run("failed fetch leaves local order untouched", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		localID := uuid.New()
		f.gateway.On("GetOrder", mock.Anything, "p1").
			Return(nil, errors.New("provider down"))

		assert.Error(t, f.engine.SyncExistingOrder(ctx, "p1", localID))
		f.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("repeated sync of unchanged order is idempotent", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		localID := uuid.New()

		po := providerOrder("p1", "shipped")
		po.Shipments = []provider.OrderShipment{
			{Carrier: "usps", TrackingNumber: "TRACK1"},
		}
		f.gateway.On("GetOrder", mock.Anything, "p1").Return(po, nil)

		local := &order.LocalOrder{
			ID:     localID,
			Status: order.StatusShipped,
			Shipments: []order.Shipment{
				{Carrier: "usps", TrackingNumber: "TRACK1", ShippedAt: time.Now()},
			},
		}
		f.orders.On("FindByID", mock.Anything, localID).Return(local, nil)
		f.orders.On("Update", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, f.engine.SyncExistingOrder(ctx, "p1", localID))
		assert.Len(t, local.Shipments, 1)
	})
}

// ---------------------------------------------------------------------------
// Sync-all
// ---------------------------------------------------------------------------

func TestSyncAll(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueues one task per order across pages", func(t *testing.T) {
		f := newEngineFixture(t, Config{PageSize: 2})
		f.links.On("FindByProviderOrderID", mock.Anything, mock.Anything).
			Return(nil, order.ErrLinkNotFound)
		f.gateway.On("ListOrders", mock.Anything, 1, 2).Return(&provider.OrdersPage{
			CurrentPage: 1, LastPage: 2,
			Data: []provider.Order{{ID: "p1"}, {ID: "p2"}},
		}, nil)
		f.gateway.On("ListOrders", mock.Anything, 2, 2).Return(&provider.OrdersPage{
			CurrentPage: 2, LastPage: 2,
			Data: []provider.Order{{ID: "p3"}},
		}, nil)

		enqueued, err := f.engine.SyncAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, enqueued)
		assert.Equal(t, 3, f.tasks.Len())
	})

	t.Run("duplicate orders collapse in the queue", func(t *testing.T) {
		f := newEngineFixture(t, Config{PageSize: 10})
		f.links.On("FindByProviderOrderID", mock.Anything, "p1").
			Return(nil, order.ErrLinkNotFound)
		f.gateway.On("ListOrders", mock.Anything, 1, 10).Return(&provider.OrdersPage{
			CurrentPage: 1, LastPage: 1,
			Data: []provider.Order{{ID: "p1"}},
		}, nil)

		// A webhook already scheduled work for p1.
		require.NoError(t, f.engine.EnqueueOrderEvent(ctx, "p1"))

		enqueued, err := f.engine.SyncAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, enqueued)
		assert.Equal(t, 1, f.tasks.Len())
	})

	t.Run("listing failure returns the error", func(t *testing.T) {
		f := newEngineFixture(t, Config{PageSize: 10})
		f.gateway.On("ListOrders", mock.Anything, 1, 10).
			Return(nil, errors.New("provider down"))

		_, err := f.engine.SyncAll(ctx)
		assert.Error(t, err)
	})

	t.Run("linked orders get sync tasks, unlinked get import tasks", func(t *testing.T) {
		f := newEngineFixture(t, Config{PageSize: 10})
		localID := uuid.New()
		f.links.On("FindByProviderOrderID", mock.Anything, "known").
			Return(&order.Link{LocalOrderID: localID, ProviderOrderID: "known"}, nil)
		f.links.On("FindByProviderOrderID", mock.Anything, "new").
			Return(nil, order.ErrLinkNotFound)
		f.gateway.On("ListOrders", mock.Anything, 1, 10).Return(&provider.OrdersPage{
			CurrentPage: 1, LastPage: 1,
			Data: []provider.Order{{ID: "known"}, {ID: "new"}},
		}, nil)

		_, err := f.engine.SyncAll(ctx)
		require.NoError(t, err)

		leased, err := f.tasks.Lease(ctx, 10)
		require.NoError(t, err)
		require.Len(t, leased, 2)

		byKey := map[string]queue.Task{}
		for _, task := range leased {
			byKey[task.UniqueKey] = task
		}
		assert.Equal(t, queue.TaskSyncOrder, byKey["known"].Name)
		assert.Equal(t, localID.String(), byKey["known"].Args["local_order_id"])
		assert.Equal(t, queue.TaskImportOrder, byKey["new"].Name)
	})
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

func TestPushLocalOrder(t *testing.T) {
	ctx := context.Background()

	mappedItem := order.LineItem{
		ProductID: "local-p", VariantID: "local-v", Quantity: 2,
		ProviderProductID: "pp1", ProviderVariantID: "pv1",
	}
	unmappedItem := order.LineItem{ProductID: "local-q", Quantity: 1}

	t.Run("rejected when push is disabled", func(t *testing.T) {
		f := newEngineFixture(t, Config{PushEnabled: false})
		err := f.engine.PushLocalOrder(ctx, &order.LocalOrder{ID: uuid.New()})
		assert.ErrorIs(t, err, ErrPushDisabled)
	})

	t.Run("skips an order that already has a provider reference", func(t *testing.T) {
		f := newEngineFixture(t, Config{PushEnabled: true})
		localOrder := &order.LocalOrder{ID: uuid.New(), ProviderOrderRef: "p1"}

		require.NoError(t, f.engine.PushLocalOrder(ctx, localOrder))
		f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("filters unmapped line items", func(t *testing.T) {
		f := newEngineFixture(t, Config{PushEnabled: true})
		localOrder := &order.LocalOrder{
			ID:        uuid.New(),
			LineItems: []order.LineItem{mappedItem, unmappedItem},
		}

		var submitted *provider.OrderSubmission
		f.gateway.On("CreateOrder", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { submitted = args.Get(1).(*provider.OrderSubmission) }).
			Return(providerOrder("p9", "pending"), nil)
		f.orders.On("Update", mock.Anything, mock.Anything).Return(nil)
		f.links.On("Create", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, f.engine.PushLocalOrder(ctx, localOrder))
		require.NotNil(t, submitted)
		require.Len(t, submitted.LineItems, 1)
		assert.Equal(t, "pp1", submitted.LineItems[0].ProductID)
		assert.Equal(t, "p9", localOrder.ProviderOrderRef)
	})

	t.Run("aborts when no line items are mapped", func(t *testing.T) {
		f := newEngineFixture(t, Config{PushEnabled: true})
		localOrder := &order.LocalOrder{
			ID:        uuid.New(),
			LineItems: []order.LineItem{unmappedItem},
		}

		err := f.engine.PushLocalOrder(ctx, localOrder)
		assert.ErrorIs(t, err, ErrNoMappedLineItems)
		f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("provider failure leaves the order unlinked", func(t *testing.T) {
		f := newEngineFixture(t, Config{PushEnabled: true})
		localOrder := &order.LocalOrder{
			ID:        uuid.New(),
			LineItems: []order.LineItem{mappedItem},
		}
		f.gateway.On("CreateOrder", mock.Anything, mock.Anything).
			Return(nil, errors.New("provider down"))

		assert.Error(t, f.engine.PushLocalOrder(ctx, localOrder))
		assert.Empty(t, localOrder.ProviderOrderRef)
		f.links.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

// ---------------------------------------------------------------------------
// Status-change actions
// ---------------------------------------------------------------------------

func TestHandleStatusChange(t *testing.T) {
	ctx := context.Background()

	t.Run("submits allow-listed actions", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		localID := uuid.New()
		f.links.On("FindByLocalOrderID", mock.Anything, localID).
			Return(&order.Link{LocalOrderID: localID, ProviderOrderID: "p1"}, nil)
		f.gateway.On("SubmitOrderAction", mock.Anything, "p1", provider.OrderActionCancel).
			Return(nil)

		require.NoError(t, f.engine.HandleStatusChange(ctx, localID, "cancel"))
		f.gateway.AssertExpectations(t)
	})

	t.Run("unknown action is a no-op", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		err := f.engine.HandleStatusChange(ctx, uuid.New(), "archive")
		assert.ErrorIs(t, err, ErrUnknownAction)
		f.gateway.AssertNotCalled(t, "SubmitOrderAction", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unlinked order fails", func(t *testing.T) {
		f := newEngineFixture(t, Config{})
		localID := uuid.New()
		f.links.On("FindByLocalOrderID", mock.Anything, localID).
			Return(nil, order.ErrLinkNotFound)

		err := f.engine.HandleStatusChange(ctx, localID, "refund")
		assert.ErrorIs(t, err, order.ErrLinkNotFound)
	})
}
