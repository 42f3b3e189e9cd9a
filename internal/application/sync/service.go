package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/domain/order"
	"github.com/printsync/backend/internal/infrastructure/provider"
	"github.com/printsync/backend/internal/infrastructure/queue"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrNoMappedLineItems indicates a push found no line items with
	// resolved provider product/variant ids. Submitting an empty order is
	// never attempted.
	ErrNoMappedLineItems = errors.New("sync: no line items with provider mapping")
	// ErrPushDisabled indicates the outbound push direction is not enabled.
	ErrPushDisabled = errors.New("sync: outbound push disabled")
	// ErrUnknownAction indicates a local status-change action outside the
	// allow-list. Callers treat this as a no-op.
	ErrUnknownAction = errors.New("sync: action not in allow-list")
)

const entityTypeOrder = "order"

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// ProviderGateway is the slice of the provider API the sync engine consumes.
type ProviderGateway interface {
	GetOrder(ctx context.Context, orderID string) (*provider.Order, error)
	ListOrders(ctx context.Context, page, limit int) (*provider.OrdersPage, error)
	CreateOrder(ctx context.Context, submission *provider.OrderSubmission) (*provider.Order, error)
	SubmitOrderAction(ctx context.Context, orderID string, action provider.OrderAction) error
}

// Config holds sync engine settings.
type Config struct {
	// PushEnabled opts in to the local->provider order push direction.
	PushEnabled bool
	// PageSize is the provider order listing page size for sync-all.
	PageSize int
}

func (c *Config) applyDefaults() {
	if c.PageSize == 0 {
		c.PageSize = 50
	}
}

// Engine reconciles order state between the storefront and the fulfillment
// provider. Every operation is idempotent and safe to repeat; retry
// scheduling belongs to the task queue, not the engine.
type Engine struct {
	gateway ProviderGateway
	orders  order.Repository
	links   order.LinkRepository
	logs    order.SyncLogRepository
	tasks   queue.TaskQueue
	config  Config
	logger  *zap.Logger
}

// NewEngine creates an order sync engine.
func NewEngine(
	gateway ProviderGateway,
	orders order.Repository,
	links order.LinkRepository,
	logs order.SyncLogRepository,
	tasks queue.TaskQueue,
	config Config,
	logger *zap.Logger,
) *Engine {
	config.applyDefaults()
	return &Engine{
		gateway: gateway,
		orders:  orders,
		links:   links,
		logs:    logs,
		tasks:   tasks,
		config:  config,
		logger:  logger,
	}
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// ImportOrder imports a provider order that has no local counterpart. When a
// mapping already exists the call redirects to SyncExistingOrder, so a
// duplicate import can never create a second local order.
func (e *Engine) ImportOrder(ctx context.Context, providerOrderID string) error {
	link, err := e.links.FindByProviderOrderID(ctx, providerOrderID)
	if err == nil {
		e.appendLog(ctx, providerOrderID, order.SyncActionImport, order.SyncOutcomeSkipped,
			"already linked, redirected to sync")
		return e.SyncExistingOrder(ctx, providerOrderID, link.LocalOrderID)
	}
	if !errors.Is(err, order.ErrLinkNotFound) {
		return e.failLog(ctx, providerOrderID, order.SyncActionImport, err)
	}

	providerOrder, err := e.gateway.GetOrder(ctx, providerOrderID)
	if err != nil {
		return e.failLog(ctx, providerOrderID, order.SyncActionImport, err)
	}

	localOrder := buildLocalOrder(providerOrder)
	if err := e.orders.CreateWithLink(ctx, localOrder, order.NewLink(localOrder.ID, providerOrderID)); err != nil {
		return e.failLog(ctx, providerOrderID, order.SyncActionImport, err)
	}

	e.appendLog(ctx, providerOrderID, order.SyncActionImport, order.SyncOutcomeSuccess,
		fmt.Sprintf("imported as local order %s with status %s", localOrder.ID, localOrder.Status))
	return nil
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// SyncExistingOrder refreshes a linked local order from its provider
// snapshot: status (forward-only), shipments (append, de-duplicated by
// tracking number), delivery estimate and last-synced timestamp. A failed
// fetch leaves the local order untouched.
func (e *Engine) SyncExistingOrder(ctx context.Context, providerOrderID string, localOrderID uuid.UUID) error {
	providerOrder, err := e.gateway.GetOrder(ctx, providerOrderID)
	if err != nil {
		return e.failLog(ctx, providerOrderID, order.SyncActionSync, err)
	}

	localOrder, err := e.orders.FindByID(ctx, localOrderID)
	if err != nil {
		return e.failLog(ctx, providerOrderID, order.SyncActionSync, err)
	}

	mapped := order.MapProviderStatus(providerOrder.Status)
	if mapped != localOrder.Status {
		if err := localOrder.ApplyStatus(mapped); err != nil {
			// A regression to an earlier stage is skipped, not failed;
			// the rest of the sync still applies.
			e.logger.Debug("skipping status regression",
				zap.String("provider_order_id", providerOrderID),
				zap.String("current", localOrder.Status.String()),
				zap.String("reported", mapped.String()),
			)
		}
	}

	added := localOrder.MergeShipments(toDomainShipments(providerOrder.Shipments))
	if estimate := parseProviderTime(providerOrder.DeliveryEstimate); estimate != nil {
		localOrder.DeliveryEstimate = estimate
	}
	localOrder.MarkSynced(time.Now())

	if err := e.orders.Update(ctx, localOrder); err != nil {
		return e.failLog(ctx, providerOrderID, order.SyncActionSync, err)
	}

	e.appendLog(ctx, providerOrderID, order.SyncActionSync, order.SyncOutcomeSuccess,
		fmt.Sprintf("status=%s new_shipments=%d", localOrder.Status, added))
	return nil
}

// SyncAll pages through the provider's order listing and enqueues one
// background task per order, keyed by provider order id. No provider fetch
// or mutation happens inline, so the caller returns quickly and each order's
// failure stays isolated. Returns the number of tasks enqueued.
func (e *Engine) SyncAll(ctx context.Context) (int, error) {
	enqueued := 0
	for page := 1; ; page++ {
		listing, err := e.gateway.ListOrders(ctx, page, e.config.PageSize)
		if err != nil {
			e.appendLog(ctx, "", order.SyncActionSync, order.SyncOutcomeFailure,
				fmt.Sprintf("listing page %d: %v", page, err))
			return enqueued, err
		}

		for _, providerOrder := range listing.Data {
			if err := e.enqueueOrderTask(ctx, providerOrder.ID); err != nil {
				// One order's enqueue failure never aborts the batch.
				e.logger.Warn("failed to enqueue order task",
					zap.String("provider_order_id", providerOrder.ID),
					zap.Error(err),
				)
				continue
			}
			enqueued++
		}

		if !listing.HasMore() {
			break
		}
	}
	return enqueued, nil
}

// EnqueueOrderEvent schedules processing for a single provider order, used
// by the webhook ingress. The unique key collapses duplicate deliveries.
func (e *Engine) EnqueueOrderEvent(ctx context.Context, providerOrderID string) error {
	return e.enqueueOrderTask(ctx, providerOrderID)
}

func (e *Engine) enqueueOrderTask(ctx context.Context, providerOrderID string) error {
	args := map[string]string{"provider_order_id": providerOrderID}

	link, err := e.links.FindByProviderOrderID(ctx, providerOrderID)
	switch {
	case err == nil:
		args["local_order_id"] = link.LocalOrderID.String()
		_, err = e.tasks.Enqueue(ctx, queue.TaskSyncOrder, args, 0, providerOrderID)
		return err
	case errors.Is(err, order.ErrLinkNotFound):
		_, err = e.tasks.Enqueue(ctx, queue.TaskImportOrder, args, 0, providerOrderID)
		return err
	default:
		return err
	}
}

// ---------------------------------------------------------------------------
// Push (local -> provider)
// ---------------------------------------------------------------------------

// PushLocalOrder submits a local order to the provider. Line items without a
// resolved provider product/variant id are filtered out; when none remain
// the push aborts rather than submitting an empty order. On success the
// returned provider id becomes the order's one-time provider reference.
func (e *Engine) PushLocalOrder(ctx context.Context, localOrder *order.LocalOrder) error {
	if !e.config.PushEnabled {
		return ErrPushDisabled
	}
	entityID := localOrder.ID.String()

	if localOrder.ProviderOrderRef != "" {
		e.appendLog(ctx, entityID, order.SyncActionPush, order.SyncOutcomeSkipped,
			"already pushed: provider reference "+localOrder.ProviderOrderRef)
		return nil
	}

	submission := &provider.OrderSubmission{
		ExternalID: entityID,
		AddressTo:  toProviderAddress(localOrder.ShippingAddress),
	}
	for _, item := range localOrder.LineItems {
		if !item.IsMapped() {
			continue
		}
		submission.LineItems = append(submission.LineItems, provider.SubmissionLineItem{
			ProductID: item.ProviderProductID,
			VariantID: item.ProviderVariantID,
			Quantity:  item.Quantity,
		})
	}
	if len(submission.LineItems) == 0 {
		e.appendLog(ctx, entityID, order.SyncActionPush, order.SyncOutcomeFailure,
			"no line items with provider mapping")
		return ErrNoMappedLineItems
	}

	created, err := e.gateway.CreateOrder(ctx, submission)
	if err != nil {
		return e.failLog(ctx, entityID, order.SyncActionPush, err)
	}

	if err := localOrder.AssignProviderRef(created.ID); err != nil {
		return e.failLog(ctx, entityID, order.SyncActionPush, err)
	}
	if err := e.orders.Update(ctx, localOrder); err != nil {
		return e.failLog(ctx, entityID, order.SyncActionPush, err)
	}
	if err := e.links.Create(ctx, order.NewLink(localOrder.ID, created.ID)); err != nil {
		return e.failLog(ctx, entityID, order.SyncActionPush, err)
	}

	e.appendLog(ctx, entityID, order.SyncActionPush, order.SyncOutcomeSuccess,
		"pushed as provider order "+created.ID)
	return nil
}

// ---------------------------------------------------------------------------
// Local status-change actions
// ---------------------------------------------------------------------------

// statusActionAllowList maps local transition requests to provider actions.
// Anything outside this table is a no-op; local actions only request a
// transition, the provider status remains the source of truth.
var statusActionAllowList = map[string]provider.OrderAction{
	"cancel": provider.OrderActionCancel,
	"refund": provider.OrderActionRefund,
	"submit": provider.OrderActionSubmit,
}

// HandleStatusChange reacts to an explicit local transition request by
// submitting the corresponding provider action.
func (e *Engine) HandleStatusChange(ctx context.Context, localOrderID uuid.UUID, action string) error {
	providerAction, ok := statusActionAllowList[action]
	if !ok {
		return ErrUnknownAction
	}

	entityID := localOrderID.String()
	link, err := e.links.FindByLocalOrderID(ctx, localOrderID)
	if err != nil {
		return e.failLog(ctx, entityID, order.SyncActionStatus, err)
	}

	if err := e.gateway.SubmitOrderAction(ctx, link.ProviderOrderID, providerAction); err != nil {
		return e.failLog(ctx, entityID, order.SyncActionStatus, err)
	}

	e.appendLog(ctx, entityID, order.SyncActionStatus, order.SyncOutcomeSuccess,
		fmt.Sprintf("submitted %s for provider order %s", providerAction, link.ProviderOrderID))
	return nil
}

// ---------------------------------------------------------------------------
// Logging helpers
// ---------------------------------------------------------------------------

func (e *Engine) appendLog(ctx context.Context, entityID string, action order.SyncAction, outcome order.SyncOutcome, message string) {
	entry := order.NewSyncLogEntry(entityTypeOrder, entityID, action, outcome, message)
	if err := e.logs.Append(ctx, entry); err != nil {
		e.logger.Error("failed to append sync log",
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func (e *Engine) failLog(ctx context.Context, entityID string, action order.SyncAction, cause error) error {
	e.appendLog(ctx, entityID, action, order.SyncOutcomeFailure, cause.Error())
	return cause
}
