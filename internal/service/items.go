package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesaqr/api/internal/apperr"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/events"
	"github.com/mesaqr/api/internal/permission"
	"go.uber.org/zap"
)

// itemTransitions lists the allowed targets per item status. READY→IN_PROGRESS
// is the one backwards move, for items sent back to the pass.
var itemTransitions = map[enum.ItemStatus][]enum.ItemStatus{
	enum.ItemStatusPending:    {enum.ItemStatusInProgress, enum.ItemStatusCancelled},
	enum.ItemStatusInProgress: {enum.ItemStatusReady, enum.ItemStatusCancelled},
	enum.ItemStatusReady:      {enum.ItemStatusServed, enum.ItemStatusInProgress, enum.ItemStatusCancelled},
	enum.ItemStatusServed:     {enum.ItemStatusCancelled},
	enum.ItemStatusCancelled:  {},
}

// bulkPredecessor maps each bulk target to the single status every item of
// the batch must currently be in.
var bulkPredecessor = map[enum.ItemStatus]enum.ItemStatus{
	enum.ItemStatusInProgress: enum.ItemStatusPending,
	enum.ItemStatusReady:      enum.ItemStatusInProgress,
	enum.ItemStatusServed:     enum.ItemStatusReady,
}

func CanTransitionItem(from, to enum.ItemStatus) bool {
	for _, s := range itemTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ItemStore defines the DB methods needed for item transitions.
// Satisfied by *database.Scoped.
type ItemStore interface {
	aggregationStore
	GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItemRef, error)
	ListOrderItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.OrderItemRef, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	LockOrders(ctx context.Context, ids []uuid.UUID) ([]database.Order, error)
	UpdateOrderItemStatus(ctx context.Context, id uuid.UUID, from, to enum.ItemStatus) (database.OrderItem, error)
	BulkUpdateOrderItemStatus(ctx context.Context, ids []uuid.UUID, from, to enum.ItemStatus) ([]database.OrderItem, error)
}

type NewItemStore func(db database.DBTX, tenantID uuid.UUID) ItemStore

// ItemService drives order items through their preparation states.
type ItemService struct {
	pool     TxBeginner
	newStore NewItemStore
	events   events.Publisher
	logger   *zap.Logger
}

func NewItemService(pool TxBeginner, newStore NewItemStore, pub events.Publisher, logger *zap.Logger) *ItemService {
	return &ItemService{pool: pool, newStore: newStore, events: pub, logger: logger}
}

// UpdateItemResult is the changed item and its possibly re-derived order.
type UpdateItemResult struct {
	Item         database.OrderItem
	Order        database.Order
	OrderChanged bool
}

func authorizeItem(actor Actor, sectorCode string, target enum.ItemStatus) error {
	if !permission.SectorAccess(actor.Role, sectorCode) {
		return apperr.Forbidden("no access to sector %s", sectorCode)
	}
	if target == enum.ItemStatusCancelled && !permission.CanCancel(actor.Role) {
		return apperr.Forbidden("only administrators can cancel items")
	}
	return nil
}

// UpdateItemStatus moves one item to target. The write is a compare-and-set
// on (item, tenant, observed status); losing a race reports NOT_FOUND.
func (s *ItemService) UpdateItemStatus(ctx context.Context, actor Actor, itemID uuid.UUID, target enum.ItemStatus) (*UpdateItemResult, error) {
	if !target.Valid() {
		return nil, apperr.BadRequest("unknown item status %q", target)
	}

	var (
		result *UpdateItemResult
		from   enum.ItemStatus
		sector string
	)
	err := retryTx(ctx, s.pool, s.logger, "update item status", database.IsTransient, func(tx pgx.Tx) error {
		store := s.newStore(tx, actor.TenantID)

		item, err := store.GetOrderItem(ctx, itemID)
		if err != nil {
			return notFound(err, "order item")
		}
		if err := authorizeItem(actor, item.SectorCode, target); err != nil {
			return err
		}
		if !CanTransitionItem(item.Status, target) {
			return apperr.BadRequest("cannot move item from %s to %s", item.Status, target).
				With("from", item.Status).
				With("to", target).
				With("valid_targets", itemTransitions[item.Status])
		}

		// Order row first: the bulk path takes the same lock before
		// touching items.
		order, err := store.GetOrderForUpdate(ctx, item.OrderID)
		if err != nil {
			return notFound(err, "order")
		}

		updated, err := store.UpdateOrderItemStatus(ctx, item.ID, item.Status, target)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("order item not found")
		}
		if err != nil {
			return fmt.Errorf("update item status: %w", err)
		}

		if _, err := store.CreateStatusHistory(ctx, database.CreateStatusHistoryParams{
			OrderID:     order.ID,
			OrderItemID: ptr(item.ID),
			FromStatus:  ptr(string(item.Status)),
			ToStatus:    string(target),
			ChangedByID: ptr(actor.UserID),
		}); err != nil {
			return fmt.Errorf("create status history: %w", err)
		}

		order, changed, err := aggregateOrder(ctx, store, order, actor.UserID)
		if err != nil {
			return err
		}

		from, sector = item.Status, item.SectorCode
		result = &UpdateItemResult{Item: updated, Order: order, OrderChanged: changed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item status changed",
		zap.String("item_id", itemID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor_id", actor.UserID.String()))

	publish(ctx, s.events, s.logger, actor.TenantID, events.Event{
		Type:   events.TypeItemStatusChanged,
		Sector: sector,
		Payload: map[string]any{
			"item_id":      result.Item.ID,
			"order_id":     result.Order.ID,
			"order_number": result.Order.OrderNumber,
			"from":         from,
			"status":       result.Item.Status,
		},
	})
	if result.OrderChanged {
		s.publishOrder(ctx, actor.TenantID, result.Order)
	}
	return result, nil
}

// errItemsChanged means the bulk compare-and-set matched fewer rows than were
// read: another request moved an item in between. A replay re-reads the
// items and either succeeds or reports the offending ones.
var errItemsChanged = errors.New("items changed concurrently")

func isBulkRetryable(err error) bool {
	return errors.Is(err, errItemsChanged) || database.IsTransient(err)
}

// BulkUpdateResult reports how many items moved and which orders were
// re-derived as a consequence.
type BulkUpdateResult struct {
	Count         int
	ChangedOrders []database.Order
}

// BulkUpdateItemStatus moves every item in itemIDs to target in one
// transaction. Either all of them move or none does.
func (s *ItemService) BulkUpdateItemStatus(ctx context.Context, actor Actor, itemIDs []uuid.UUID, target enum.ItemStatus) (*BulkUpdateResult, error) {
	pred, ok := bulkPredecessor[target]
	if !ok {
		return nil, apperr.BadRequest("bulk transition to %s is not supported", target).
			With("valid_targets", []enum.ItemStatus{enum.ItemStatusInProgress, enum.ItemStatusReady, enum.ItemStatusServed})
	}

	ids := dedupe(itemIDs)
	if len(ids) == 0 {
		return nil, apperr.BadRequest("at least one item id required")
	}

	var (
		result  *BulkUpdateResult
		sectors map[string]int
	)
	err := retryTx(ctx, s.pool, s.logger, "bulk update item status", isBulkRetryable, func(tx pgx.Tx) error {
		store := s.newStore(tx, actor.TenantID)

		items, err := store.ListOrderItemsByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		if len(items) != len(ids) {
			found := make(map[uuid.UUID]bool, len(items))
			for _, it := range items {
				found[it.ID] = true
			}
			var missing []string
			for _, id := range ids {
				if !found[id] {
					missing = append(missing, id.String())
				}
			}
			return apperr.NotFound("order items not found").With("item_ids", missing)
		}

		var offending []string
		orderIDs := make([]uuid.UUID, 0, len(items))
		seenOrder := make(map[uuid.UUID]bool)
		perSector := make(map[string]int)
		for _, it := range items {
			if err := authorizeItem(actor, it.SectorCode, target); err != nil {
				return err
			}
			if it.Status != pred {
				offending = append(offending, it.ID.String())
			}
			if !seenOrder[it.OrderID] {
				seenOrder[it.OrderID] = true
				orderIDs = append(orderIDs, it.OrderID)
			}
			perSector[it.SectorCode]++
		}
		if len(offending) > 0 {
			return apperr.BadRequest("all items must be %s to move to %s", pred, target).
				With("item_ids", offending).
				With("required_status", pred)
		}

		orders, err := store.LockOrders(ctx, orderIDs)
		if err != nil {
			return fmt.Errorf("lock orders: %w", err)
		}

		updated, err := store.BulkUpdateOrderItemStatus(ctx, ids, pred, target)
		if err != nil {
			return fmt.Errorf("bulk update items: %w", err)
		}
		if len(updated) != len(ids) {
			return fmt.Errorf("%w: expected %d, updated %d", errItemsChanged, len(ids), len(updated))
		}

		for _, it := range updated {
			if _, err := store.CreateStatusHistory(ctx, database.CreateStatusHistoryParams{
				OrderID:     it.OrderID,
				OrderItemID: ptr(it.ID),
				FromStatus:  ptr(string(pred)),
				ToStatus:    string(target),
				ChangedByID: ptr(actor.UserID),
			}); err != nil {
				return fmt.Errorf("create status history: %w", err)
			}
		}

		var changedOrders []database.Order
		for _, o := range orders {
			o, changed, err := aggregateOrder(ctx, store, o, actor.UserID)
			if err != nil {
				return err
			}
			if changed {
				changedOrders = append(changedOrders, o)
			}
		}

		result = &BulkUpdateResult{Count: len(updated), ChangedOrders: changedOrders}
		sectors = perSector
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("items status changed",
		zap.Int("count", result.Count),
		zap.String("to", string(target)),
		zap.String("actor_id", actor.UserID.String()))

	codes := make([]string, 0, len(sectors))
	for code := range sectors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		publish(ctx, s.events, s.logger, actor.TenantID, events.Event{
			Type:   events.TypeItemsStatusChanged,
			Sector: code,
			Payload: map[string]any{
				"count":  sectors[code],
				"from":   pred,
				"status": target,
			},
		})
	}
	for _, o := range result.ChangedOrders {
		s.publishOrder(ctx, actor.TenantID, o)
	}
	return result, nil
}

func (s *ItemService) publishOrder(ctx context.Context, tenantID uuid.UUID, o database.Order) {
	publish(ctx, s.events, s.logger, tenantID, events.Event{
		Type: events.TypeOrderStatusChanged,
		Payload: map[string]any{
			"order_id":     o.ID,
			"order_number": o.OrderNumber,
			"status":       o.Status,
		},
	})
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
