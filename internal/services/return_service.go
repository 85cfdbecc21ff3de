package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/textutil"
	"github.com/hanko-field/commerce/internal/repositories"
)

const returnIDPrefix = "ret_"

var (
	// ErrReturnInvalidInput signals malformed return requests.
	ErrReturnInvalidInput = errors.New("return: invalid input")
	// ErrReturnNotFound indicates the return request or its order does not exist.
	ErrReturnNotFound = errors.New("return: not found")
	// ErrReturnForbidden indicates the caller does not own the order.
	ErrReturnForbidden = errors.New("return: forbidden")
	// ErrReturnOrderNotCompleted indicates the source order has not reached Completed.
	ErrReturnOrderNotCompleted = errors.New("return: order is not completed")
	// ErrReturnInvalidState indicates the request is no longer pending.
	ErrReturnInvalidState = errors.New("return: invalid status transition")
	// ErrReturnInsufficientStock indicates the replacement product cannot cover the request.
	ErrReturnInsufficientStock = errors.New("return: insufficient replacement stock")
	// ErrReturnConflict indicates a concurrent update.
	ErrReturnConflict = errors.New("return: conflict")
)

// ReturnServiceDeps bundles collaborators required to construct the return service.
type ReturnServiceDeps struct {
	Returns     repositories.ReturnRequestRepository
	Orders      repositories.OrderRepository
	Details     repositories.OrderDetailRepository
	Inventory   InventoryService
	UnitOfWork  repositories.UnitOfWork
	Events      EventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type returnService struct {
	returns    repositories.ReturnRequestRepository
	orders     repositories.OrderRepository
	details    repositories.OrderDetailRepository
	inventory  InventoryService
	unitOfWork repositories.UnitOfWork
	events     EventPublisher
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewReturnService constructs the exchange workflow service.
func NewReturnService(deps ReturnServiceDeps) (ReturnService, error) {
	switch {
	case deps.Returns == nil:
		return nil, errors.New("return service: return repository is required")
	case deps.Orders == nil:
		return nil, errors.New("return service: order repository is required")
	case deps.Details == nil:
		return nil, errors.New("return service: order detail repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("return service: inventory service is required")
	}
	svc := &returnService{
		returns:    deps.Returns,
		orders:     deps.Orders,
		details:    deps.Details,
		inventory:  deps.Inventory,
		unitOfWork: deps.UnitOfWork,
		events:     deps.Events,
		clock:      deps.Clock,
		newID:      deps.IDGenerator,
		logger:     deps.Logger,
	}
	if svc.unitOfWork == nil {
		svc.unitOfWork = noopUnitOfWork{}
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.newID == nil {
		svc.newID = func() string { return ulid.Make().String() }
	}
	if svc.logger == nil {
		svc.logger = noopLogger
	}
	return svc, nil
}

func (s *returnService) CreateReturn(ctx context.Context, cmd CreateReturnCommand) (ReturnRequest, error) {
	userID := strings.TrimSpace(cmd.UserID)
	orderID := strings.TrimSpace(cmd.OrderID)
	if userID == "" || orderID == "" {
		return ReturnRequest{}, fmt.Errorf("%w: user id and order id are required", ErrReturnInvalidInput)
	}
	reason := textutil.PlainText(cmd.Reason, maxReasonLength)

	var request ReturnRequest
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if !cmd.ActorIsStaff && order.UserID != userID {
			return fmt.Errorf("%w: order %s", ErrReturnForbidden, orderID)
		}
		if order.Status != domain.OrderStatusCompleted {
			return fmt.Errorf("%w: order %s is %s", ErrReturnOrderNotCompleted, orderID, order.Status)
		}
		details, err := s.details.ListByOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		selected, err := selectReturnLines(details, cmd.OrderDetailIDs)
		if err != nil {
			return err
		}
		replacement, err := replacementProduct(selected, cmd.ReplacementProductID)
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		items := make([]ReturnItem, 0, len(selected))
		detailIDs := make([]string, 0, len(selected))
		total := 0
		for _, detail := range selected {
			items = append(items, ReturnItem{
				OrderDetailID: detail.ID,
				ProductID:     detail.ProductID,
				ProductName:   detail.ProductName,
				Quantity:      detail.Quantity,
				UnitPrice:     detail.UnitPrice,
			})
			detailIDs = append(detailIDs, detail.ID)
			total += detail.Quantity
		}
		request = ReturnRequest{
			ID:                   returnIDPrefix + s.newID(),
			OrderID:              orderID,
			UserID:               order.UserID,
			Items:                items,
			ReplacementProductID: replacement,
			TotalQuantity:        total,
			Reason:               reason,
			Status:               domain.ReturnStatusPendingManufacturer,
			CreatedAt:            now,
			UpdatedAt:            now,
		}

		if _, err := s.inventory.Decrement(txCtx, []StockChange{{ProductID: replacement, Quantity: total}}); err != nil {
			return err
		}
		if err := s.returns.Insert(txCtx, request); err != nil {
			return err
		}
		return s.details.UpdateStatus(txCtx, detailIDs, domain.OrderDetailStatusReturned, now)
	})
	if err != nil {
		return ReturnRequest{}, s.mapError(err)
	}

	s.logger(ctx, "return.created", map[string]any{
		"returnId":      request.ID,
		"orderId":       request.OrderID,
		"replacement":   request.ReplacementProductID,
		"totalQuantity": request.TotalQuantity,
	})
	s.publish(ctx, EventReturnRequestCreated, request)
	return request, nil
}

func (s *returnService) CompleteReturn(ctx context.Context, cmd ReturnActionCommand) (ReturnRequest, error) {
	return s.settle(ctx, cmd, domain.ReturnStatusCompleted)
}

func (s *returnService) CancelReturn(ctx context.Context, cmd ReturnActionCommand) (ReturnRequest, error) {
	return s.settle(ctx, cmd, domain.ReturnStatusCancelled)
}

// settle moves a pending request to a final status. Both outcomes put the replacement
// quantity back in stock; cancellation also reverts the returned lines to Delivered.
func (s *returnService) settle(ctx context.Context, cmd ReturnActionCommand, status domain.ReturnStatus) (ReturnRequest, error) {
	returnID := strings.TrimSpace(cmd.ReturnID)
	if returnID == "" {
		return ReturnRequest{}, fmt.Errorf("%w: return id is required", ErrReturnInvalidInput)
	}

	var request ReturnRequest
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.returns.FindByID(txCtx, returnID)
		if err != nil {
			return err
		}
		if current.Status != domain.ReturnStatusPendingManufacturer {
			return fmt.Errorf("%w: return %s is %s", ErrReturnInvalidState, returnID, current.Status)
		}
		if current.TotalQuantity > 0 {
			restock := []StockChange{{ProductID: current.ReplacementProductID, Quantity: current.TotalQuantity}}
			if _, err := s.inventory.Increment(txCtx, restock); err != nil {
				return err
			}
		}

		now := s.clock().UTC()
		current.Status = status
		current.UpdatedAt = now
		if status == domain.ReturnStatusCompleted {
			current.CompletedAt = &now
		} else {
			current.CancelledAt = &now
		}
		if err := s.returns.Update(txCtx, current); err != nil {
			return err
		}
		request = current
		if status != domain.ReturnStatusCancelled {
			return nil
		}
		ids := make([]string, 0, len(current.Items))
		for _, item := range current.Items {
			ids = append(ids, item.OrderDetailID)
		}
		return s.details.UpdateStatus(txCtx, ids, domain.OrderDetailStatusDelivered, now)
	})
	if err != nil {
		return ReturnRequest{}, s.mapError(err)
	}

	s.logger(ctx, "return.settled", map[string]any{
		"returnId": request.ID,
		"status":   string(request.Status),
		"actorId":  cmd.ActorID,
	})
	s.publish(ctx, EventReturnRequestUpdated, request)
	return request, nil
}

func (s *returnService) GetReturn(ctx context.Context, returnID string) (ReturnRequest, error) {
	returnID = strings.TrimSpace(returnID)
	if returnID == "" {
		return ReturnRequest{}, fmt.Errorf("%w: return id is required", ErrReturnInvalidInput)
	}
	request, err := s.returns.FindByID(ctx, returnID)
	if err != nil {
		return ReturnRequest{}, s.mapError(err)
	}
	return request, nil
}

func (s *returnService) ListReturns(ctx context.Context, filter ReturnListFilter) (domain.CursorPage[ReturnRequest], error) {
	page, err := s.returns.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[ReturnRequest]{}, s.mapError(err)
	}
	return page, nil
}

func (s *returnService) mapError(err error) error {
	switch {
	case errors.Is(err, ErrInventoryInsufficientStock):
		return fmt.Errorf("%w: %v", ErrReturnInsufficientStock, err)
	case errors.Is(err, ErrInventoryNotFound):
		return fmt.Errorf("%w: replacement product: %v", ErrReturnInvalidInput, err)
	case errors.Is(err, ErrInventoryConflict):
		return fmt.Errorf("%w: %v", ErrReturnConflict, err)
	}
	return mapRepoError(err, ErrReturnNotFound, ErrReturnConflict, "return")
}

func (s *returnService) publish(ctx context.Context, name string, request ReturnRequest) {
	if s.events == nil {
		return
	}
	event := Event{
		Name:       name,
		UserID:     request.UserID,
		OccurredAt: request.UpdatedAt,
		Data: map[string]any{
			"return_id":              request.ID,
			"order_id":               request.OrderID,
			"user_id":                request.UserID,
			"status":                 string(request.Status),
			"replacement_product_id": request.ReplacementProductID,
			"total_quantity":         request.TotalQuantity,
		},
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "return.event.publish.failed", map[string]any{"event": name, "returnId": request.ID, "error": err.Error()})
	}
}

// selectReturnLines picks the requested delivered lines, or every delivered line when ids is empty.
func selectReturnLines(details []OrderDetail, ids []string) ([]OrderDetail, error) {
	if len(ids) == 0 {
		selected := make([]OrderDetail, 0, len(details))
		for _, detail := range details {
			if detail.Status == domain.OrderDetailStatusDelivered {
				selected = append(selected, detail)
			}
		}
		if len(selected) == 0 {
			return nil, fmt.Errorf("%w: order has no delivered lines to return", ErrReturnInvalidInput)
		}
		return selected, nil
	}

	byID := make(map[string]OrderDetail, len(details))
	for _, detail := range details {
		byID[detail.ID] = detail
	}
	seen := make(map[string]struct{}, len(ids))
	selected := make([]OrderDetail, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		detail, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: order line %q does not belong to the order", ErrReturnInvalidInput, id)
		}
		if detail.Status != domain.OrderDetailStatusDelivered {
			return nil, fmt.Errorf("%w: order line %s is %s", ErrReturnInvalidInput, id, detail.Status)
		}
		selected = append(selected, detail)
	}
	return selected, nil
}

// replacementProduct defaults to the product shared by every selected line.
func replacementProduct(selected []OrderDetail, requested string) (string, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested, nil
	}
	productID := selected[0].ProductID
	for _, detail := range selected[1:] {
		if detail.ProductID != productID {
			return "", fmt.Errorf("%w: replacement product is required when returning different products", ErrReturnInvalidInput)
		}
	}
	return productID, nil
}
