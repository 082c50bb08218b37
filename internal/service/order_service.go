package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/cache"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/storage"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// PageSize is the fixed listing page size.
const PageSize = 10

// UnassignedSentinel is the client-side value meaning "no assignee".
const UnassignedSentinel = "unassigned"

// Identity identifies the authenticated caller.
type Identity struct {
	UserID string
	Role   domain.Role
}

// OrderService is the order access and query engine: the single place where
// role-based visibility and mutation policy is decided.
type OrderService struct {
	orders      repository.WorkOrderRepository
	users       repository.UserRepository
	attachments storage.AttachmentStore
	cache       cache.OrderCache
	dispatcher  events.Dispatcher
	validate    *validator.Validate
	logger      *zap.Logger
}

// OrderDependencies bundles collaborators for the order service.
type OrderDependencies struct {
	OrderRepo   repository.WorkOrderRepository
	UserRepo    repository.UserRepository
	Attachments storage.AttachmentStore
	Cache       cache.OrderCache
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewOrderService constructs the service.
func NewOrderService(deps OrderDependencies) *OrderService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:      deps.OrderRepo,
		users:       deps.UserRepo,
		attachments: deps.Attachments,
		cache:       deps.Cache,
		dispatcher:  deps.Dispatcher,
		validate:    validator.New(),
		logger:      logger,
	}
}

// ImageUpload carries a pending attachment through the engine.
type ImageUpload struct {
	Data         []byte
	MimeType     string
	OriginalName string
}

// ListOrdersInput captures the advisory filter set for a listing.
type ListOrdersInput struct {
	Search   string
	Status   string
	Priority string
	Page     int
}

// PaginatedOrders is a single result page with pagination metadata.
type PaginatedOrders struct {
	Orders      []domain.WorkOrder
	TotalCount  int
	CurrentPage int
	TotalPages  int
}

// CreateOrderInput describes order creation payload. Status is never part of
// it: new orders always start OPEN.
type CreateOrderInput struct {
	Title        string `validate:"required,max=200"`
	Description  string `validate:"required,max=1000"`
	Priority     string `validate:"omitempty,oneof=LOW MED HIGH"`
	AssignedToID string
	Image        *ImageUpload
}

// UpdateOrderInput is a sparse payload: nil members are left untouched.
type UpdateOrderInput struct {
	Title        *string `validate:"omitempty,min=1,max=200"`
	Description  *string `validate:"omitempty,min=1,max=1000"`
	Priority     *string `validate:"omitempty,oneof=LOW MED HIGH"`
	Status       *string `validate:"omitempty,oneof=OPEN IN_PROGRESS COMPLETED CANCELLED"`
	AssignedToID *string
	Image        *ImageUpload
}

// ListOrders returns one page of orders visible to the caller. Invalid
// status/priority filter values degrade to "no filter"; page normalizes to 1.
func (s *OrderService) ListOrders(ctx context.Context, caller *Identity, input ListOrdersInput) (*PaginatedOrders, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	page := input.Page
	if page < 1 {
		page = 1
	}

	filter := repository.OrderFilter{Search: strings.TrimSpace(input.Search)}
	if caller.Role == domain.RoleUser {
		filter.CreatedByID = &caller.UserID
	}
	if status := domain.OrderStatus(input.Status); input.Status != "" && domain.ValidOrderStatus(status) {
		filter.Status = &status
	}
	if priority := domain.OrderPriority(input.Priority); input.Priority != "" && domain.ValidOrderPriority(priority) {
		filter.Priority = &priority
	}

	orders, err := s.orders.List(ctx, filter, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	totalCount, err := s.orders.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &PaginatedOrders{
		Orders:      orders,
		TotalCount:  totalCount,
		CurrentPage: page,
		TotalPages:  (totalCount + PageSize - 1) / PageSize,
	}, nil
}

// GetOrder returns a single order with creator and assignee resolved. A USER
// asking for someone else's order gets the same NOT_FOUND as a missing id so
// that order existence is not leaked.
func (s *OrderService) GetOrder(ctx context.Context, caller *Identity, orderID string) (*domain.WorkOrder, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	if cached, ok := s.cacheGet(ctx, orderID); ok {
		if caller.Role == domain.RoleUser && cached.CreatedByID != caller.UserID {
			return nil, apperrors.NewNotFound("work order", map[string]any{"order_id": orderID})
		}
		return cached, nil
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("work order", map[string]any{"order_id": orderID})
		}
		return nil, apperrors.MapError(err)
	}
	if caller.Role == domain.RoleUser && order.CreatedByID != caller.UserID {
		return nil, apperrors.NewNotFound("work order", map[string]any{"order_id": orderID})
	}

	s.cacheSet(ctx, order)
	return order, nil
}

// CreateOrder validates the payload and inserts a new OPEN order owned by the
// caller. The image, when present, is uploaded before the row is written so a
// failed upload aborts creation with no partial record.
func (s *OrderService) CreateOrder(ctx context.Context, caller *Identity, input CreateOrderInput) (*domain.WorkOrder, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	priority := domain.OrderPriority(input.Priority)
	if input.Priority == "" {
		priority = domain.OrderPriorityMedium
	}

	var assignedToID *string
	if FieldPermitted(caller.Role, FieldAssignedTo) {
		normalized := normalizeAssignee(input.AssignedToID)
		if normalized != nil {
			if err := s.ensureUserExists(ctx, *normalized); err != nil {
				return nil, err
			}
			assignedToID = normalized
		}
	}

	order := &domain.WorkOrder{
		ID:           uuid.NewString(),
		Title:        input.Title,
		Description:  input.Description,
		Status:       domain.OrderStatusOpen,
		Priority:     priority,
		CreatedByID:  caller.UserID,
		AssignedToID: assignedToID,
	}

	if input.Image != nil {
		saved, err := s.saveImage(ctx, input.Image)
		if err != nil {
			return nil, err
		}
		order.ImageURL = &saved.URL
		order.ImageName = &saved.Name
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperrors.MapError(err)
	}

	created, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, caller, events.EventOrderCreated, created.ID, events.OrderCreatedPayload{
		Title:        created.Title,
		Priority:     created.Priority,
		AssignedToID: created.AssignedToID,
		HasImage:     created.ImageName != nil,
	})
	if created.AssignedToID != nil {
		s.publish(ctx, caller, events.EventOrderAssigned, created.ID, events.OrderAssignedPayload{
			NewAssignedToID: created.AssignedToID,
		})
	}
	return created, nil
}

// UpdateOrder applies a sparse payload to an existing order under the
// caller's field permissions. Unpermitted fields are dropped silently;
// validation failures abort before anything is persisted.
func (s *OrderService) UpdateOrder(ctx context.Context, caller *Identity, orderID string, input UpdateOrderInput) (*domain.WorkOrder, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	existing, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("work order", map[string]any{"order_id": orderID})
		}
		return nil, apperrors.MapError(err)
	}
	if caller.Role == domain.RoleUser && existing.CreatedByID != caller.UserID {
		return nil, apperrors.NewUnauthorized("not the creator of this work order")
	}

	normalized := normalizeUpdate(caller.Role, input)
	if err := s.validate.Struct(normalized); err != nil {
		return nil, validationError(err)
	}

	var (
		changed      []string
		statusChange *events.OrderStatusChangedPayload
		assignChange *events.OrderAssignedPayload
	)

	if normalized.Title != nil {
		existing.Title = strings.TrimSpace(*normalized.Title)
		changed = append(changed, string(FieldTitle))
	}
	if normalized.Description != nil {
		existing.Description = strings.TrimSpace(*normalized.Description)
		changed = append(changed, string(FieldDescription))
	}
	if normalized.Priority != nil {
		existing.Priority = domain.OrderPriority(*normalized.Priority)
		changed = append(changed, string(FieldPriority))
	}
	if normalized.Status != nil {
		newStatus := domain.OrderStatus(*normalized.Status)
		if newStatus != existing.Status {
			statusChange = &events.OrderStatusChangedPayload{
				OldStatus: existing.Status,
				NewStatus: newStatus,
			}
		}
		existing.Status = newStatus
		changed = append(changed, string(FieldStatus))
	}
	if normalized.AssignedToID != nil {
		newAssignee := normalizeAssignee(*normalized.AssignedToID)
		if newAssignee != nil {
			if err := s.ensureUserExists(ctx, *newAssignee); err != nil {
				return nil, err
			}
		}
		assignChange = &events.OrderAssignedPayload{
			OldAssignedToID: existing.AssignedToID,
			NewAssignedToID: newAssignee,
		}
		existing.AssignedToID = newAssignee
		changed = append(changed, string(FieldAssignedTo))
	}

	if input.Image != nil {
		// Replace = delete old blob, then save the new one. The delete is
		// best-effort: the store logs and swallows failures, and an orphaned
		// file must never block the update itself.
		if existing.ImageName != nil {
			s.attachments.Delete(ctx, *existing.ImageName)
		}
		saved, err := s.saveImage(ctx, input.Image)
		if err != nil {
			return nil, err
		}
		existing.ImageURL = &saved.URL
		existing.ImageName = &saved.Name
		changed = append(changed, string(FieldImage))
	}

	if err := s.orders.Update(ctx, existing); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("work order", map[string]any{"order_id": orderID})
		}
		return nil, apperrors.MapError(err)
	}

	s.cacheInvalidate(ctx, orderID)

	updated, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if len(changed) > 0 {
		s.publish(ctx, caller, events.EventOrderUpdated, orderID, events.OrderUpdatedPayload{ChangedFields: changed})
	}
	if statusChange != nil {
		s.publish(ctx, caller, events.EventOrderStatusChanged, orderID, *statusChange)
	}
	if assignChange != nil {
		s.publish(ctx, caller, events.EventOrderAssigned, orderID, *assignChange)
	}
	return updated, nil
}

// ListAssignableUsers returns every user a manager may assign orders to.
func (s *OrderService) ListAssignableUsers(ctx context.Context, caller *Identity) ([]domain.User, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if caller.Role != domain.RoleManager {
		return nil, apperrors.NewUnauthorized("manager role required")
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// normalizeUpdate drops fields the role may not write and treats empty
// strings on always-writable fields as "unchanged". AssignedToID keeps its
// presence semantics: an empty string is an explicit clear, not an omission.
func normalizeUpdate(role domain.Role, input UpdateOrderInput) UpdateOrderInput {
	out := UpdateOrderInput{Image: input.Image}
	if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
		out.Title = input.Title
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) != "" {
		out.Description = input.Description
	}
	if input.Priority != nil && *input.Priority != "" {
		out.Priority = input.Priority
	}
	if FieldPermitted(role, FieldStatus) && input.Status != nil && *input.Status != "" {
		out.Status = input.Status
	}
	if FieldPermitted(role, FieldAssignedTo) {
		out.AssignedToID = input.AssignedToID
	}
	return out
}

func normalizeAssignee(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == UnassignedSentinel {
		return nil
	}
	return &trimmed
}

func (s *OrderService) ensureUserExists(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("assignee", map[string]any{"user_id": userID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *OrderService) saveImage(ctx context.Context, image *ImageUpload) (*storage.SavedFile, error) {
	saved, err := s.attachments.Save(ctx, image.Data, image.MimeType, image.OriginalName)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidType) || errors.Is(err, storage.ErrTooLarge) {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "image"})
		}
		return nil, apperrors.MapError(err)
	}
	return saved, nil
}

func (s *OrderService) cacheGet(ctx context.Context, orderID string) (*domain.WorkOrder, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, orderID)
}

func (s *OrderService) cacheSet(ctx context.Context, order *domain.WorkOrder) {
	if s.cache != nil {
		s.cache.Set(ctx, order)
	}
}

func (s *OrderService) cacheInvalidate(ctx context.Context, orderID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, orderID)
	}
}

func (s *OrderService) publish(ctx context.Context, caller *Identity, eventType events.EventType, orderID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   orderID,
		Actor:     events.Actor{UserID: caller.UserID, Role: caller.Role},
		Timestamp: time.Now(),
		Payload:   payload,
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// validationError converts validator output into the VALIDATION_FAILED shape.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		details := make(map[string]any, len(ve))
		for _, fe := range ve {
			details[strings.ToLower(fe.Field())] = fieldError(fe)
		}
		return apperrors.NewValidationError("invalid payload", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	default:
		return field + " failed validation (" + fe.Tag() + ")"
	}
}
