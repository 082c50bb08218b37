package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/service"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// OrdersHandler manages work order endpoints.
type OrdersHandler struct {
	service *service.OrderService
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(orderService *service.OrderService) *OrdersHandler {
	return &OrdersHandler{service: orderService}
}

// ListOrders GET /orders.
func (h *OrdersHandler) ListOrders(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}

	input := service.ListOrdersInput{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Page:     parsePage(c.Query("page")),
	}
	page, err := h.service.ListOrders(c.Context(), caller, input)
	if err != nil {
		return err
	}

	orders := make([]dto.OrderResponse, 0, len(page.Orders))
	for i := range page.Orders {
		orders = append(orders, dto.NewOrderResponse(&page.Orders[i]))
	}
	return c.JSON(fiber.Map{"data": dto.PaginatedOrdersResponse{
		Orders:      orders,
		TotalCount:  page.TotalCount,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
	}})
}

// GetOrder GET /orders/:id.
func (h *OrdersHandler) GetOrder(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}
	order, err := h.service.GetOrder(c.Context(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOrderResponse(order)})
}

// CreateOrder POST /orders (multipart/form-data).
func (h *OrdersHandler) CreateOrder(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}

	image, err := readImage(c)
	if err != nil {
		return err
	}
	input := service.CreateOrderInput{
		Title:        c.FormValue("title"),
		Description:  c.FormValue("description"),
		Priority:     c.FormValue("priority"),
		AssignedToID: c.FormValue("assigned_to_id"),
		Image:        image,
	}

	order, err := h.service.CreateOrder(c.Context(), caller, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewOrderResponse(order)})
}

// UpdateOrder PATCH /orders/:id (multipart/form-data, sparse).
func (h *OrdersHandler) UpdateOrder(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	image, err := readImage(c)
	if err != nil {
		return err
	}

	input := service.UpdateOrderInput{
		Title:        formValue(form, "title"),
		Description:  formValue(form, "description"),
		Priority:     formValue(form, "priority"),
		Status:       formValue(form, "status"),
		AssignedToID: formValue(form, "assigned_to_id"),
		Image:        image,
	}

	order, err := h.service.UpdateOrder(c.Context(), caller, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOrderResponse(order)})
}

// ListAssignableUsers GET /users/assignable.
func (h *OrdersHandler) ListAssignableUsers(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}
	users, err := h.service.ListAssignableUsers(c.Context(), caller)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func callerFromContext(c *fiber.Ctx) (*service.Identity, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return &service.Identity{UserID: identity.UserID, Role: identity.Role}, nil
}

// parsePage coerces the page parameter to an integer >= 1. Bad input is a
// request for page 1, never an error.
func parsePage(val string) int {
	if val == "" {
		return 1
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 1 {
		return 1
	}
	return parsed
}

func formValue(form *multipart.Form, key string) *string {
	vals, ok := form.Value[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	return &vals[0]
}

// readImage extracts an optional uploaded image. A missing or empty file part
// means no image.
func readImage(c *fiber.Ctx) (*service.ImageUpload, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil || fileHeader == nil || fileHeader.Size == 0 {
		return nil, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable image upload", nil)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable image upload", nil)
	}

	return &service.ImageUpload{
		Data:         data,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		OriginalName: fileHeader.Filename,
	}, nil
}
