package handlers

import (
	"orders/internal/apperror"
	"orders/internal/models"
	"orders/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
	log     *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Patch("/:id/status", h.HandleChangeOrderStatus)
	orderRoutes.Post("/:id/payment-session", h.HandleCreatePaymentSession)
}

// HandleGetOrders retrieves a page of orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	var req FindAllRequest
	if err := c.QueryParser(&req); err != nil {
		return h.fail(c, apperror.Validation("invalid query: %v", err))
	}
	if err := validateStruct(req); err != nil {
		return h.fail(c, err)
	}
	page, err := h.service.FindAll(c.UserContext(), req.Pagination())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(page)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	req := FindOneRequest{ID: c.Params("id")}
	if err := validateStruct(req); err != nil {
		return h.fail(c, err)
	}
	order, err := h.service.FindOne(c.UserContext(), req.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// HandleCreateOrder creates a new order and opens its payment session.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := decode(c.Body(), &req); err != nil {
		return h.fail(c, err)
	}
	result, err := h.service.CreateOrder(c.UserContext(), req.Items)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleChangeOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleChangeOrderStatus(c *fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return h.fail(c, apperror.Validation("invalid request body: %v", err))
	}
	req := ChangeOrderStatusRequest{ID: c.Params("id"), Status: body.Status}
	if err := validateStruct(req); err != nil {
		return h.fail(c, err)
	}
	order, err := h.service.ChangeOrderStatus(c.UserContext(), req.ID, models.OrderStatus(req.Status))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// HandleCreatePaymentSession opens a new payment session for a PENDING order.
func (h *OrderHandler) HandleCreatePaymentSession(c *fiber.Ctx) error {
	req := FindOneRequest{ID: c.Params("id")}
	if err := validateStruct(req); err != nil {
		return h.fail(c, err)
	}
	session, err := h.service.CreatePaymentSession(c.UserContext(), req.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"paymentSession": session})
}

func (h *OrderHandler) fail(c *fiber.Ctx, err error) error {
	resp := NewErrorResponse(err)
	if resp.StatusCode >= fiber.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		h.log.Debug("request rejected", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(resp.StatusCode).JSON(resp)
}
