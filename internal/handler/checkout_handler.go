package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qpaygate/internal/checkout"
	"qpaygate/internal/fulfillment"
	"qpaygate/internal/gateway"
	"qpaygate/internal/models"
	"qpaygate/internal/session"
)

// PaymentExecutor creates the remote payment for an order.
type PaymentExecutor interface {
	Execute(ctx context.Context, sessionID string, order *models.Order, method string, iframe bool) (string, *models.Payment, error)
}

// CheckoutHandler serves the merchant-side checkout steps: capturing
// card fields into the session and starting the payment.
type CheckoutHandler struct {
	orders   OrderFinder
	executor PaymentExecutor
	sessions session.Store
	logger   *zap.Logger
}

func NewCheckoutHandler(orders OrderFinder, executor PaymentExecutor, sessions session.Store, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		orders:   orders,
		executor: executor,
		sessions: sessions,
		logger:   logger,
	}
}

// Card stores the buyer's card fields in the checkout session:
// POST /pay/:code/card
//
// The fields never touch the database; the execute step reads them back
// from the session.
func (h *CheckoutHandler) Card(c echo.Context) error {
	if _, err := h.orders.FindByCode(c.Param("code")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "order not found"})
	}

	var fields gateway.CardFields
	if err := c.Bind(&fields); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if fields.Number == "" || fields.ExpMonth < 1 || fields.ExpMonth > 12 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid card details"})
	}

	blob, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	sid := sessionID(c)
	if err := h.sessions.Set(c.Request().Context(), sid, session.KeyCardFields, string(blob)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start creates the payment: POST /pay/:code/start
//
// Responds with the URL the browser should navigate to next, either the
// order status page on synchronous approval or the external checkout.
func (h *CheckoutHandler) Start(c echo.Context) error {
	order, err := h.orders.FindByCode(c.Param("code"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "order not found"})
	}
	if order.Status == models.OrderStatusPaid {
		return c.JSON(http.StatusConflict, map[string]string{"error": "order already paid"})
	}

	method := c.FormValue("method")
	iframe := c.FormValue("iframe") == "1"

	sid := sessionID(c)
	next, _, err := h.executor.Execute(c.Request().Context(), sid, order, method, iframe)
	if err != nil {
		if errors.Is(err, checkout.ErrPaymentFailed) {
			return c.JSON(http.StatusBadGateway, map[string]string{
				"error": "We had trouble communicating with the payment provider. Please try again and get in touch with us if this problem persists.",
			})
		}
		if errors.Is(err, fulfillment.ErrConcurrencyTimeout) {
			// The charge succeeded; fulfillment is retried by the
			// webhook and the sweep.
			return c.JSON(http.StatusOK, map[string]string{
				"redirect": "/order/" + order.Code + "/status",
				"message":  "Your payment was received and is being processed. Please check back in a minute.",
			})
		}
		h.logger.Error("payment start failed", zap.String("order_code", order.Code), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"redirect": next})
}
