package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qpaygate/internal/gateway"
	"qpaygate/internal/models"
)

// PaymentReader reads payments and their refund history.
type PaymentReader interface {
	FindByID(id uint) (*models.Payment, error)
	ListRefunds(paymentID uint) ([]models.Refund, error)
}

// RefundExecutor sends a refund to the gateway and records it.
type RefundExecutor interface {
	ExecuteRefund(ctx context.Context, payment *models.Payment, amount gateway.Amount) error
}

// APIHandler serves the merchant-facing JSON API.
type APIHandler struct {
	payments PaymentReader
	refunds  RefundExecutor
	logger   *zap.Logger
}

func NewAPIHandler(payments PaymentReader, refunds RefundExecutor, logger *zap.Logger) *APIHandler {
	return &APIHandler{payments: payments, refunds: refunds, logger: logger}
}

func (h *APIHandler) paymentFromParam(c echo.Context) (*models.Payment, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}
	payment, err := h.payments.FindByID(uint(id))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}
	return payment, nil
}

// GetPayment serves GET /api/payments/:id
func (h *APIHandler) GetPayment(c echo.Context) error {
	payment, err := h.paymentFromParam(c)
	if err != nil {
		return err
	}
	refunds, err := h.payments.ListRefunds(payment.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"payment": payment,
		"refunds": refunds,
	})
}

// Refund serves POST /api/payments/:id/refund
func (h *APIHandler) Refund(c echo.Context) error {
	payment, err := h.paymentFromParam(c)
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentStatusConfirmed {
		return c.JSON(http.StatusConflict, map[string]string{"error": "only confirmed payments can be refunded"})
	}

	var body struct {
		Amount string `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	amount := gateway.Amount{Currency: payment.Currency, Value: body.Amount}
	if amount.Value == "" {
		amount.Value = payment.Amount
	}

	if err := h.refunds.ExecuteRefund(c.Request().Context(), payment, amount); err != nil {
		h.logger.Error("refund failed", zap.Uint("payment_id", payment.ID), zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "refund could not be executed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
