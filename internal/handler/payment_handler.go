package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qpaygate/internal/checkout"
	"qpaygate/internal/fulfillment"
	"qpaygate/internal/gateway"
	"qpaygate/internal/models"
	"qpaygate/internal/session"
)

// PaymentFinder is the slice of the payment repository the handler
// consumes.
type PaymentFinder interface {
	FindByID(id uint) (*models.Payment, error)
	FindForOrder(id, orderID uint) (*models.Payment, error)
}

// OrderFinder is the slice of the order repository the handler consumes.
type OrderFinder interface {
	FindByCode(code string) (*models.Order, error)
	FindByID(id uint) (*models.Order, error)
}

// ReconcileFunc pulls the remote payment state and applies it locally,
// matching the signature of the reconcile engine.
type ReconcileFunc func(ctx context.Context, payment *models.Payment, auth gateway.Auth, remoteID string) error

// PaymentHandler serves the buyer-facing return and webhook endpoints.
type PaymentHandler struct {
	payments      PaymentFinder
	orders        OrderFinder
	creds         checkout.CredentialStore
	settings      checkout.SettingsStore
	reconcile     ReconcileFunc
	sessions      session.Store
	webhookSecret string
	logger        *zap.Logger
}

func NewPaymentHandler(
	payments PaymentFinder,
	orders OrderFinder,
	creds checkout.CredentialStore,
	settings checkout.SettingsStore,
	reconcile ReconcileFunc,
	sessions session.Store,
	webhookSecret string,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		orders:        orders,
		creds:         creds,
		settings:      settings,
		reconcile:     reconcile,
		sessions:      sessions,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (h *PaymentHandler) authFor(tenantID string) gateway.Auth {
	settings, err := checkout.ResolveSettings(h.settings, tenantID)
	if err != nil {
		settings = nil
	}
	cred, _ := h.creds.FindByTenant(tenantID)
	return checkout.AuthFor(cred, settings)
}

// Return handles the buyer coming back from the gateway:
// GET /pay/return/:code/:hash/:payment
//
// The hash is the SHA-1 of the lowercased order secret. Lookup failures
// still burn a hash comparison so response timing does not reveal
// whether the order code exists.
func (h *PaymentHandler) Return(c echo.Context) error {
	code := c.Param("code")
	hash := strings.ToLower(c.Param("hash"))

	order, err := h.orders.FindByCode(code)
	if err != nil {
		dummy := checkout.OrderHash(code)
		subtle.ConstantTimeCompare([]byte(dummy), []byte(hash))
		return renderPage(c, http.StatusNotFound, "Not found", "The order you are looking for does not exist.", "", "")
	}

	expected := checkout.OrderHash(order.Secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(hash)) != 1 {
		return renderPage(c, http.StatusNotFound, "Not found", "The order you are looking for does not exist.", "", "")
	}

	paymentID, err := strconv.ParseUint(c.Param("payment"), 10, 64)
	if err != nil {
		return renderPage(c, http.StatusNotFound, "Not found", "Unknown payment.", "", "")
	}
	payment, err := h.payments.FindForOrder(uint(paymentID), order.ID)
	if err != nil {
		return renderPage(c, http.StatusNotFound, "Not found", "Unknown payment.", "", "")
	}

	sid := sessionID(c)
	secret, _ := h.sessions.Get(c.Request().Context(), sid, session.KeyOrderSecret)
	sameSession := secret != "" && secret == order.Secret

	statusURL := "/order/" + order.Code + "/status"

	if !payment.IsTerminal() && payment.RemoteID.Valid && payment.RemoteID.String != "" {
		err := h.reconcile(c.Request().Context(), payment, h.authFor(order.TenantID), payment.RemoteID.String)
		switch {
		case errors.Is(err, fulfillment.ErrCapacityExceeded):
			return renderPage(c, http.StatusOK, "Sold out",
				"Your payment arrived, but one of the products is sold out. The payment will be refunded.",
				statusURL, "Back to order")
		case errors.Is(err, fulfillment.ErrConcurrencyTimeout):
			return renderPage(c, http.StatusOK, "Please wait",
				"We are experiencing a high load. Your payment is being processed, please check back in a minute.",
				statusURL, "Back to order")
		case errors.Is(err, gateway.ErrUnavailable):
			return renderPage(c, http.StatusOK, "Status unknown",
				"We could not determine the payment status yet. It will be picked up automatically.",
				statusURL, "Back to order")
		case err != nil:
			h.logger.Error("return reconcile failed",
				zap.Uint("payment_id", payment.ID), zap.Error(err))
			return renderPage(c, http.StatusOK, "Status unknown",
				"Something went wrong while checking your payment. It will be picked up automatically.",
				statusURL, "Back to order")
		}
	}

	if payment.Status == models.PaymentStatusConfirmed && sameSession {
		return c.Redirect(http.StatusFound, statusURL+"?paid=yes")
	}
	return c.Redirect(http.StatusFound, statusURL)
}

// Webhook handles asynchronous status notifications:
// POST /pay/webhook/:payment
//
// The gateway retries on anything but 200, so only a concurrency
// timeout maps to 503. A capacity failure is final and gets a 200 so
// the gateway stops retrying.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	if h.webhookSecret != "" {
		given := c.QueryParam("secret")
		if subtle.ConstantTimeCompare([]byte(h.webhookSecret), []byte(given)) != 1 {
			return c.NoContent(http.StatusForbidden)
		}
	}

	paymentID, err := strconv.ParseUint(c.Param("payment"), 10, 64)
	if err != nil {
		return c.NoContent(http.StatusOK)
	}
	payment, err := h.payments.FindByID(uint(paymentID))
	if err != nil {
		return c.NoContent(http.StatusOK)
	}

	remoteID := c.FormValue("id")
	if remoteID == "" {
		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err == nil {
			remoteID = body.ID
		}
	}
	if remoteID == "" && payment.RemoteID.Valid {
		remoteID = payment.RemoteID.String
	}
	if remoteID == "" {
		return c.NoContent(http.StatusOK)
	}

	err = h.reconcile(c.Request().Context(), payment, h.authFor(payment.TenantID), remoteID)
	switch {
	case errors.Is(err, fulfillment.ErrConcurrencyTimeout):
		return c.NoContent(http.StatusServiceUnavailable)
	case errors.Is(err, fulfillment.ErrCapacityExceeded):
		return c.NoContent(http.StatusOK)
	case err != nil:
		h.logger.Error("webhook reconcile failed",
			zap.Uint("payment_id", payment.ID),
			zap.String("remote_id", remoteID),
			zap.Error(err))
		return c.NoContent(http.StatusOK)
	}
	return c.NoContent(http.StatusOK)
}
