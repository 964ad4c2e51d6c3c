package checkout

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"qpaygate/internal/fulfillment"
	"qpaygate/internal/gateway"
	"qpaygate/internal/models"
	"qpaygate/internal/session"
)

// ErrPaymentFailed is the user-facing outcome of a declined or
// unreachable payment creation. The underlying technical detail is
// logged and persisted but never shown to the buyer.
var ErrPaymentFailed = errors.New("checkout: payment could not be processed, please try again")

// GatewayCreator is the slice of the gateway client the executor
// consumes.
type GatewayCreator interface {
	CreatePayment(ctx context.Context, auth gateway.Auth, req *gateway.CreatePaymentRequest) (*gateway.Payment, []byte, error)
	CreateRefund(ctx context.Context, auth gateway.Auth, paymentID string, amount gateway.Amount) (*gateway.Refund, []byte, error)
}

// PaymentStore is the slice of the payment repository the executor
// consumes.
type PaymentStore interface {
	Create(p *models.Payment) error
	UpdateInfo(id uint, info string) error
	UpdateStatus(id uint, status string) error
	SetRemoteID(id uint, remoteID string) error
	CreateRefund(refund *models.Refund) error
	CreateEvent(ev *models.PaymentEvent) error
}

// OrderStore is the slice of the order repository the executor consumes.
type OrderStore interface {
	Items(orderID uint) ([]models.OrderItem, error)
}

// CredentialStore reads per-tenant gateway credentials.
type CredentialStore interface {
	FindByTenant(tenantID string) (*models.Credential, error)
}

// Executor drives outbound payment creation against the gateway.
type Executor struct {
	gw        GatewayCreator
	payments  PaymentStore
	orders    OrderStore
	creds     CredentialStore
	settings  SettingsStore
	sessions  session.Store
	builder   *Builder
	confirmer fulfillment.Confirmer
	publicURL string
	logger    *zap.Logger
}

func NewExecutor(
	gw GatewayCreator,
	payments PaymentStore,
	orders OrderStore,
	creds CredentialStore,
	settings SettingsStore,
	sessions session.Store,
	builder *Builder,
	confirmer fulfillment.Confirmer,
	publicURL string,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		gw:        gw,
		payments:  payments,
		orders:    orders,
		creds:     creds,
		settings:  settings,
		sessions:  sessions,
		builder:   builder,
		confirmer: confirmer,
		publicURL: publicURL,
		logger:    logger,
	}
}

// AuthFor selects the bearer for a tenant: the OAuth access token when
// connected, otherwise the static API key.
func AuthFor(cred *models.Credential, settings *Settings) gateway.Auth {
	auth := gateway.Auth{}
	if cred != nil {
		if cred.AccessToken != "" {
			auth.Bearer = cred.AccessToken
			auth.Testmode = settings != nil && settings.Endpoint == "test"
		} else {
			auth.Bearer = cred.APIKey
		}
	}
	return auth
}

// OrderHash returns the hex SHA-1 of the lowercased order secret, the
// value embedded in return URLs.
func OrderHash(secret string) string {
	sum := sha1.Sum([]byte(strings.ToLower(secret)))
	return hex.EncodeToString(sum[:])
}

// Execute creates the remote payment for an order. Card fields are read
// from the checkout session, never from the request body. The creation
// response itself is authoritative: approval codes mean the payment is
// confirmed synchronously, a checkout link means the buyer must be
// redirected, anything else is a failure.
//
// The returned string is the URL to send the browser to next.
func (x *Executor) Execute(ctx context.Context, sessionID string, order *models.Order, method string, iframe bool) (string, *models.Payment, error) {
	payment := &models.Payment{
		OrderID:  order.ID,
		TenantID: order.TenantID,
		Amount:   order.Total,
		Currency: order.Currency,
		Status:   models.PaymentStatusCreated,
	}
	if err := x.payments.Create(payment); err != nil {
		return "", nil, err
	}

	settings, err := ResolveSettings(x.settings, order.TenantID)
	if err != nil {
		return "", payment, err
	}
	cred, _ := x.creds.FindByTenant(order.TenantID)
	auth := AuthFor(cred, settings)

	req, err := x.buildRequest(ctx, sessionID, order, payment, settings, cred, method)
	if err != nil {
		return "", payment, err
	}

	resp, raw, err := x.gw.CreatePayment(ctx, auth, req)
	if err != nil {
		x.failPayment(payment, raw, err)
		return "", payment, ErrPaymentFailed
	}

	_ = x.payments.UpdateInfo(payment.ID, string(raw))
	payment.Info = string(raw)
	if resp.ID != "" {
		_ = x.payments.SetRemoteID(payment.ID, resp.ID)
	}
	// The return endpoint later checks this against the order, so a
	// foreign browser session cannot complete someone else's checkout.
	_ = x.sessions.Set(ctx, sessionID, session.KeyOrderSecret, order.Secret)

	switch {
	case resp.Approved():
		// Fulfillment runs before the local transition. The charge went
		// through, so on a lock timeout the payment stays open and
		// reconciliation retries fulfillment later.
		if err := x.confirmer.Confirm(ctx, order.ID); err != nil {
			if errors.Is(err, fulfillment.ErrCapacityExceeded) {
				x.failPayment(payment, raw, err)
				return "", payment, ErrPaymentFailed
			}
			_ = x.payments.UpdateStatus(payment.ID, models.PaymentStatusPending)
			payment.Status = models.PaymentStatusPending
			return "", payment, err
		}

		if err := x.payments.UpdateStatus(payment.ID, models.PaymentStatusConfirmed); err != nil {
			return "", payment, err
		}
		payment.Status = models.PaymentStatusConfirmed
		_ = x.payments.CreateEvent(&models.PaymentEvent{
			PaymentID: payment.ID,
			TenantID:  payment.TenantID,
			EventType: models.EventPaymentPaid,
			Detail:    resp.Status,
		})

		q := url.Values{}
		q.Set("paid", "yes")
		return x.builder.Resolve(Internal("/order/"+order.Code+"/status", q)), payment, nil

	case resp.Links.Checkout != nil && resp.Links.Checkout.Href != "":
		href := resp.Links.Checkout.Href
		if iframe {
			return x.builder.Resolve(SignedExternal(href)), payment, nil
		}
		return href, payment, nil
	}

	// No approval codes and no checkout link: a business decline.
	x.failPayment(payment, raw, fmt.Errorf("gateway declined: result=%d responseCode=%d", resp.Result, resp.ResponseCode))
	return "", payment, ErrPaymentFailed
}

func (x *Executor) buildRequest(ctx context.Context, sessionID string, order *models.Order, payment *models.Payment, settings *Settings, cred *models.Credential, method string) (*gateway.CreatePaymentRequest, error) {
	items, err := x.orders.Items(order.ID)
	if err != nil {
		return nil, err
	}
	lineItems := make([]gateway.LineItem, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, gateway.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	var card *gateway.CardFields
	if raw, err := x.sessions.Get(ctx, sessionID, session.KeyCardFields); err == nil && raw != "" {
		var cf gateway.CardFields
		if err := json.Unmarshal([]byte(raw), &cf); err == nil {
			card = &cf
		}
	}

	nonce, err := x.builder.FingerprintNonce(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req := &gateway.CreatePaymentRequest{
		Amount:      gateway.Amount{Currency: order.Currency, Value: order.Total},
		Description: fmt.Sprintf("Order %s-%d", strings.ToUpper(order.Code), payment.ID),
		RedirectURL: fmt.Sprintf("%s/pay/return/%s/%s/%d", x.publicURL, order.Code, OrderHash(order.Secret), payment.ID),
		WebhookURL:  fmt.Sprintf("%s/pay/webhook/%d", x.publicURL, payment.ID),
		Locale:      localeFor(order.Locale),
		Method:      method,
		Metadata: map[string]string{
			"tenant": order.TenantID,
			"order":  order.Code,
		},
		Login:               settings.Login,
		PrivateKey:          settings.PrivateKey,
		APISecret:           settings.APISecret,
		OrgID:               settings.OrgID,
		Card:                card,
		LineItems:           lineItems,
		DeviceFingerprintID: nonce,
	}
	if cred != nil && cred.AccessToken != "" {
		req.ProfileID = cred.ProfileID
		req.Testmode = settings.Endpoint == "test"
	}
	return req, nil
}

// failPayment marks the attempt failed and persists whatever the gateway
// sent back, or a synthetic error blob when the body is not JSON.
func (x *Executor) failPayment(payment *models.Payment, raw []byte, cause error) {
	info := string(raw)
	if !json.Valid(raw) || len(raw) == 0 {
		blob, _ := json.Marshal(map[string]interface{}{
			"error":  true,
			"detail": string(raw),
		})
		info = string(blob)
	}

	_ = x.payments.UpdateInfo(payment.ID, info)
	_ = x.payments.UpdateStatus(payment.ID, models.PaymentStatusFailed)
	payment.Info = info
	payment.Status = models.PaymentStatusFailed

	_ = x.payments.CreateEvent(&models.PaymentEvent{
		PaymentID: payment.ID,
		TenantID:  payment.TenantID,
		EventType: models.EventPaymentFailed,
		Detail:    cause.Error(),
	})

	x.logger.Error("payment creation failed",
		zap.Uint("payment_id", payment.ID),
		zap.String("tenant_id", payment.TenantID),
		zap.Error(cause))
}

// ExecuteRefund asks the gateway to refund part of a confirmed payment
// and records the local refund row from the response.
func (x *Executor) ExecuteRefund(ctx context.Context, payment *models.Payment, amount gateway.Amount) error {
	if !payment.RemoteID.Valid || payment.RemoteID.String == "" {
		return fmt.Errorf("payment %d has no remote id", payment.ID)
	}

	settings, err := ResolveSettings(x.settings, payment.TenantID)
	if err != nil {
		return err
	}
	cred, _ := x.creds.FindByTenant(payment.TenantID)
	auth := AuthFor(cred, settings)

	ref, raw, err := x.gw.CreateRefund(ctx, auth, payment.RemoteID.String, amount)
	if err != nil {
		x.logger.Error("refund creation failed",
			zap.Uint("payment_id", payment.ID),
			zap.ByteString("body", raw),
			zap.Error(err))
		return err
	}

	if err := x.payments.CreateRefund(&models.Refund{
		PaymentID: payment.ID,
		RemoteID:  ref.ID,
		Amount:    ref.Amount.Value,
		Currency:  ref.Amount.Currency,
		Origin:    models.RefundOriginRefund,
		Info:      string(raw),
	}); err != nil {
		return err
	}

	return x.payments.CreateEvent(&models.PaymentEvent{
		PaymentID: payment.ID,
		TenantID:  payment.TenantID,
		EventType: models.EventRefundRecorded,
		Detail:    ref.ID,
	})
}

// Detail keys that carry no personal data and survive shredding.
var shredSafeKeys = map[string]bool{
	"bitcoinAmount": true,
}

// ShredPaymentInfo blanks sensitive detail values in the persisted
// snapshot once the payment data retention period ends.
func (x *Executor) ShredPaymentInfo(payment *models.Payment) error {
	if payment.Info == "" {
		return nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(payment.Info), &data); err != nil {
		return err
	}
	if details, ok := data["details"].(map[string]interface{}); ok {
		for k := range details {
			if shredSafeKeys[k] {
				continue
			}
			details[k] = "█"
		}
	}
	data["_shredded"] = true

	blob, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := x.payments.UpdateInfo(payment.ID, string(blob)); err != nil {
		return err
	}
	payment.Info = string(blob)
	return nil
}
