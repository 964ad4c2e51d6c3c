package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"qpaygate/internal/fulfillment"
	"qpaygate/internal/gateway"
	"qpaygate/internal/lock"
	"qpaygate/internal/models"
)

// GatewayAPI is the slice of the gateway client the engine consumes.
type GatewayAPI interface {
	GetPayment(ctx context.Context, auth gateway.Auth, id string) (*gateway.Payment, []byte, error)
	ListRefunds(ctx context.Context, auth gateway.Auth, paymentID string) ([]gateway.Refund, error)
	ListChargebacks(ctx context.Context, auth gateway.Auth, paymentID string) ([]gateway.Chargeback, error)
}

// PaymentStore is the slice of the payment repository the engine
// consumes.
type PaymentStore interface {
	UpdateInfo(id uint, info string) error
	UpdateStatus(id uint, status string) error
	SetRemoteID(id uint, remoteID string) error
	RefundRemoteIDs(paymentID uint) ([]string, error)
	CreateRefund(refund *models.Refund) error
	CreateEvent(ev *models.PaymentEvent) error
}

// Engine applies remote gateway state to local payment records: the
// status state machine plus refund and chargeback bookkeeping.
type Engine struct {
	gw        GatewayAPI
	payments  PaymentStore
	confirmer fulfillment.Confirmer
	locks     lock.Locker
	logger    *zap.Logger
}

func NewEngine(gw GatewayAPI, payments PaymentStore, confirmer fulfillment.Confirmer, locks lock.Locker, logger *zap.Logger) *Engine {
	return &Engine{
		gw:        gw,
		payments:  payments,
		confirmer: confirmer,
		locks:     locks,
		logger:    logger,
	}
}

// Reconcile fetches the authoritative remote state for remoteID and
// applies it to the local payment. The whole fetch/map/record sequence
// runs under a per-payment lock, and every step is idempotent: re-running
// with unchanged remote state produces no status change and no new refund
// records.
//
// The local record is left untouched when the remote fetch fails. The raw
// remote snapshot is always persisted before any status interpretation,
// so a later replay can recover the true state.
func (e *Engine) Reconcile(ctx context.Context, payment *models.Payment, auth gateway.Auth, remoteID string) error {
	release, err := e.locks.Acquire(ctx, fmt.Sprintf("payment:%d", payment.ID))
	if err != nil {
		return err
	}
	defer release()

	remote, raw, err := e.gw.GetPayment(ctx, auth, remoteID)
	if err != nil {
		return err
	}

	if err := e.payments.UpdateInfo(payment.ID, string(raw)); err != nil {
		return err
	}
	payment.Info = string(raw)

	if !payment.RemoteID.Valid || payment.RemoteID.String == "" {
		if err := e.payments.SetRemoteID(payment.ID, remote.ID); err != nil {
			return err
		}
		payment.RemoteID = sql.NullString{String: remote.ID, Valid: true}
	}

	switch payment.Status {
	case models.PaymentStatusCreated, models.PaymentStatusPending:
		return e.applyStatus(ctx, payment, remote)
	case models.PaymentStatusConfirmed:
		return e.recordExternalRefunds(ctx, payment, auth, remote)
	}

	// canceled / failed: terminal, snapshot only.
	return nil
}

func (e *Engine) applyStatus(ctx context.Context, payment *models.Payment, remote *gateway.Payment) error {
	switch remote.Status {
	case gateway.StatusCanceled:
		return e.transition(payment, models.PaymentStatusCanceled, models.EventPaymentCanceled, remote.Status)

	case gateway.StatusPending:
		if payment.Status != models.PaymentStatusCreated {
			return nil
		}
		if err := e.payments.UpdateStatus(payment.ID, models.PaymentStatusPending); err != nil {
			return err
		}
		payment.Status = models.PaymentStatusPending
		return nil

	case gateway.StatusExpired:
		return e.transition(payment, models.PaymentStatusCanceled, models.EventPaymentExpired, remote.Status)

	case gateway.StatusFailed:
		return e.transition(payment, models.PaymentStatusCanceled, models.EventPaymentFailed, remote.Status)

	case gateway.StatusPaid:
		// Fulfillment runs before the local transition. A lock timeout
		// leaves the payment open, so the webhook retry or the sweep
		// re-enters this branch and runs fulfillment again. Capacity
		// exhaustion is final: the money has moved, the payment stays
		// confirmed for manual reconciliation.
		err := e.confirmer.Confirm(ctx, payment.OrderID)
		if err != nil && !errors.Is(err, fulfillment.ErrCapacityExceeded) {
			return err
		}
		if terr := e.transition(payment, models.PaymentStatusConfirmed, models.EventPaymentPaid, remote.Status); terr != nil {
			return terr
		}
		return err
	}

	return nil
}

func (e *Engine) transition(payment *models.Payment, status, eventType, detail string) error {
	if err := e.payments.UpdateStatus(payment.ID, status); err != nil {
		return err
	}
	payment.Status = status

	e.logger.Info("payment status changed",
		zap.Uint("payment_id", payment.ID),
		zap.String("status", status),
		zap.String("remote_status", detail))

	return e.payments.CreateEvent(&models.PaymentEvent{
		PaymentID: payment.ID,
		TenantID:  payment.TenantID,
		EventType: eventType,
		Detail:    detail,
	})
}

// recordExternalRefunds appends refund records for remote refunds and
// chargebacks not seen before. Matching is purely by remote identifier,
// never by amount or position.
func (e *Engine) recordExternalRefunds(ctx context.Context, payment *models.Payment, auth gateway.Auth, remote *gateway.Payment) error {
	var refunds []gateway.Refund
	var chargebacks []gateway.Chargeback
	var err error

	if remote.AmountRefunded != nil && remote.AmountRefunded.Value != "" &&
		remote.AmountRefunded.Value != "0" && remote.AmountRefunded.Value != "0.00" &&
		remote.Status == gateway.StatusPaid {
		refunds, err = e.gw.ListRefunds(ctx, auth, remote.ID)
		if err != nil {
			return err
		}
	}
	if remote.Status == gateway.StatusPaid {
		chargebacks, err = e.gw.ListChargebacks(ctx, auth, remote.ID)
		if err != nil {
			return err
		}
	}
	if len(refunds) == 0 && len(chargebacks) == 0 {
		return nil
	}

	knownIDs, err := e.payments.RefundRemoteIDs(payment.ID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}

	for _, r := range refunds {
		// Failed remote refunds never materialize locally.
		if r.Status == gateway.StatusFailed || known[r.ID] {
			continue
		}
		if err := e.appendRefund(payment, r.ID, r.Amount, models.RefundOriginRefund, r); err != nil {
			return err
		}
		known[r.ID] = true
	}

	for _, cb := range chargebacks {
		if known[cb.ID] {
			continue
		}
		if err := e.appendRefund(payment, cb.ID, cb.Amount, models.RefundOriginChargeback, cb); err != nil {
			return err
		}
		known[cb.ID] = true
	}

	return nil
}

func (e *Engine) appendRefund(payment *models.Payment, remoteID string, amount gateway.Amount, origin string, snapshot interface{}) error {
	info, _ := json.Marshal(snapshot)

	if err := e.payments.CreateRefund(&models.Refund{
		PaymentID: payment.ID,
		RemoteID:  remoteID,
		Amount:    amount.Value,
		Currency:  amount.Currency,
		Origin:    origin,
		Info:      string(info),
	}); err != nil {
		return err
	}

	eventType := models.EventRefundRecorded
	if origin == models.RefundOriginChargeback {
		eventType = models.EventChargebackRecorded
	}

	e.logger.Info("external refund recorded",
		zap.Uint("payment_id", payment.ID),
		zap.String("remote_id", remoteID),
		zap.String("origin", origin),
		zap.String("amount", amount.Value))

	return e.payments.CreateEvent(&models.PaymentEvent{
		PaymentID: payment.ID,
		TenantID:  payment.TenantID,
		EventType: eventType,
		Detail:    remoteID,
	})
}
