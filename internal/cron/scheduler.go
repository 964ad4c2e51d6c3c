package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"qpaygate/internal/checkout"
	"qpaygate/internal/config"
	"qpaygate/internal/gateway"
	"qpaygate/internal/models"
)

// TokenRefresher is the slice of the gateway client the refresh job uses.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*gateway.Token, error)
}

// CredentialStore is the slice of the credential repository the jobs use.
type CredentialStore interface {
	ListExpiring(deadline time.Time) ([]models.Credential, error)
	FanOutTokens(oldRefreshToken, accessToken, refreshToken string, expiresAt int64) (int64, error)
	Disable(tenantID string) error
	FindByTenant(tenantID string) (*models.Credential, error)
}

// PaymentSource is the slice of the payment repository the jobs use.
type PaymentSource interface {
	ListStaleOpen(limit int) ([]models.Payment, error)
	CreateEvent(ev *models.PaymentEvent) error
}

// ReconcileFunc pulls the remote payment state and applies it locally.
type ReconcileFunc func(ctx context.Context, payment *models.Payment, auth gateway.Auth, remoteID string) error

// Scheduler manages the background jobs: OAuth token refresh and the
// stale-payment reconcile sweep.
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	logger    *zap.Logger
	creds     CredentialStore
	payments  PaymentSource
	settings  checkout.SettingsStore
	gw        TokenRefresher
	reconcile ReconcileFunc
	now       func() time.Time
}

// New creates the cron scheduler.
func New(
	cfg *config.Config,
	creds CredentialStore,
	payments PaymentSource,
	settings checkout.SettingsStore,
	gw TokenRefresher,
	reconcile ReconcileFunc,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		cfg:       cfg,
		logger:    logger,
		creds:     creds,
		payments:  payments,
		settings:  settings,
		gw:        gw,
		reconcile: reconcile,
		now:       time.Now,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	s.cron.AddFunc(s.cfg.Refresh.Spec, func() {
		s.logger.Debug("Running: refresh gateway tokens")
		s.runJob("refresh tokens", s.RefreshTokens)
	})

	s.cron.AddFunc(s.cfg.Refresh.SweepSpec, func() {
		s.logger.Debug("Running: sweep stale payments")
		s.runJob("sweep stale payments", s.SweepStalePayments)
	})

	s.cron.Start()
}

// Stop stops the scheduler. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runJob(name string, job func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cron job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := job(ctx); err != nil {
		s.logger.Error("cron job failed", zap.String("job", name), zap.Error(err))
	}
}

// RefreshTokens renews OAuth access tokens that expire within the
// configured lookahead window. Tenants connected to the same gateway
// account share a refresh token; the token is exchanged once per run and
// the result fanned out to every row that held the old one.
func (s *Scheduler) RefreshTokens(ctx context.Context) error {
	now := s.now()
	deadline := now.Add(s.cfg.Refresh.Lookahead)

	creds, err := s.creds.ListExpiring(deadline)
	if err != nil {
		return err
	}

	refreshed := make(map[string]bool, len(creds))
	for i := range creds {
		cred := &creds[i]
		if refreshed[cred.RefreshToken] {
			continue
		}
		refreshed[cred.RefreshToken] = true

		token, err := s.gw.RefreshToken(ctx, cred.RefreshToken)
		if err != nil {
			s.logger.Warn("token refresh failed",
				zap.String("tenant_id", cred.TenantID),
				zap.Error(err))
			// Only give up once the token is actually expired and there
			// is no static API key to fall back to.
			if cred.Expired(now) && cred.APIKey == "" {
				if err := s.creds.Disable(cred.TenantID); err != nil {
					s.logger.Error("disable credential failed",
						zap.String("tenant_id", cred.TenantID), zap.Error(err))
					continue
				}
				_ = s.payments.CreateEvent(&models.PaymentEvent{
					TenantID:  cred.TenantID,
					EventType: models.EventCredentialDisabled,
					Detail:    "token refresh failed past expiry",
				})
				s.logger.Error("credential disabled after failed refresh",
					zap.String("tenant_id", cred.TenantID))
			}
			continue
		}

		updated, err := s.creds.FanOutTokens(
			cred.RefreshToken,
			token.AccessToken,
			token.RefreshToken,
			now.Unix()+token.ExpiresIn,
		)
		if err != nil {
			s.logger.Error("token fan-out failed",
				zap.String("tenant_id", cred.TenantID), zap.Error(err))
			continue
		}
		s.logger.Info("gateway tokens refreshed",
			zap.String("tenant_id", cred.TenantID),
			zap.Int64("rows", updated))
	}
	return nil
}

// SweepStalePayments reconciles open payments whose webhook may have
// been missed.
func (s *Scheduler) SweepStalePayments(ctx context.Context) error {
	payments, err := s.payments.ListStaleOpen(100)
	if err != nil {
		return err
	}

	for i := range payments {
		p := &payments[i]

		settings, err := checkout.ResolveSettings(s.settings, p.TenantID)
		if err != nil {
			settings = nil
		}
		cred, _ := s.creds.FindByTenant(p.TenantID)
		auth := checkout.AuthFor(cred, settings)

		if err := s.reconcile(ctx, p, auth, p.RemoteID.String); err != nil {
			s.logger.Warn("sweep reconcile failed",
				zap.Uint("payment_id", p.ID),
				zap.Error(err))
		}
	}
	return nil
}
