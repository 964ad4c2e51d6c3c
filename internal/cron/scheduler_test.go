package cron

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"qpaygate/internal/config"
	"qpaygate/internal/gateway"
	"qpaygate/internal/models"
)

type fakeCreds struct {
	expiring []models.Credential
	byTenant map[string]*models.Credential

	fanOuts  []string
	disabled []string
}

func (f *fakeCreds) ListExpiring(time.Time) ([]models.Credential, error) {
	return f.expiring, nil
}

func (f *fakeCreds) FanOutTokens(oldRefreshToken, _, _ string, _ int64) (int64, error) {
	f.fanOuts = append(f.fanOuts, oldRefreshToken)
	n := int64(0)
	for _, c := range f.expiring {
		if c.RefreshToken == oldRefreshToken {
			n++
		}
	}
	return n, nil
}

func (f *fakeCreds) Disable(tenantID string) error {
	f.disabled = append(f.disabled, tenantID)
	return nil
}

func (f *fakeCreds) FindByTenant(tenantID string) (*models.Credential, error) {
	if c, ok := f.byTenant[tenantID]; ok {
		return c, nil
	}
	return nil, errors.New("not found")
}

type fakePayments struct {
	stale  []models.Payment
	events []models.PaymentEvent
}

func (f *fakePayments) ListStaleOpen(int) ([]models.Payment, error) { return f.stale, nil }
func (f *fakePayments) CreateEvent(ev *models.PaymentEvent) error {
	f.events = append(f.events, *ev)
	return nil
}

type fakeRefresher struct {
	calls []string
	err   error
}

func (f *fakeRefresher) RefreshToken(_ context.Context, refreshToken string) (*gateway.Token, error) {
	f.calls = append(f.calls, refreshToken)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Token{
		AccessToken:  "at_new",
		RefreshToken: "rt_new",
		ExpiresIn:    3600,
	}, nil
}

type nopSettings struct{}

func (nopSettings) GetTenant(string, string) (string, error) { return "", nil }
func (nopSettings) GetGlobal(string) (string, error)         { return "", nil }

func testScheduler(creds *fakeCreds, payments *fakePayments, gw *fakeRefresher, rec ReconcileFunc) *Scheduler {
	cfg := &config.Config{}
	cfg.Refresh.Lookahead = 600 * time.Second
	s := New(cfg, creds, payments, nopSettings{}, gw, rec, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestRefreshSharedTokenOnlyOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creds := &fakeCreds{
		// Three tenants connected to the same gateway account, all
		// expiring within the lookahead window.
		expiring: []models.Credential{
			{TenantID: "t1", RefreshToken: "rt_shared", ExpiresAt: now.Unix() + 100, Enabled: true},
			{TenantID: "t2", RefreshToken: "rt_shared", ExpiresAt: now.Unix() + 100, Enabled: true},
			{TenantID: "t3", RefreshToken: "rt_shared", ExpiresAt: now.Unix() + 100, Enabled: true},
		},
	}
	gw := &fakeRefresher{}
	s := testScheduler(creds, &fakePayments{}, gw, nil)

	if err := s.RefreshTokens(context.Background()); err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}

	if len(gw.calls) != 1 || gw.calls[0] != "rt_shared" {
		t.Fatalf("refresh calls = %v, want exactly one for rt_shared", gw.calls)
	}
	if len(creds.fanOuts) != 1 || creds.fanOuts[0] != "rt_shared" {
		t.Fatalf("fan-outs = %v", creds.fanOuts)
	}
	if len(creds.disabled) != 0 {
		t.Fatalf("disabled = %v, want none", creds.disabled)
	}
}

func TestRefreshDistinctTokensRefreshSeparately(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creds := &fakeCreds{
		expiring: []models.Credential{
			{TenantID: "t1", RefreshToken: "rt_a", ExpiresAt: now.Unix() + 100, Enabled: true},
			{TenantID: "t2", RefreshToken: "rt_b", ExpiresAt: now.Unix() + 200, Enabled: true},
		},
	}
	gw := &fakeRefresher{}
	s := testScheduler(creds, &fakePayments{}, gw, nil)

	if err := s.RefreshTokens(context.Background()); err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if len(gw.calls) != 2 {
		t.Fatalf("refresh calls = %v, want two", gw.calls)
	}
}

func TestRefreshFailureBeforeExpiryKeepsCredential(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creds := &fakeCreds{
		expiring: []models.Credential{
			// Expires within the lookahead but is not yet expired.
			{TenantID: "t1", RefreshToken: "rt_a", ExpiresAt: now.Unix() + 100, Enabled: true},
		},
	}
	payments := &fakePayments{}
	gw := &fakeRefresher{err: gateway.ErrUnavailable}
	s := testScheduler(creds, payments, gw, nil)

	if err := s.RefreshTokens(context.Background()); err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if len(creds.disabled) != 0 {
		t.Fatalf("disabled = %v, want none while token still valid", creds.disabled)
	}
	if len(payments.events) != 0 {
		t.Fatalf("events = %v, want none", payments.events)
	}
}

func TestRefreshFailurePastExpiryDisablesCredential(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creds := &fakeCreds{
		expiring: []models.Credential{
			{TenantID: "t1", RefreshToken: "rt_dead", ExpiresAt: now.Unix() - 10, Enabled: true},
		},
	}
	payments := &fakePayments{}
	gw := &fakeRefresher{err: gateway.ErrUnavailable}
	s := testScheduler(creds, payments, gw, nil)

	if err := s.RefreshTokens(context.Background()); err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if len(creds.disabled) != 1 || creds.disabled[0] != "t1" {
		t.Fatalf("disabled = %v, want [t1]", creds.disabled)
	}
	if len(payments.events) != 1 || payments.events[0].EventType != models.EventCredentialDisabled {
		t.Fatalf("events = %v, want credential_disabled", payments.events)
	}
}

func TestRefreshFailurePastExpiryWithAPIKeyFallback(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creds := &fakeCreds{
		expiring: []models.Credential{
			{TenantID: "t1", RefreshToken: "rt_dead", ExpiresAt: now.Unix() - 10, APIKey: "key_x", Enabled: true},
		},
	}
	gw := &fakeRefresher{err: gateway.ErrUnavailable}
	s := testScheduler(creds, &fakePayments{}, gw, nil)

	if err := s.RefreshTokens(context.Background()); err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if len(creds.disabled) != 0 {
		t.Fatalf("disabled = %v, want none with api key fallback", creds.disabled)
	}
}

func TestSweepReconcilesEveryStalePayment(t *testing.T) {
	creds := &fakeCreds{
		byTenant: map[string]*models.Credential{
			"t1": {TenantID: "t1", AccessToken: "at_1", Enabled: true},
		},
	}
	payments := &fakePayments{
		stale: []models.Payment{
			{ID: 1, TenantID: "t1", Status: models.PaymentStatusPending, RemoteID: sql.NullString{String: "tr_1", Valid: true}},
			{ID: 2, TenantID: "t1", Status: models.PaymentStatusCreated, RemoteID: sql.NullString{String: "tr_2", Valid: true}},
		},
	}

	var seen []string
	var auths []gateway.Auth
	rec := func(_ context.Context, p *models.Payment, auth gateway.Auth, remoteID string) error {
		seen = append(seen, remoteID)
		auths = append(auths, auth)
		if p.ID == 2 {
			return gateway.ErrUnavailable
		}
		return nil
	}
	s := testScheduler(creds, payments, &fakeRefresher{}, rec)

	// A failing payment never stops the sweep.
	if err := s.SweepStalePayments(context.Background()); err != nil {
		t.Fatalf("SweepStalePayments: %v", err)
	}
	if len(seen) != 2 || seen[0] != "tr_1" || seen[1] != "tr_2" {
		t.Fatalf("reconciled = %v", seen)
	}
	if auths[0].Bearer != "at_1" {
		t.Fatalf("auth bearer = %q, want tenant access token", auths[0].Bearer)
	}
}
