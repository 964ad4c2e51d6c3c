package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qpaygate/internal/gateway"
	"qpaygate/internal/models"
	"qpaygate/internal/session"
)

type fakeOAuthClient struct {
	exchangeErr error
	exchanged   []string
}

func (f *fakeOAuthClient) AuthorizeURL(redirectURI, state string) string {
	return "https://auth.example.com/oauth2/authorize?redirect_uri=" +
		url.QueryEscape(redirectURI) + "&state=" + state
}

func (f *fakeOAuthClient) ExchangeCode(_ context.Context, code, _ string) (*gateway.Token, error) {
	f.exchanged = append(f.exchanged, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &gateway.Token{AccessToken: "at_1", RefreshToken: "rt_1", ExpiresIn: 3600}, nil
}

func (f *fakeOAuthClient) GetOrganization(context.Context, gateway.Auth) (*gateway.Organization, error) {
	return &gateway.Organization{ID: "org_1", Name: "Demo Org"}, nil
}

func (f *fakeOAuthClient) ListProfiles(context.Context, gateway.Auth) ([]gateway.Profile, error) {
	return []gateway.Profile{{ID: "pfl_1", Name: "Shop"}}, nil
}

type fakeCredWriter struct {
	saved   *models.Credential
	cleared []string
}

func (f *fakeCredWriter) FindByTenant(string) (*models.Credential, error) {
	return nil, errors.New("not found")
}
func (f *fakeCredWriter) Save(c *models.Credential) error { f.saved = c; return nil }
func (f *fakeCredWriter) ClearOAuth(tenantID string) error {
	f.cleared = append(f.cleared, tenantID)
	return nil
}

type oauthFixture struct {
	h        *OAuthHandler
	gw       *fakeOAuthClient
	creds    *fakeCredWriter
	sessions session.Store
}

func newOAuthFixture(t *testing.T) *oauthFixture {
	t.Helper()
	sessions, err := session.NewStore("", "", 0, 0)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	gw := &fakeOAuthClient{}
	creds := &fakeCredWriter{}
	return &oauthFixture{
		h:        NewOAuthHandler(gw, creds, sessions, "https://shop.example.com", zap.NewNop()),
		gw:       gw,
		creds:    creds,
		sessions: sessions,
	}
}

func TestOAuthStartStoresStateAndRedirects(t *testing.T) {
	fx := newOAuthFixture(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/connect/t1/start", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "sess-1"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("tenant")
	c.SetParamValues("t1")

	if err := fx.h.Start(c); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("code = %d, want 302", rec.Code)
	}

	state, _ := fx.sessions.Get(context.Background(), "sess-1", session.KeyOAuthState)
	if state == "" {
		t.Fatal("state not stored in session")
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "state="+state) {
		t.Fatalf("location %q missing state", loc)
	}
	tenant, _ := fx.sessions.Get(context.Background(), "sess-1", session.KeyOAuthTenant)
	if tenant != "t1" {
		t.Fatalf("tenant = %q", tenant)
	}
}

func oauthReturnContext(e *echo.Echo, query string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/connect/return?"+query, nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "sess-1"})
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func seedOAuthSession(t *testing.T, fx *oauthFixture, state string) {
	t.Helper()
	ctx := context.Background()
	if err := fx.sessions.Set(ctx, "sess-1", session.KeyOAuthState, state); err != nil {
		t.Fatal(err)
	}
	if err := fx.sessions.Set(ctx, "sess-1", session.KeyOAuthTenant, "t1"); err != nil {
		t.Fatal(err)
	}
}

func TestOAuthReturnSavesCredential(t *testing.T) {
	fx := newOAuthFixture(t)
	seedOAuthSession(t, fx, "st_1")
	e := echo.New()

	c, rec := oauthReturnContext(e, "state=st_1&code=auth_code")
	if err := fx.h.Return(c); err != nil {
		t.Fatalf("Return: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}

	saved := fx.creds.saved
	if saved == nil {
		t.Fatal("credential not saved")
	}
	if saved.TenantID != "t1" || saved.AccessToken != "at_1" || saved.RefreshToken != "rt_1" {
		t.Fatalf("saved = %+v", saved)
	}
	if !saved.Enabled || saved.OrgName != "Demo Org" || saved.ProfileID != "pfl_1" {
		t.Fatalf("saved = %+v", saved)
	}

	// One-time state: the session keys are gone after completion.
	if state, _ := fx.sessions.Get(context.Background(), "sess-1", session.KeyOAuthState); state != "" {
		t.Fatalf("state still present: %q", state)
	}
}

func TestOAuthReturnRejectsStateMismatch(t *testing.T) {
	fx := newOAuthFixture(t)
	seedOAuthSession(t, fx, "st_1")
	e := echo.New()

	c, rec := oauthReturnContext(e, "state=st_evil&code=auth_code")
	if err := fx.h.Return(c); err != nil {
		t.Fatalf("Return: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
	if len(fx.gw.exchanged) != 0 {
		t.Fatal("code exchanged despite state mismatch")
	}
}

func TestOAuthReturnEmptyCodeIsCanceled(t *testing.T) {
	fx := newOAuthFixture(t)
	seedOAuthSession(t, fx, "st_1")
	e := echo.New()

	c, rec := oauthReturnContext(e, "state=st_1")
	if err := fx.h.Return(c); err != nil {
		t.Fatalf("Return: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "not granted") {
		t.Fatalf("code = %d body = %q", rec.Code, rec.Body.String())
	}
	if fx.creds.saved != nil {
		t.Fatal("credential saved despite canceled flow")
	}
}

func TestOAuthDisconnect(t *testing.T) {
	fx := newOAuthFixture(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/connect/t1/disconnect", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("tenant")
	c.SetParamValues("t1")

	if err := fx.h.Disconnect(c); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if len(fx.creds.cleared) != 1 || fx.creds.cleared[0] != "t1" {
		t.Fatalf("cleared = %v", fx.creds.cleared)
	}
}
