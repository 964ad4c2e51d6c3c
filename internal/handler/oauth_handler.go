package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qpaygate/internal/gateway"
	"qpaygate/internal/models"
	"qpaygate/internal/session"
)

// OAuthClient is the slice of the gateway client the connect flow uses.
type OAuthClient interface {
	AuthorizeURL(redirectURI, state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (*gateway.Token, error)
	GetOrganization(ctx context.Context, auth gateway.Auth) (*gateway.Organization, error)
	ListProfiles(ctx context.Context, auth gateway.Auth) ([]gateway.Profile, error)
}

// CredentialWriter persists per-tenant gateway credentials.
type CredentialWriter interface {
	FindByTenant(tenantID string) (*models.Credential, error)
	Save(c *models.Credential) error
	ClearOAuth(tenantID string) error
}

// OAuthHandler drives the connect flow that links a tenant to a gateway
// account without a manually provisioned API key.
type OAuthHandler struct {
	gw        OAuthClient
	creds     CredentialWriter
	sessions  session.Store
	publicURL string
	logger    *zap.Logger
}

func NewOAuthHandler(gw OAuthClient, creds CredentialWriter, sessions session.Store, publicURL string, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		gw:        gw,
		creds:     creds,
		sessions:  sessions,
		publicURL: publicURL,
		logger:    logger,
	}
}

func (h *OAuthHandler) redirectURI() string {
	return h.publicURL + "/connect/return"
}

// Start begins the connect flow: GET /connect/:tenant/start
func (h *OAuthHandler) Start(c echo.Context) error {
	tenant := c.Param("tenant")
	if tenant == "" {
		return c.String(http.StatusBadRequest, "missing tenant")
	}

	state := uuid.NewString()
	sid := sessionID(c)
	ctx := c.Request().Context()
	if err := h.sessions.Set(ctx, sid, session.KeyOAuthState, state); err != nil {
		return err
	}
	if err := h.sessions.Set(ctx, sid, session.KeyOAuthTenant, tenant); err != nil {
		return err
	}

	return c.Redirect(http.StatusFound, h.gw.AuthorizeURL(h.redirectURI(), state))
}

// Return completes the connect flow: GET /connect/return?code=…&state=…
func (h *OAuthHandler) Return(c echo.Context) error {
	sid := sessionID(c)
	ctx := c.Request().Context()

	wantState, err := h.sessions.Get(ctx, sid, session.KeyOAuthState)
	if err != nil || wantState == "" {
		return renderPage(c, http.StatusBadRequest, "Connect failed", "Your session expired, please start over.", "", "")
	}
	if subtle.ConstantTimeCompare([]byte(wantState), []byte(c.QueryParam("state"))) != 1 {
		return renderPage(c, http.StatusBadRequest, "Connect failed", "State mismatch, please start over.", "", "")
	}
	tenant, err := h.sessions.Get(ctx, sid, session.KeyOAuthTenant)
	if err != nil || tenant == "" {
		return renderPage(c, http.StatusBadRequest, "Connect failed", "Your session expired, please start over.", "", "")
	}

	code := c.QueryParam("code")
	if code == "" {
		// Declined on the provider side.
		return renderPage(c, http.StatusOK, "Connect canceled", "The authorization was not granted.", "", "")
	}

	token, err := h.gw.ExchangeCode(ctx, code, h.redirectURI())
	if err != nil {
		h.logger.Error("oauth code exchange failed", zap.String("tenant_id", tenant), zap.Error(err))
		return renderPage(c, http.StatusBadGateway, "Connect failed", "The payment provider could not be reached, please try again.", "", "")
	}

	cred, err := h.creds.FindByTenant(tenant)
	if err != nil {
		cred = &models.Credential{TenantID: tenant}
	}
	cred.AccessToken = token.AccessToken
	cred.RefreshToken = token.RefreshToken
	cred.ExpiresAt = time.Now().Unix() + token.ExpiresIn
	cred.Enabled = true

	auth := gateway.Auth{Bearer: token.AccessToken}
	if org, err := h.gw.GetOrganization(ctx, auth); err == nil {
		cred.OrgName = org.Name
	} else {
		h.logger.Warn("could not load organization", zap.String("tenant_id", tenant), zap.Error(err))
	}
	if profiles, err := h.gw.ListProfiles(ctx, auth); err == nil && len(profiles) > 0 {
		cred.ProfileID = profiles[0].ID
	} else if err != nil {
		h.logger.Warn("could not load profiles", zap.String("tenant_id", tenant), zap.Error(err))
	}

	if err := h.creds.Save(cred); err != nil {
		return err
	}

	_ = h.sessions.Delete(ctx, sid, session.KeyOAuthState)
	_ = h.sessions.Delete(ctx, sid, session.KeyOAuthTenant)

	return renderPage(c, http.StatusOK, "Connected", "The gateway account is now linked.", "", "")
}

// Disconnect drops the OAuth grant: POST /connect/:tenant/disconnect
//
// A static API key, when configured, stays in place.
func (h *OAuthHandler) Disconnect(c echo.Context) error {
	tenant := c.Param("tenant")
	if tenant == "" {
		return c.String(http.StatusBadRequest, "missing tenant")
	}
	if err := h.creds.ClearOAuth(tenant); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "disconnected"})
}
