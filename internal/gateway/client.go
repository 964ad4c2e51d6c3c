package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qpaygate/internal/config"
	"qpaygate/internal/pkg/httpclient"
)

// ErrUnavailable covers transport failures and non-2xx responses from
// the gateway. Callers abort the current attempt and surface a retryable
// message; no local state transition is applied on top of it.
var ErrUnavailable = errors.New("gateway: unavailable")

// Auth selects the bearer credential for one tenant's calls: the OAuth
// access token when the tenant is connected, otherwise its static API
// key.
type Auth struct {
	Bearer   string
	Testmode bool
}

// Client is the typed REST client for the payment gateway.
type Client struct {
	http         *httpclient.Client
	baseURL      string
	authBaseURL  string
	clientID     string
	clientSecret string
}

// NewClient builds a gateway client from config.
func NewClient(cfg *config.GatewayConfig) *Client {
	return &Client{
		http:         httpclient.New().WithTimeout(30 * time.Second),
		baseURL:      cfg.APIBaseURL,
		authBaseURL:  cfg.AuthBaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

func (c *Client) url(auth Auth, path string) string {
	u := c.baseURL + path
	if auth.Testmode {
		u += "?testmode=true"
	}
	return u
}

// CreatePayment posts a new payment. The raw response body is returned
// alongside the decoded payment so callers can persist it as the info
// snapshot even when the business outcome is a decline.
func (c *Client) CreatePayment(ctx context.Context, auth Auth, req *CreatePaymentRequest) (*Payment, []byte, error) {
	body, status, err := c.http.Post(ctx, c.url(auth, "/payments"), auth.Bearer, req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create payment: %v", ErrUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, body, fmt.Errorf("%w: create payment: status %d", ErrUnavailable, status)
	}

	var p Payment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, body, fmt.Errorf("%w: create payment: decode: %v", ErrUnavailable, err)
	}
	return &p, body, nil
}

// GetPayment fetches the authoritative remote state of a payment.
func (c *Client) GetPayment(ctx context.Context, auth Auth, id string) (*Payment, []byte, error) {
	body, status, err := c.http.Get(ctx, c.url(auth, "/payments/"+id), auth.Bearer)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: get payment %s: %v", ErrUnavailable, id, err)
	}
	if status < 200 || status >= 300 {
		return nil, body, fmt.Errorf("%w: get payment %s: status %d", ErrUnavailable, id, status)
	}

	var p Payment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, body, fmt.Errorf("%w: get payment %s: decode: %v", ErrUnavailable, id, err)
	}
	return &p, body, nil
}

// ListRefunds fetches all refunds of a payment.
func (c *Client) ListRefunds(ctx context.Context, auth Auth, paymentID string) ([]Refund, error) {
	body, status, err := c.http.Get(ctx, c.url(auth, "/payments/"+paymentID+"/refunds"), auth.Bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list refunds: %v", ErrUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: list refunds: status %d", ErrUnavailable, status)
	}

	var resp struct {
		Embedded struct {
			Refunds []Refund `json:"refunds"`
		} `json:"_embedded"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: list refunds: decode: %v", ErrUnavailable, err)
	}
	return resp.Embedded.Refunds, nil
}

// ListChargebacks fetches all chargebacks of a payment.
func (c *Client) ListChargebacks(ctx context.Context, auth Auth, paymentID string) ([]Chargeback, error) {
	body, status, err := c.http.Get(ctx, c.url(auth, "/payments/"+paymentID+"/chargebacks"), auth.Bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list chargebacks: %v", ErrUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: list chargebacks: status %d", ErrUnavailable, status)
	}

	var resp struct {
		Embedded struct {
			Chargebacks []Chargeback `json:"chargebacks"`
		} `json:"_embedded"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: list chargebacks: decode: %v", ErrUnavailable, err)
	}
	return resp.Embedded.Chargebacks, nil
}

// CreateRefund asks the gateway to refund (part of) a payment.
func (c *Client) CreateRefund(ctx context.Context, auth Auth, paymentID string, amount Amount) (*Refund, []byte, error) {
	req := map[string]interface{}{"amount": amount}
	if auth.Testmode {
		req["testmode"] = true
	}
	body, status, err := c.http.Post(ctx, c.baseURL+"/payments/"+paymentID+"/refunds", auth.Bearer, req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create refund: %v", ErrUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, body, fmt.Errorf("%w: create refund: status %d", ErrUnavailable, status)
	}

	var ref Refund
	if err := json.Unmarshal(body, &ref); err != nil {
		return nil, body, fmt.Errorf("%w: create refund: decode: %v", ErrUnavailable, err)
	}
	return &ref, body, nil
}

// ExchangeCode trades an authorization code for a token set.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	return c.tokenRequest(ctx, map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": redirectURI,
	})
}

// RefreshToken trades a refresh token for a new token set.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	return c.tokenRequest(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
}

func (c *Client) tokenRequest(ctx context.Context, form map[string]string) (*Token, error) {
	body, status, err := c.http.PostForm(ctx, c.authBaseURL+"/oauth2/tokens", c.clientID, c.clientSecret, form)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %v", ErrUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("token request rejected: status %d: %s", status, body)
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("token request: decode: %w", err)
	}
	return &tok, nil
}

// GetOrganization fetches the connected organization.
func (c *Client) GetOrganization(ctx context.Context, auth Auth) (*Organization, error) {
	body, status, err := c.http.Get(ctx, c.baseURL+"/organizations/me", auth.Bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: get organization: %v", ErrUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: get organization: status %d", ErrUnavailable, status)
	}

	var org Organization
	if err := json.Unmarshal(body, &org); err != nil {
		return nil, fmt.Errorf("%w: get organization: decode: %v", ErrUnavailable, err)
	}
	return &org, nil
}

// ListProfiles fetches all payment profiles, following pagination links.
func (c *Client) ListProfiles(ctx context.Context, auth Auth) ([]Profile, error) {
	var profiles []Profile
	next := c.baseURL + "/profiles"

	for next != "" {
		body, status, err := c.http.Get(ctx, next, auth.Bearer)
		if err != nil {
			return nil, fmt.Errorf("%w: list profiles: %v", ErrUnavailable, err)
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("%w: list profiles: status %d", ErrUnavailable, status)
		}

		var page struct {
			Embedded struct {
				Profiles []Profile `json:"profiles"`
			} `json:"_embedded"`
			Links Links `json:"_links"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: list profiles: decode: %v", ErrUnavailable, err)
		}
		profiles = append(profiles, page.Embedded.Profiles...)

		next = ""
		if page.Links.Next != nil {
			next = page.Links.Next.Href
		}
	}
	return profiles, nil
}

// AuthorizeURL builds the user-facing OAuth consent URL for the connect
// flow.
func (c *Client) AuthorizeURL(redirectURI, state string) string {
	return fmt.Sprintf(
		"%s/oauth2/authorize?client_id=%s&redirect_uri=%s&state=%s"+
			"&scope=payments.read+payments.write+refunds.read+refunds.write+profiles.read+organizations.read"+
			"&response_type=code&approval_prompt=auto",
		c.authBaseURL, c.clientID, redirectURI, state,
	)
}
