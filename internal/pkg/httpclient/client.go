package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for calls to the payment gateway and the OAuth
// token endpoint. Unlike a bare resty client it always surfaces the
// response status code, since non-2xx gateway bodies still need to be
// persisted as payment info.
type Client struct {
	r *resty.Client
}

// New creates a new HTTP client with sensible defaults.
func New() *Client {
	r := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{r: r}
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// WithHeader sets a custom header on every request.
func (c *Client) WithHeader(key, value string) *Client {
	c.r.SetHeader(key, value)
	return c
}

// Get sends a GET request with a bearer token and returns the body and
// status code.
func (c *Client) Get(ctx context.Context, url, bearer string) ([]byte, int, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		SetAuthToken(bearer).
		Get(url)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body(), resp.StatusCode(), nil
}

// Post sends a POST request with a JSON body and a bearer token.
func (c *Client) Post(ctx context.Context, url, bearer string, body interface{}) ([]byte, int, error) {
	req := c.r.R().
		SetContext(ctx).
		SetAuthToken(bearer).
		SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(url)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body(), resp.StatusCode(), nil
}

// PostForm sends a POST request with form data and HTTP basic auth, the
// shape the OAuth token endpoint expects.
func (c *Client) PostForm(ctx context.Context, url, user, pass string, data map[string]string) ([]byte, int, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		SetBasicAuth(user, pass).
		SetFormData(data).
		Post(url)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body(), resp.StatusCode(), nil
}
