package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qpaygate/internal/session"
	"qpaygate/internal/signer"
)

func newRedirectHandler(t *testing.T) (*RedirectHandler, *signer.Signer) {
	t.Helper()
	s := signer.New("redirect-test-secret")
	sessions, err := session.NewStore("", "", 0, 0)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewRedirectHandler(s, sessions, zap.NewNop()), s
}

func getContext(e *echo.Echo, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRedirectServesSignedURL(t *testing.T) {
	h, s := newRedirectHandler(t)
	e := echo.New()

	signed := s.Sign("https://pay.example.com/checkout/123")
	c, rec := getContext(e, "/pay/redirect?url="+url.QueryEscape(signed))
	if err := h.Redirect(c); err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "https://pay.example.com/checkout/123") {
		t.Fatalf("body missing target URL: %q", rec.Body.String())
	}
}

func TestRedirectRejectsUnsignedURL(t *testing.T) {
	h, _ := newRedirectHandler(t)
	e := echo.New()

	for _, raw := range []string{"", "https://evil.example.com", "x:y:z"} {
		c, rec := getContext(e, "/pay/redirect?url="+url.QueryEscape(raw))
		if err := h.Redirect(c); err != nil {
			t.Fatalf("Redirect(%q): %v", raw, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Redirect(%q): code = %d, want 400", raw, rec.Code)
		}
	}
}

func TestRedirectRejectsForeignSignature(t *testing.T) {
	h, _ := newRedirectHandler(t)
	e := echo.New()

	signed := signer.New("another-secret").Sign("https://pay.example.com/x")
	c, rec := getContext(e, "/pay/redirect?url="+url.QueryEscape(signed))
	if err := h.Redirect(c); err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

func TestFingerprintServesAllThreeURLs(t *testing.T) {
	h, s := newRedirectHandler(t)
	e := echo.New()

	q := url.Values{}
	q.Set("url_script", s.Sign("https://h.online-metrix.net/fp/tags.js?org_id=o1&session_id=s1"))
	q.Set("url_iframe", s.Sign("https://h.online-metrix.net/fp/tags?org_id=o1&session_id=s1"))
	q.Set("url_next", s.Sign("/pay/redirect?url=abc"))

	c, rec := getContext(e, "/pay/fingerprint?"+q.Encode())
	if err := h.Fingerprint(c); err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"tags.js", "<noscript>", `id="next"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q: %q", want, body)
		}
	}
}

func TestFingerprintRejectsSingleBadParameter(t *testing.T) {
	h, s := newRedirectHandler(t)
	e := echo.New()

	good := s.Sign("https://h.online-metrix.net/fp/tags.js")
	cases := []url.Values{
		{"url_script": {"plain"}, "url_iframe": {good}, "url_next": {good}},
		{"url_script": {good}, "url_iframe": {"plain"}, "url_next": {good}},
		{"url_script": {good}, "url_iframe": {good}, "url_next": {"plain"}},
	}
	for i, q := range cases {
		c, rec := getContext(e, "/pay/fingerprint?"+q.Encode())
		if err := h.Fingerprint(c); err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d: code = %d, want 400", i, rec.Code)
		}
	}
}
