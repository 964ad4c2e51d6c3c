package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func callAPIAuth(apiKey, token string) (*httptest.ResponseRecorder, bool) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/payments/1", nil)
	if token != "" {
		req.Header.Set("Token", token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	handler := APIAuth(apiKey)(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	_ = handler(c)
	return rec, reached
}

func TestAPIAuth(t *testing.T) {
	cases := []struct {
		name    string
		apiKey  string
		token   string
		want    int
		reached bool
	}{
		{"valid token", "secret", "secret", http.StatusOK, true},
		{"wrong token", "secret", "nope", http.StatusUnauthorized, false},
		{"missing token", "secret", "", http.StatusUnauthorized, false},
		{"unconfigured key", "", "anything", http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, reached := callAPIAuth(tc.apiKey, tc.token)
			if rec.Code != tc.want {
				t.Fatalf("code = %d, want %d", rec.Code, tc.want)
			}
			if reached != tc.reached {
				t.Fatalf("handler reached = %v, want %v", reached, tc.reached)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodOptions, "/api/payments/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := CORS()(func(c echo.Context) error {
		t.Fatal("next handler ran on preflight")
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("CORS: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS headers")
	}
}
