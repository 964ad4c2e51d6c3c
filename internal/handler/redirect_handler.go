package handler

import (
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qpaygate/internal/session"
	"qpaygate/internal/signer"
)

// RedirectHandler serves the iframe break-out page and the device
// fingerprint page. Every URL parameter must carry a valid signature,
// otherwise the endpoint would be an open redirect.
type RedirectHandler struct {
	signer   *signer.Signer
	sessions session.Store
	logger   *zap.Logger
}

func NewRedirectHandler(s *signer.Signer, sessions session.Store, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{signer: s, sessions: sessions, logger: logger}
}

var redirectTemplate = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Redirecting…</title>
</head>
<body>
    <p>You are being redirected to the payment provider.
       <a href="{{.URL}}" id="link" target="_top">Continue</a></p>
    <script>
        try { window.top.location.href = document.getElementById("link").href; }
        catch (e) { window.location.href = document.getElementById("link").href; }
    </script>
</body>
</html>`))

// Redirect serves GET /pay/redirect?url=<signed>. It exists so that a
// checkout running inside an iframe can still navigate the full window
// to the external payment page.
func (h *RedirectHandler) Redirect(c echo.Context) error {
	target, err := h.signer.Verify(c.QueryParam("url"))
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid parameter")
	}

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return redirectTemplate.Execute(c.Response().Writer, map[string]string{"URL": target})
}

var fingerprintTemplate = template.Must(template.New("fingerprint").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>One moment…</title>
</head>
<body>
    <p>Preparing your payment…</p>
    <script src="{{.Script}}"></script>
    <noscript>
        <iframe style="width: 100px; height: 100px; border: 0; position: absolute; top: -5000px;" src="{{.Iframe}}"></iframe>
    </noscript>
    <a href="{{.Next}}" id="next">Continue</a>
    <script>
        window.setTimeout(function () {
            window.location.href = document.getElementById("next").href;
        }, 3000);
    </script>
</body>
</html>`))

// Fingerprint serves GET /pay/fingerprint. All three URL parameters are
// signed; a single bad signature rejects the whole request.
func (h *RedirectHandler) Fingerprint(c echo.Context) error {
	script, err := h.signer.Verify(c.QueryParam("url_script"))
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid parameter")
	}
	iframe, err := h.signer.Verify(c.QueryParam("url_iframe"))
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid parameter")
	}
	next, err := h.signer.Verify(c.QueryParam("url_next"))
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid parameter")
	}

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return fingerprintTemplate.Execute(c.Response().Writer, map[string]string{
		"Script": script,
		"Iframe": iframe,
		"Next":   next,
	})
}
