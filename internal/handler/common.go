package handler

import (
	"crypto/rand"
	"encoding/hex"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

const sessionCookie = "checkout_session"

// sessionID returns the browser's checkout session id, minting a new
// cookie when none is present.
func sessionID(c echo.Context) string {
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; text-align: center; max-width: 420px; width: 100%; }
        h1 { color: #333; margin-bottom: 20px; font-size: 1.3em; }
        p { color: #666; margin-bottom: 10px; }
        a.button { display: inline-block; margin-top: 16px; padding: 10px 24px; background: #2563eb; color: #fff; border-radius: 6px; text-decoration: none; }
    </style>
</head>
<body>
    <div class="box">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
        {{if .Link}}<a class="button" href="{{.Link}}">{{.LinkText}}</a>{{end}}
    </div>
</body>
</html>`))

func renderPage(c echo.Context, status int, title, message, link, linkText string) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(status)
	return pageTemplate.Execute(c.Response().Writer, map[string]interface{}{
		"Title":    title,
		"Message":  message,
		"Link":     link,
		"LinkText": linkText,
	})
}
