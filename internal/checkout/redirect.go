package checkout

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/url"

	"qpaygate/internal/session"
	"qpaygate/internal/signer"
)

// RedirectTarget is either an internal route, which is statically known
// and needs no protection, or a genuinely external URL, which must never
// travel unsigned through a user-reachable query string.
type RedirectTarget struct {
	external bool
	path     string
	params   url.Values
	url      string
}

// Internal builds a target on one of this service's own routes.
func Internal(path string, params url.Values) RedirectTarget {
	return RedirectTarget{path: path, params: params}
}

// SignedExternal builds a target for an external destination; resolving
// it signs the URL and routes the browser through the redirect endpoint.
func SignedExternal(rawURL string) RedirectTarget {
	return RedirectTarget{external: true, url: rawURL}
}

// Builder composes the signed redirect chains used for device
// fingerprinting and safe cross-site navigation.
type Builder struct {
	signer          *signer.Signer
	sessions        session.Store
	publicURL       string
	fingerprintHost string
}

func NewBuilder(s *signer.Signer, sessions session.Store, publicURL, fingerprintHost string) *Builder {
	return &Builder{
		signer:          s,
		sessions:        sessions,
		publicURL:       publicURL,
		fingerprintHost: fingerprintHost,
	}
}

// Resolve turns a target into a browser-facing URL.
func (b *Builder) Resolve(t RedirectTarget) string {
	if !t.external {
		u := b.publicURL + t.path
		if len(t.params) > 0 {
			u += "?" + t.params.Encode()
		}
		return u
	}
	return b.publicURL + "/pay/redirect?url=" + url.QueryEscape(b.signer.Sign(t.url))
}

// FingerprintNonce returns the per-checkout-session nonce, creating and
// persisting it exactly once. The fingerprint vendor correlates browser
// signals by this value across all requests of one checkout, so it is
// never regenerated within a session.
func (b *Builder) FingerprintNonce(ctx context.Context, sessionID string) (string, error) {
	nonce, err := b.sessions.Get(ctx, sessionID, session.KeyFingerprintNonce)
	if err != nil {
		return "", err
	}
	if nonce != "" {
		return nonce, nil
	}

	nonce = randomToken(32)
	if err := b.sessions.Set(ctx, sessionID, session.KeyFingerprintNonce, nonce); err != nil {
		return "", err
	}
	return nonce, nil
}

// FingerprintURL builds the outbound URL that loads the vendor's
// fingerprinting script and hidden iframe, then navigates on to next.
// All three embedded destinations are individually signed; the receiving
// endpoint unsigns each and fails closed on any mismatch.
func (b *Builder) FingerprintURL(ctx context.Context, sessionID, orgID, next string) (string, error) {
	nonce, err := b.FingerprintNonce(ctx, sessionID)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("org_id", orgID)
	q.Set("session_id", nonce)
	scriptURL := b.fingerprintHost + "/fp/tags.js?" + q.Encode()
	iframeURL := b.fingerprintHost + "/fp/tags?" + q.Encode()

	out := url.Values{}
	out.Set("url_script", b.signer.Sign(scriptURL))
	out.Set("url_iframe", b.signer.Sign(iframeURL))
	out.Set("url_next", b.signer.Sign(next))
	return b.publicURL + "/pay/fingerprint?" + out.Encode(), nil
}

const tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomToken generates a random alphanumeric token of the given length.
func randomToken(length int) string {
	b := make([]byte, length)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(tokenCharset))))
		b[i] = tokenCharset[n.Int64()]
	}
	return string(b)
}
