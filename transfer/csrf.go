package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/moyoez/localstore-go/tool"
)

const (
	// CSRFHeader and CSRFField carry the anti-forgery token on the upload form post.
	CSRFHeader     = "X-CSRFToken"
	CSRFField      = "csrfmiddlewaretoken"
	CSRFCookieName = "csrftoken"

	DefaultTokenTTL = 30 * time.Minute
)

// TokenSource supplies the anti-forgery token. The token is passed through unmodified.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, e.g. from config or the -useCsrfToken flag. Empty disables the header.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// CookieTokenSource fetches a page of the file-manager and reads the csrftoken cookie.
// Tokens are cached per page for DefaultTokenTTL.
type CookieTokenSource struct {
	PageURL string
	Client  *http.Client
	cache   *ttlworker.Cache[string, string]
}

func NewCookieTokenSource(pageURL string, client *http.Client) *CookieTokenSource {
	if client == nil {
		client = tool.GetControlHttpClient()
	}
	return &CookieTokenSource{
		PageURL: pageURL,
		Client:  client,
		cache:   ttlworker.NewCache[string, string](DefaultTokenTTL),
	}
}

func (s *CookieTokenSource) Token(ctx context.Context) (string, error) {
	if token := s.cache.Get(s.PageURL); token != "" {
		return token, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.PageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %v", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch token page: %v", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close response body: %v", err)
		}
	}()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == CSRFCookieName && cookie.Value != "" {
			s.cache.Set(s.PageURL, cookie.Value)
			tool.DefaultLogger.Debugf("[CSRF] Token refreshed from %s", s.PageURL)
			return cookie.Value, nil
		}
	}
	return "", fmt.Errorf("no %s cookie in response from %s (%s)", CSRFCookieName, s.PageURL, resp.Status)
}

// Invalidate drops the cached token so the next upload fetches a fresh one.
func (s *CookieTokenSource) Invalidate() {
	s.cache.Delete(s.PageURL)
}
