package tool

import (
	"crypto/tls"
	"net/http"
	"time"
)

var (
	DefaultTimeout = 30 * time.Second
	// UploadHttpClient carries file bodies. No client timeout: a transfer runs until the
	// transport itself reports failure.
	UploadHttpClient *http.Client
	// ControlHttpClient is used for short requests such as fetching the CSRF page.
	ControlHttpClient *http.Client
)

func init() {
	UploadHttpClient = NewUploadHTTPClient()
	ControlHttpClient = NewHTTPClient()
}

// NewHTTPClient creates an HTTP client, skipping self-signed certificate verification in HTTPS mode.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: newTransport(),
	}
}

// NewUploadHTTPClient creates a client for multipart uploads. Redirects are not followed so a
// 302 answer to the form post is observed as-is.
func NewUploadHTTPClient() *http.Client {
	return &http.Client{
		Transport: newTransport(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
}

func GetUploadHttpClient() *http.Client {
	return UploadHttpClient
}

func GetControlHttpClient() *http.Client {
	return ControlHttpClient
}
