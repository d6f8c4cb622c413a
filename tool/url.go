package tool

import (
	"fmt"
	"net/url"
)

// ParseEndpoint validates the upload endpoint. Only absolute http(s) URLs are accepted.
func ParseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", raw)
	}
	return u, nil
}

// BuildControlURL builds the local control API base URL, e.g. http://192.168.1.5:53318/api/self/v1.
func BuildControlURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d/api/self/v1", host, port)
}
