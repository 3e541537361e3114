package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/pressbot/core/telegram/netutil"
)

const (
	apiDialTimeout     = 5 * time.Second
	apiHeaderTimeout   = 5 * time.Second
	apiRequestTimeout  = 30 * time.Second
	apiRetryAttempts   = 3
	apiRetryBackoff    = 2 * time.Second
	apiMaxIdlePerHost  = 10
	apiIdleConnTimeout = 30 * time.Second
)

// NewAPIClient returns the HTTP client for Bot API calls. Requests failing
// with a transient network error are sent again when their body can be
// replayed.
func NewAPIClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: apiDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   apiMaxIdlePerHost,
		IdleConnTimeout:       apiIdleConnTimeout,
		TLSHandshakeTimeout:   apiDialTimeout,
		ResponseHeaderTimeout: apiHeaderTimeout,
	}
	return &http.Client{
		Timeout: apiRequestTimeout,
		Transport: &retryTransport{
			base:     base,
			attempts: apiRetryAttempts,
			backoff:  apiRetryBackoff,
		},
	}
}

type retryTransport struct {
	base     http.RoundTripper
	attempts int
	backoff  time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt < t.attempts && netutil.Transient(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		if serr := netutil.Sleep(req.Context(), netutil.Backoff(t.backoff, attempt)); serr != nil {
			return nil, serr
		}
		again := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			again.Body = body
		}
		resp, err = t.base.RoundTrip(again)
	}
	return resp, err
}
