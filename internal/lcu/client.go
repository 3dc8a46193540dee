package lcu

import (
	"crypto/tls"
	"net/http"
	"time"
)

// The client API always presents a self-signed certificate, so verification
// stays off; the connection never leaves loopback.

// authTransport injects basic auth on every request. The credential lives
// only here and is never surfaced in logs or persisted metadata.
type authTransport struct {
	base     http.RoundTripper
	username string
	password string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(clone)
}

// ClientFactory yields ready-to-use authenticated clients. The runner calls
// it once per worker so workers never share connection state.
type ClientFactory func() *http.Client

// NewClientFactory builds a factory of authenticated HTTP clients for the
// given lockfile. Each client gets its own transport and connection pool.
func NewClientFactory(lf Lockfile, timeout time.Duration) ClientFactory {
	return func() *http.Client {
		transport := &http.Transport{
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
		return &http.Client{
			Timeout: timeout,
			Transport: &authTransport{
				base:     transport,
				username: "riot",
				password: lf.Password,
			},
		}
	}
}
