package customHttpClient

import (
	"net/http"
	"time"

	"github.com/akolanti/ClinicRAG/internal/config"
)

// shared by every outbound backend so connections to the inference hosts are reused
var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// NewPooledClient returns a client on the shared transport with its own overall timeout.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   timeout,
	}
}
