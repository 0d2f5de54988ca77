package customHttpClient

import (
	"net/http"

	"github.com/akolanti/DocsetAgent/internal/config"
)

// New returns a client with a pooled transport. One client is shared by the
// catalog and report downloads so connections to the API host are reused.
func New(cfg config.HTTP) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}
}
