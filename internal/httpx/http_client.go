package httpx

import (
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = 30 * time.Second

// Shared client for every outbound call: inference backend, identity
// provider, storage and history table.
var externalHTTPClient = &http.Client{
	Timeout: defaultExternalHTTPTimeout,
}

// Client returns the shared external HTTP client.
func Client() *http.Client {
	return externalHTTPClient
}

// ConfigureExternalHTTPClient applies the configured timeout, falling back to
// the default when timeoutSeconds is zero or negative. Returns the applied
// timeout.
func ConfigureExternalHTTPClient(timeoutSeconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}
