package dl

import (
	"net/http"
	"time"
)

// Client is an interface satisfied by an *http.Client or a *RetryingClient.
// Every component that issues requests (the prober, the piece fetchers)
// depends on this interface rather than a concrete type, the same
// abstraction cognusion/go-rangetripper uses for its own Client type.
type Client interface {
	Do(*http.Request) (*http.Response, error)
}

// NewHTTPClient builds an HTTPS-capable client with a connection pool
// sized for `parallelism` concurrent requests. Per spec.md §4.1 the pool
// must be sized at least as large as parallelism so the scheduler's
// bounded semaphore, not the transport, is the binding concurrency
// constraint — the same sizing relationship cognusion/go-rangetripper
// establishes between its DEFAULT_THREAD_POOL_SIZE transport and its
// worker count.
//
// A plain http.Transport is used rather than a custom TLS dialer: Go's
// default RootCAs and TLS config are already what the teacher relies on,
// so there's no separate TLS-initialization step that can fail the way
// the Rust original's HttpsConnector::new(..).expect("TLS initialization
// failed") could; any TLS failure simply surfaces as a transport error
// on the first request, per spec.md §7's Transport error kind.
func NewHTTPClient(parallelism int) *http.Client {
	if parallelism < 1 {
		parallelism = 1
	}
	transport := &http.Transport{
		MaxIdleConns:        parallelism * 2,
		MaxIdleConnsPerHost: parallelism * 2,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{
		Transport: transport,
		// Per-request timeouts are the caller's configuration
		// responsibility, per spec.md §5; this client has none of its
		// own beyond context deadlines the caller attaches to requests.
	}
}
