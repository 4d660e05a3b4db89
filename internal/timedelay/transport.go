package timedelay

import (
	"context"
	"net/http"
	"time"

	"Blindtime/internal/httpclient"
)

// Sender is the part of the HTTP transport the delay engine needs.
// *httpclient.Client satisfies it.
type Sender interface {
	// Send performs one request. A request exceeding opts.Timeout must fail with an error
	// matching httpclient.ErrTimeout.
	Send(ctx context.Context, req *http.Request, opts httpclient.SendOptions) (*httpclient.Response, error)
	// NewNoContentResponse builds a placeholder response for a request that produced none.
	NewNoContentResponse(req *http.Request, wait time.Duration) *httpclient.Response
}

// seconds converts a float number of seconds to a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
