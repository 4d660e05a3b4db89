package httpclient

import (
	"net/http"
	"time"
)

// Response is a fully read HTTP response together with the time the target took to produce it.
type Response struct {
	ID         int64         // Correlation identifier, unique per client.
	URL        string        // Final request URL.
	StatusCode int           // HTTP status code; 204 for synthetic responses.
	Header     http.Header   // Response headers.
	Body       []byte        // Response body, capped at maxBodySize.
	WaitTime   time.Duration // Time from sending the request to reading the full body.
}

// WaitSeconds returns WaitTime in seconds.
func (r *Response) WaitSeconds() float64 {
	return r.WaitTime.Seconds()
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}
