// Package scannertest provides a simulated target for scanner tests. It answers requests
// without a network and without sleeping, reporting the wait time a real target would take.
package scannertest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"Blindtime/internal/httpclient"
)

// BaseRTT is the simulated round trip time of a request that does not sleep, in seconds.
const BaseRTT = 0.1

// Page is the body served by DefaultBody.
const Page = "<html><body><h1>Items</h1><p>3 items found</p></body></html>"

// RespondFunc maps the value of the watched parameter onto a simulated wait in seconds and a body.
type RespondFunc func(value string) (wait float64, body string)

// Sender implements timedelay.Sender against a RespondFunc.
type Sender struct {
	Param   string
	Respond RespondFunc

	mu     sync.Mutex
	values []string
	nextID int64
}

// NewSender watches param and answers with respond.
func NewSender(param string, respond RespondFunc) *Sender {
	return &Sender{Param: param, Respond: respond}
}

// Send records the value of Param and returns the simulated response. A simulated wait above
// opts.Timeout yields httpclient.ErrTimeout, like the real client.
func (s *Sender) Send(ctx context.Context, req *http.Request, opts httpclient.SendOptions) (*httpclient.Response, error) {
	value, err := s.value(req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.values = append(s.values, value)
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	wait, body := s.Respond(value)
	waitTime := time.Duration(wait * float64(time.Second))
	if opts.Timeout > 0 && waitTime > opts.Timeout {
		return nil, fmt.Errorf("%w after %s", httpclient.ErrTimeout, opts.Timeout)
	}
	return &httpclient.Response{
		ID:         id,
		URL:        req.URL.String(),
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"text/html"}},
		Body:       []byte(body),
		WaitTime:   waitTime,
	}, nil
}

// NewNoContentResponse returns a synthetic 204 like the real client.
func (s *Sender) NewNoContentResponse(req *http.Request, wait time.Duration) *httpclient.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return &httpclient.Response{ID: s.nextID, URL: req.URL.String(), StatusCode: http.StatusNoContent, WaitTime: wait}
}

// Values returns the injected values in the order they were sent.
func (s *Sender) Values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.values...)
}

func (s *Sender) value(req *http.Request) (string, error) {
	if req.Method == http.MethodGet || req.Body == nil {
		return req.URL.Query().Get(s.Param), nil
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return "", err
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return "", err
	}
	return form.Get(s.Param), nil
}

// Sleeps returns a RespondFunc for a parameter that executes a sleep: when value matches re,
// the first submatch is the number of seconds slept. Any other value answers after BaseRTT.
func Sleeps(re *regexp.Regexp) RespondFunc {
	return func(value string) (float64, string) {
		if m := re.FindStringSubmatch(value); m != nil {
			n, _ := strconv.Atoi(m[1])
			return float64(n) + BaseRTT, Page
		}
		return BaseRTT, Page
	}
}

// NotVulnerable answers every value after BaseRTT.
func NotVulnerable(string) (float64, string) {
	return BaseRTT, Page
}
