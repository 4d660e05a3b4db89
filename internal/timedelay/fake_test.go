package timedelay

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/mutant"

	"github.com/stretchr/testify/require"
)

// scriptedSender answers requests without any network or real sleeping. respond maps the
// injected value onto the simulated wait time in seconds.
type scriptedSender struct {
	param   string
	respond func(value string) (float64, error)

	mu     sync.Mutex
	calls  []sentRequest
	nextID int64
}

type sentRequest struct {
	Value string
	Opts  httpclient.SendOptions
}

func (s *scriptedSender) Send(ctx context.Context, req *http.Request, opts httpclient.SendOptions) (*httpclient.Response, error) {
	value := req.URL.Query().Get(s.param)
	s.mu.Lock()
	s.calls = append(s.calls, sentRequest{Value: value, Opts: opts})
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	wait, err := s.respond(value)
	if err != nil {
		return nil, err
	}
	if opts.Timeout > 0 && seconds(wait) > opts.Timeout {
		return nil, fmt.Errorf("%w after %s", httpclient.ErrTimeout, opts.Timeout)
	}
	return &httpclient.Response{
		ID:         id,
		URL:        req.URL.String(),
		StatusCode: http.StatusOK,
		Body:       []byte("<html>ok</html>"),
		WaitTime:   seconds(wait),
	}, nil
}

func (s *scriptedSender) NewNoContentResponse(req *http.Request, wait time.Duration) *httpclient.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return &httpclient.Response{ID: s.nextID, URL: req.URL.String(), StatusCode: http.StatusNoContent, WaitTime: wait}
}

func (s *scriptedSender) sent() []sentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentRequest(nil), s.calls...)
}

func (s *scriptedSender) values() []string {
	var out []string
	for _, c := range s.sent() {
		out = append(out, c.Value)
	}
	return out
}

var sleepCall = regexp.MustCompile(`^sleep\((\d+)\)$`)

// sleepsFor returns the requested sleep when value is a well-formed sleep(N) call.
func sleepsFor(value string) (int, bool) {
	m := sleepCall.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	n, _ := strconv.Atoi(m[1])
	return n, true
}

const baseRTT = 0.1

// vulnerable simulates a parameter that executes the sleep it receives.
func vulnerable(value string) (float64, error) {
	if n, ok := sleepsFor(value); ok {
		return float64(n) + baseRTT, nil
	}
	return baseRTT, nil
}

func testMutant(t *testing.T) *mutant.Mutant {
	t.Helper()
	m, err := mutant.New(mutant.Target{
		Method:     http.MethodGet,
		URL:        "http://target.test/item?id=1&sort=asc",
		ParamNames: []string{"id", "sort"},
	}, "id", mutant.Replace)
	require.NoError(t, err)
	return m
}
