// Package mutant models a scan target and copies of it with one parameter replaced by a payload.
package mutant

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Target is an endpoint with the parameters that may be injected.
type Target struct {
	Method       string   // HTTP method (GET or POST).
	URL          string   // Full URL of the request, including any query string.
	ParamNames   []string // Names of parameters to test.
	FormPostData string   // Raw form body for POST targets.
}

// Location returns where the parameters of t live.
func (t Target) Location() string {
	if isGet(t.Method) {
		return "query"
	}
	return "body"
}

// Params extracts the original parameters of the target based on its method.
// An empty method means GET.
func (t Target) Params() (url.Values, error) {
	if isGet(t.Method) {
		u, err := url.Parse(t.URL)
		if err != nil {
			return nil, err
		}
		return u.Query(), nil
	}
	return url.ParseQuery(t.FormPostData)
}

func isGet(method string) bool {
	return method == "" || strings.EqualFold(method, http.MethodGet)
}

// Mode decides how a payload is combined with the original parameter value.
type Mode int

const (
	// Replace discards the original value.
	Replace Mode = iota
	// Append keeps the original value and adds the payload after it.
	Append
)

// Mutant is a Target with one parameter marked as the injection point.
// Mutants are values: WithValue returns a new Mutant and never touches the receiver.
type Mutant struct {
	method   string
	baseURL  *url.URL
	params   url.Values
	param    string
	original string
	value    string
	mode     Mode
}

// New builds a mutant for param of target. The injected value starts as the original one.
func New(target Target, param string, mode Mode) (*Mutant, error) {
	method := strings.ToUpper(target.Method)
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("unsupported method %q", target.Method)
	}
	target.Method = method
	u, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("parse target url: %w", err)
	}
	params, err := target.Params()
	if err != nil {
		return nil, fmt.Errorf("parse target params: %w", err)
	}
	original := params.Get(param)
	return &Mutant{
		method:   method,
		baseURL:  u,
		params:   params,
		param:    param,
		original: original,
		value:    original,
		mode:     mode,
	}, nil
}

// Param is the name of the injected parameter.
func (m *Mutant) Param() string { return m.param }

// Method is the HTTP method.
func (m *Mutant) Method() string { return m.method }

// OriginalValue is the parameter value found on the target.
func (m *Mutant) OriginalValue() string { return m.original }

// Value is the value that will be sent for the injected parameter.
func (m *Mutant) Value() string { return m.value }

// Location is "query" for GET mutants and "body" for POST mutants.
func (m *Mutant) Location() string {
	if m.method == http.MethodGet {
		return "query"
	}
	return "body"
}

// WithValue returns a copy of m that injects payload.
func (m *Mutant) WithValue(payload string) *Mutant {
	c := m.Copy()
	if m.mode == Append {
		c.value = m.original + payload
	} else {
		c.value = payload
	}
	return c
}

// Clean returns a copy of m that sends the original value.
func (m *Mutant) Clean() *Mutant {
	c := m.Copy()
	c.value = m.original
	return c
}

// Copy returns a deep copy of m.
func (m *Mutant) Copy() *Mutant {
	c := *m
	u := *m.baseURL
	c.baseURL = &u
	c.params = make(url.Values, len(m.params))
	for k, v := range m.params {
		c.params[k] = append([]string(nil), v...)
	}
	return &c
}

// Key identifies the request a mutant was derived from, ignoring the injected value.
// Two mutants share a key when they target the same endpoint and parameter and every
// other parameter carries the same values.
func (m *Mutant) Key() string {
	u := *m.baseURL
	if m.method == http.MethodGet {
		u.RawQuery = ""
	}
	u.Fragment = ""
	others := make(url.Values, len(m.params))
	for k, v := range m.params {
		if k != m.param {
			others[k] = v
		}
	}
	return strings.Join([]string{m.method, u.String(), m.Location(), m.param, m.original, others.Encode()}, "|")
}

// URL returns the URL the mutant is sent to.
func (m *Mutant) URL() string {
	if m.method != http.MethodGet {
		return m.baseURL.String()
	}
	u := *m.baseURL
	u.RawQuery = m.encoded()
	return u.String()
}

// Request builds the HTTP request carrying the injected value.
func (m *Mutant) Request(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if m.method == http.MethodPost {
		body = strings.NewReader(m.encoded())
	}
	req, err := http.NewRequestWithContext(ctx, m.method, m.URL(), body)
	if err != nil {
		return nil, err
	}
	if m.method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func (m *Mutant) encoded() string {
	params := make(url.Values, len(m.params)+1)
	for k, v := range m.params {
		params[k] = v
	}
	params.Set(m.param, m.value)
	return params.Encode()
}

// String is used in log lines.
func (m *Mutant) String() string {
	return fmt.Sprintf("%s %s [%s=%q]", m.method, m.baseURL.Path, m.param, m.value)
}
