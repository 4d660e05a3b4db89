package scanner

import (
	"context"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/mutant"
	"Blindtime/internal/timedelay"
)

// Fetch sends m with the client defaults, retrying transport failures, and returns the response.
// GET responses may come from the client cache.
func Fetch(ctx context.Context, sender timedelay.Sender, m *mutant.Mutant, grep bool) (*httpclient.Response, error) {
	req, err := m.Request(ctx)
	if err != nil {
		return nil, err
	}
	return sender.Send(ctx, req, httpclient.SendOptions{UseCache: true, Grep: grep, Retry: true})
}

// TestableParams returns the parameter names of target worth injecting.
func TestableParams(target mutant.Target, ignored func(string) bool) []string {
	var out []string
	seen := make(map[string]bool, len(target.ParamNames))
	for _, p := range target.ParamNames {
		if p == "" || seen[p] || (ignored != nil && ignored(p)) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
