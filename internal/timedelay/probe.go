package timedelay

import (
	"context"
	"errors"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"
)

// DefaultDeltaPercent widens the upper bound relative to the baseline.
const DefaultDeltaPercent = 0.25

// Outcome is what the transport did with a probe request.
type Outcome int

const (
	// OutcomeCompleted means a response arrived within the upper bound.
	OutcomeCompleted Outcome = iota
	// OutcomeTimeout means the request outlived the upper bound.
	OutcomeTimeout
	// OutcomeTransportError means the request failed for any other reason.
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "transport-error"
	}
}

// ProbeResult is the classification of one delay probe.
type ProbeResult struct {
	Confirmed bool
	Outcome   Outcome
	Response  *httpclient.Response // Synthetic no-content response on timeout, nil on transport error.
	Observed  float64              // Seconds the request took; the upper bound on timeout.
	Lower     float64
	Upper     float64
	Payload   string
	Err       error // Set for OutcomeTransportError.
}

// Bounds returns the lower and upper wait bounds for a probe.
//
// The lower bound is the magnitude itself. Adding the baseline or delta to it produces
// false negatives whenever the baseline estimate is inflated by transient load.
// The upper bound is only used as the request timeout and leaves room for the
// payload being executed twice.
func Bounds(magnitude int, baseline, deltaPercent float64) (lower, upper float64) {
	lower = float64(magnitude)
	upper = baseline + baseline*deltaPercent + float64(magnitude)*2
	return lower, upper
}

// Prober sends delay probes for one mutant and expression.
type Prober struct {
	sender       Sender
	mutant       *mutant.Mutant
	expr         *Expression
	deltaPercent float64
	debuggingID  string
	log          *logger.Logger
}

// NewProber creates a Prober.
func NewProber(sender Sender, m *mutant.Mutant, expr *Expression, deltaPercent float64, debuggingID string, log *logger.Logger) *Prober {
	if log == nil {
		log = logger.Discard()
	}
	return &Prober{
		sender:       sender,
		mutant:       m,
		expr:         expr,
		deltaPercent: deltaPercent,
		debuggingID:  debuggingID,
		log:          log,
	}
}

// Payload returns the payload sent for magnitude, reversed for control probes.
func (p *Prober) Payload(magnitude int, reversed bool) string {
	payload := p.expr.Render(magnitude)
	if reversed {
		payload = reverse(payload)
	}
	return payload
}

// Probe sends one request that should sleep magnitude seconds and classifies its wait time.
// With reversed set the rendered payload is sent backwards; a real injection point should
// not sleep for it.
func (p *Prober) Probe(ctx context.Context, magnitude int, baseline float64, grep, reversed bool) ProbeResult {
	payload := p.Payload(magnitude, reversed)
	lower, upper := Bounds(magnitude, baseline, p.deltaPercent)
	res := ProbeResult{Lower: lower, Upper: upper, Payload: payload}

	req, err := p.mutant.WithValue(payload).Request(ctx)
	if err != nil {
		res.Outcome = OutcomeTransportError
		res.Err = err
		p.trace(magnitude, baseline, reversed, res)
		return res
	}

	resp, err := p.sender.Send(ctx, req, httpclient.SendOptions{
		Timeout:     seconds(upper),
		UseCache:    false,
		Grep:        grep,
		DebuggingID: p.debuggingID,
	})
	switch {
	case err == nil:
		res.Outcome = OutcomeCompleted
		res.Response = resp
		res.Observed = resp.WaitSeconds()
		res.Confirmed = res.Observed > lower
	case errors.Is(err, httpclient.ErrTimeout) && ctx.Err() == nil:
		// Outliving a bound of twice the magnitude counts as a delay.
		res.Outcome = OutcomeTimeout
		res.Response = p.sender.NewNoContentResponse(req, seconds(upper))
		res.Observed = upper
		res.Confirmed = true
	default:
		res.Outcome = OutcomeTransportError
		res.Err = err
	}

	p.trace(magnitude, baseline, reversed, res)
	return res
}

func (p *Prober) trace(magnitude int, baseline float64, reversed bool, res ProbeResult) {
	p.log.Debug("TimeDelay: [did=%s] param=%s magnitude=%d baseline=%.3f lower=%.3f upper=%.3f observed=%.3f reverse=%t outcome=%s confirmed=%t",
		p.debuggingID, p.mutant.Param(), magnitude, baseline, res.Lower, res.Upper, res.Observed, reversed, res.Outcome, res.Confirmed)
}
