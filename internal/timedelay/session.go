// Package timedelay decides whether a delay payload injected into a request really controls
// how long the target takes to answer.
//
// A Session measures the normal round trip time of the request, then sends the payload for a
// fixed, non-monotonic sequence of sleep magnitudes. Every magnitude must be reproduced, and for
// every reproduced magnitude the same payload sent backwards must not be: a reversed payload
// is syntactically broken, so a delay observed for it points at a slow target rather than
// at the injection.
package timedelay

import (
	"context"
	"errors"
	"fmt"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"

	"github.com/google/uuid"
)

// MaxMagnitude bounds a single magnitude, in seconds (exclusive).
const MaxMagnitude = 100

// DefaultMagnitudes is the sleep sequence used when none is configured.
var DefaultMagnitudes = []int{8, 4, 9, 5, 14}

var (
	ErrNilExpression    = errors.New("timedelay: nil delay expression")
	ErrNilMutant        = errors.New("timedelay: nil mutant")
	ErrNilSender        = errors.New("timedelay: nil sender")
	ErrNoMagnitudes     = errors.New("timedelay: empty magnitude sequence")
	ErrInvalidMagnitude = errors.New("timedelay: magnitude out of range")
)

// Session runs one confirmation sequence for a mutant and expression. It is not reusable
// and must not be shared between goroutines.
type Session struct {
	mutant       *mutant.Mutant
	expr         *Expression
	sender       Sender
	baseliner    Baseliner
	magnitudes   []int
	deltaPercent float64
	debuggingID  string
	log          *logger.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMagnitudes replaces DefaultMagnitudes.
func WithMagnitudes(magnitudes []int) SessionOption {
	return func(s *Session) { s.magnitudes = append([]int(nil), magnitudes...) }
}

// WithDeltaPercent replaces DefaultDeltaPercent.
func WithDeltaPercent(p float64) SessionOption {
	return func(s *Session) { s.deltaPercent = p }
}

// WithDebuggingID sets the correlation token used in log lines. A random one is used otherwise.
func WithDebuggingID(id string) SessionOption {
	return func(s *Session) { s.debuggingID = id }
}

// WithBaseliner shares a baseline estimator between sessions.
func WithBaseliner(b Baseliner) SessionOption {
	return func(s *Session) { s.baseliner = b }
}

// WithLogger sets the logger for probe diagnostics.
func WithLogger(l *logger.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// NewSession validates its arguments and returns a ready Session.
// The expression is cloned so the caller may keep using its own copy.
func NewSession(m *mutant.Mutant, expr *Expression, sender Sender, opts ...SessionOption) (*Session, error) {
	switch {
	case m == nil:
		return nil, ErrNilMutant
	case expr == nil:
		return nil, ErrNilExpression
	case sender == nil:
		return nil, ErrNilSender
	}

	s := &Session{
		mutant:       m.Copy(),
		expr:         expr.Clone(),
		sender:       sender,
		magnitudes:   append([]int(nil), DefaultMagnitudes...),
		deltaPercent: DefaultDeltaPercent,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := ValidateMagnitudes(s.magnitudes); err != nil {
		return nil, err
	}
	if s.deltaPercent < 0 {
		return nil, fmt.Errorf("timedelay: negative delta percent %v", s.deltaPercent)
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	if s.debuggingID == "" {
		s.debuggingID = uuid.NewString()[:8]
	}
	if s.baseliner == nil {
		s.baseliner = NewEstimator(sender, s.log, EstimatorOptions{})
	}
	return s, nil
}

// ValidateMagnitudes checks a magnitude sequence: non-empty, every value in [1, MaxMagnitude).
func ValidateMagnitudes(magnitudes []int) error {
	if len(magnitudes) == 0 {
		return ErrNoMagnitudes
	}
	for _, m := range magnitudes {
		if m < 1 || m >= MaxMagnitude {
			return fmt.Errorf("%w: %d", ErrInvalidMagnitude, m)
		}
	}
	return nil
}

// IsMonotonic reports whether magnitudes never decrease. Such sequences are easier to match
// by coincidence and should be avoided.
func IsMonotonic(magnitudes []int) bool {
	for i := 1; i < len(magnitudes); i++ {
		if magnitudes[i] < magnitudes[i-1] {
			return false
		}
	}
	return true
}

// DebuggingID returns the session's correlation token.
func (s *Session) DebuggingID() string { return s.debuggingID }

// Magnitudes returns a copy of the sleep sequence.
func (s *Session) Magnitudes() []int { return append([]int(nil), s.magnitudes...) }

// Run probes every magnitude in order. It returns true and the responses of the primary
// probes when every magnitude was reproduced and no reversed control was; otherwise false
// and nil. It never fails: transport errors and cancellation count as "not proven".
func (s *Session) Run(ctx context.Context) (bool, []*httpclient.Response) {
	prober := NewProber(s.sender, s.mutant, s.expr, s.deltaPercent, s.debuggingID, s.log)
	responses := make([]*httpclient.Response, 0, len(s.magnitudes))

	for i, magnitude := range s.magnitudes {
		if ctx.Err() != nil {
			s.log.Debug("TimeDelay: [did=%s] cancelled before magnitude=%d", s.debuggingID, magnitude)
			return false, nil
		}

		baseline := s.baseliner.Baseline(ctx, s.mutant, s.debuggingID)

		primary := prober.Probe(ctx, magnitude, baseline, i == 0, false)
		if primary.Outcome == OutcomeTransportError {
			s.log.Debug("TimeDelay: [did=%s] aborting, transport error on magnitude=%d: %v", s.debuggingID, magnitude, primary.Err)
			s.forgetBaseline()
			return false, nil
		}
		if !primary.Confirmed {
			s.log.Debug("TimeDelay: [did=%s] aborting, magnitude=%d not reproduced", s.debuggingID, magnitude)
			return false, nil
		}

		control := prober.Probe(ctx, magnitude, baseline, false, true)
		if control.Outcome == OutcomeTransportError {
			s.log.Debug("TimeDelay: [did=%s] aborting, transport error on control magnitude=%d: %v", s.debuggingID, magnitude, control.Err)
			s.forgetBaseline()
			return false, nil
		}
		if control.Confirmed {
			s.log.Debug("TimeDelay: [did=%s] aborting, reversed payload also delayed at magnitude=%d (false positive)", s.debuggingID, magnitude)
			return false, nil
		}

		responses = append(responses, primary.Response)
	}

	s.log.Debug("TimeDelay: [did=%s] delay controlled for %s with %s", s.debuggingID, s.mutant.Param(), s.expr)
	return true, responses
}

// forgetter is implemented by baseliners that can drop a cached estimate.
type forgetter interface {
	Forget(m *mutant.Mutant)
}

// forgetBaseline drops the cached baseline after a transport error, since the
// endpoint's timing is no longer trusted.
func (s *Session) forgetBaseline() {
	if f, ok := s.baseliner.(forgetter); ok {
		f.Forget(s.mutant)
	}
}
