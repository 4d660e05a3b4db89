package timedelay

import (
	"fmt"
	"strings"
)

// Expression is a payload template that makes the target sleep when it executes it.
// The template holds exactly one %d verb, which receives seconds*scale + offset.
type Expression struct {
	template string
	offset   int
	scale    int
}

// ExpressionOption configures an Expression at construction.
type ExpressionOption func(*Expression)

// WithOffset adds delta to the rendered value, e.g. "ping -n N" waits N-1 seconds.
func WithOffset(delta int) ExpressionOption {
	return func(e *Expression) { e.offset = delta }
}

// WithScale multiplies the rendered value, e.g. 1000 for millisecond sleep functions.
func WithScale(mult int) ExpressionOption {
	return func(e *Expression) { e.scale = mult }
}

// NewExpression builds an Expression. It panics if template does not contain exactly one %d.
func NewExpression(template string, opts ...ExpressionOption) *Expression {
	if n := strings.Count(strings.ReplaceAll(template, "%%", ""), "%d"); n != 1 {
		panic(fmt.Sprintf("timedelay: template %q must contain exactly one %%d, found %d", template, n))
	}
	e := &Expression{template: template, scale: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render returns the payload that sleeps for seconds.
func (e *Expression) Render(seconds int) string {
	return fmt.Sprintf(e.template, seconds*e.scale+e.offset)
}

// SetOffset replaces the additive offset.
func (e *Expression) SetOffset(delta int) { e.offset = delta }

// SetScale replaces the multiplier.
func (e *Expression) SetScale(mult int) { e.scale = mult }

// Offset returns the additive offset.
func (e *Expression) Offset() int { return e.offset }

// Scale returns the multiplier.
func (e *Expression) Scale() int { return e.scale }

// Template returns the raw template.
func (e *Expression) Template() string { return e.template }

// Clone returns an independent copy, for handing to a concurrent session.
func (e *Expression) Clone() *Expression {
	c := *e
	return &c
}

func (e *Expression) String() string {
	return fmt.Sprintf("%s (offset=%d scale=%d)", e.template, e.offset, e.scale)
}

// reverse returns s with its characters in reverse order.
func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
