package payloads

import (
	"strings"

	"Blindtime/internal/timedelay"
)

// DelayTemplate describes one sleep payload. Build turns it into a fresh Expression.
type DelayTemplate struct {
	// Template holds exactly one %d receiving seconds*Scale + Offset.
	Template string
	// Offset is added to the delay; "ping -n N" waits N-1 seconds so it needs +1.
	Offset int
	// Scale multiplies the delay; 1000 for functions taking milliseconds.
	Scale int
	// Platform narrows when the payload is worth trying ("unix", "windows", "mysql", "php", ...).
	// Empty means any platform.
	Platform string
	// Description explains the payload's target and technique.
	Description string
}

// Build returns a new Expression for t. Every call returns an independent value.
func (t DelayTemplate) Build() *timedelay.Expression {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	return timedelay.NewExpression(t.Template, timedelay.WithOffset(t.Offset), timedelay.WithScale(scale))
}

// DelayProvider supplies the delay expressions of one vulnerability class.
type DelayProvider interface {
	// Name is the short class name ("sqli", "cmdinjection", "eval").
	Name() string
	// DelayExpressions returns fresh expressions worth trying for a platform hint.
	// An empty hint returns every expression.
	DelayExpressions(platform string) []*timedelay.Expression
	// Templates returns the templates behind the expressions, in the same order.
	Templates(platform string) []DelayTemplate
}

// templateProvider is a DelayProvider backed by a static template table.
type templateProvider struct {
	name      string
	templates []DelayTemplate
	// aliases maps a platform hint onto the template platforms it covers.
	aliases map[string][]string
}

func (p templateProvider) Name() string { return p.name }

func (p templateProvider) Templates(platform string) []DelayTemplate {
	platform = strings.ToLower(strings.TrimSpace(platform))
	accepted := map[string]bool{platform: true}
	for _, alias := range p.aliases[platform] {
		accepted[alias] = true
	}

	var out []DelayTemplate
	for _, t := range p.templates {
		if platform == "" || t.Platform == "" || accepted[t.Platform] {
			out = append(out, t)
		}
	}
	// An unknown hint must not hide every payload.
	if len(out) == 0 {
		return append([]DelayTemplate(nil), p.templates...)
	}
	return out
}

func (p templateProvider) DelayExpressions(platform string) []*timedelay.Expression {
	templates := p.Templates(platform)
	exprs := make([]*timedelay.Expression, 0, len(templates))
	for _, t := range templates {
		exprs = append(exprs, t.Build())
	}
	return exprs
}

// Providers returns every built-in provider.
func Providers() []DelayProvider {
	return []DelayProvider{SQLDelays(), CommandDelays(), EvalDelays()}
}

// ProviderByName looks up a built-in provider.
func ProviderByName(name string) (DelayProvider, bool) {
	for _, p := range Providers() {
		if p.Name() == strings.ToLower(name) {
			return p, true
		}
	}
	return nil, false
}
