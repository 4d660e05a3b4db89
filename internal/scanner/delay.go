package scanner

import (
	"context"
	"fmt"
	"strings"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"
	"Blindtime/internal/payloads"
	"Blindtime/internal/timedelay"

	"github.com/google/uuid"
)

// DelayFinding describes a parameter whose response time a delay payload controls.
type DelayFinding struct {
	Mutant      *mutant.Mutant
	Template    payloads.DelayTemplate
	Payload     string // Payload rendered for the first magnitude.
	Magnitudes  []int
	Responses   []*httpclient.Response
	DebuggingID string
}

// ResponseIDs returns the IDs of the confirming responses.
func (f *DelayFinding) ResponseIDs() []int64 {
	ids := make([]int64, 0, len(f.Responses))
	for _, r := range f.Responses {
		ids = append(ids, r.ID)
	}
	return ids
}

// Evidence summarises the observed wait times.
func (f *DelayFinding) Evidence() string {
	parts := make([]string, 0, len(f.Responses))
	for i, r := range f.Responses {
		parts = append(parts, fmt.Sprintf("sleep %ds -> %.2fs (response %d)", f.Magnitudes[i], r.WaitSeconds(), r.ID))
	}
	return strings.Join(parts, "; ")
}

// InjectionModes converts ScannerOptions.Modes. Unknown names are skipped; an empty result
// means replace then append.
func InjectionModes(names []string) []mutant.Mode {
	var modes []mutant.Mode
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "replace":
			modes = append(modes, mutant.Replace)
		case "append":
			modes = append(modes, mutant.Append)
		}
	}
	if len(modes) == 0 {
		modes = []mutant.Mode{mutant.Replace, mutant.Append}
	}
	return modes
}

// DetectDelay runs one confirmation session per (mode, expression) of provider against param
// and stops at the first one that proves the delay is controlled.
// It returns nil when nothing was proven. The only errors are configuration errors.
func DetectDelay(ctx context.Context, target mutant.Target, param string, provider payloads.DelayProvider, sender timedelay.Sender, log *logger.Logger, opts ScannerOptions) (*DelayFinding, error) {
	magnitudes := opts.Magnitudes
	if len(magnitudes) == 0 {
		magnitudes = timedelay.DefaultMagnitudes
	}
	deltaPercent := opts.DeltaPercent
	if deltaPercent <= 0 {
		deltaPercent = timedelay.DefaultDeltaPercent
	}
	baseliner := opts.Baseliner
	if baseliner == nil {
		baseliner = timedelay.NewEstimator(sender, log, timedelay.EstimatorOptions{})
	}

	templates := provider.Templates(opts.Platform)
	for _, mode := range InjectionModes(opts.Modes) {
		base, err := mutant.New(target, param, mode)
		if err != nil {
			log.Debug("%s: cannot build mutant for '%s' in %s: %v", provider.Name(), param, target.URL, err)
			return nil, nil
		}

		for _, tmpl := range templates {
			if ctx.Err() != nil {
				return nil, nil
			}
			did := fmt.Sprintf("%s-%s", provider.Name(), uuid.NewString()[:8])
			session, err := timedelay.NewSession(base, tmpl.Build(), sender,
				timedelay.WithMagnitudes(magnitudes),
				timedelay.WithDeltaPercent(deltaPercent),
				timedelay.WithBaseliner(baseliner),
				timedelay.WithDebuggingID(did),
				timedelay.WithLogger(log),
			)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", provider.Name(), err)
			}

			log.Debug("%s: [did=%s] testing '%s' with %q", provider.Name(), did, param, tmpl.Template)
			ok, responses := session.Run(ctx)
			if !ok {
				continue
			}

			expr := tmpl.Build()
			return &DelayFinding{
				Mutant:      base.WithValue(expr.Render(magnitudes[0])),
				Template:    tmpl,
				Payload:     expr.Render(magnitudes[0]),
				Magnitudes:  append([]int(nil), magnitudes...),
				Responses:   responses,
				DebuggingID: did,
			}, nil
		}
	}
	return nil, nil
}
