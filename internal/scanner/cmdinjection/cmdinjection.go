package cmdinjection

import (
	"context"
	"fmt"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"
	"Blindtime/internal/payloads"
	"Blindtime/internal/scanner"
	"Blindtime/internal/timedelay"
)

// CommandInjectionScanner implements the Scanner interface for blind OS command injection.
type CommandInjectionScanner struct {
	sender timedelay.Sender
}

// NewCommandInjectionScanner creates a new instance of CommandInjectionScanner.
func NewCommandInjectionScanner() *CommandInjectionScanner {
	return &CommandInjectionScanner{}
}

// NewCommandInjectionScannerWithSender returns a scanner that sends through s instead of
// the client passed to Scan.
func NewCommandInjectionScannerWithSender(s timedelay.Sender) *CommandInjectionScanner {
	return &CommandInjectionScanner{sender: s}
}

// Name returns the scanner's name.
func (s *CommandInjectionScanner) Name() string {
	return "Blind Command Injection Scanner"
}

// Scan proves, parameter by parameter, that an injected sleep or ping controls the response time.
func (s *CommandInjectionScanner) Scan(ctx context.Context, target mutant.Target, client *httpclient.Client, log *logger.Logger, opts scanner.ScannerOptions) ([]scanner.VulnerabilityResult, error) {
	var findings []scanner.VulnerabilityResult
	var sender timedelay.Sender = client
	if s.sender != nil {
		sender = s.sender
	}
	provider := payloads.CommandDelays()

	for _, paramName := range scanner.TestableParams(target, payloads.IsIgnoredParam) {
		if ctx.Err() != nil {
			break
		}
		log.Debug("CmdInjection: Testing parameter '%s' in %s", paramName, target.URL)

		finding, err := scanner.DetectDelay(ctx, target, paramName, provider, sender, log, opts)
		if err != nil {
			return findings, err
		}
		if finding == nil {
			continue
		}

		log.Success("CmdInjection (Time-Delay): Delay controlled for param '%s' on %s", paramName, finding.Template.Platform)
		findings = append(findings, scanner.VulnerabilityResult{
			VulnerabilityType: "OS Command Injection (Time-Delay)",
			URL:               finding.Mutant.URL(),
			Method:            finding.Mutant.Method(),
			Parameter:         paramName,
			Payload:           finding.Payload,
			Location:          finding.Mutant.Location(),
			Details:           fmt.Sprintf("Response times followed the injected %s for sleeps of %v seconds, and the reversed payload did not delay.", finding.Template.Description, finding.Magnitudes),
			Severity:          "Critical",
			Evidence:          finding.Evidence(),
			ResponseIDs:       finding.ResponseIDs(),
			Remediation:       "Do not use user input directly in command execution. Use safe APIs and strict validation.",
			ScannerName:       s.Name(),
		})
	}
	return findings, nil
}
