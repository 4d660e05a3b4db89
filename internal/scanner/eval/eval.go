package eval

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

// EvalScanner finds parameters that reach an interpreter's eval.
type EvalScanner struct {
	sender timedelay.Sender
}

// NewEvalScanner creates a new instance of EvalScanner.
func NewEvalScanner() *EvalScanner {
	return &EvalScanner{}
}

// NewEvalScannerWithSender returns a scanner that sends through s instead of the client
// passed to Scan.
func NewEvalScannerWithSender(s timedelay.Sender) *EvalScanner {
	return &EvalScanner{sender: s}
}

// Name returns the scanner's name.
func (s *EvalScanner) Name() string {
	return "Blind Code Evaluation Scanner"
}

// Scan injects language level sleeps into every parameter.
func (s *EvalScanner) Scan(ctx context.Context, target mutant.Target, client *httpclient.Client, log *logger.Logger, opts scanner.ScannerOptions) ([]scanner.VulnerabilityResult, error) {
	var findings []scanner.VulnerabilityResult
	var sender timedelay.Sender = client
	if s.sender != nil {
		sender = s.sender
	}

	for _, paramName := range scanner.TestableParams(target, payloads.IsIgnoredParam) {
		if ctx.Err() != nil {
			break
		}
		finding, err := scanner.DetectDelay(ctx, target, paramName, payloads.EvalDelays(), sender, log, opts)
		if err != nil {
			return findings, err
		}
		if finding == nil {
			continue
		}

		log.Success("Eval (Time-Delay): %s code evaluated through param '%s'", finding.Template.Platform, paramName)
		findings = append(findings, scanner.VulnerabilityResult{
			VulnerabilityType: "Code Injection (Time-Delay)",
			URL:               finding.Mutant.URL(),
			Method:            finding.Mutant.Method(),
			Parameter:         paramName,
			Payload:           finding.Payload,
			Location:          finding.Mutant.Location(),
			Details:           fmt.Sprintf("The parameter is evaluated as %s code: %s delayed the response for sleeps of %v seconds.", finding.Template.Platform, finding.Template.Description, finding.Magnitudes),
			Severity:          "Critical",
			Evidence:          finding.Evidence(),
			ResponseIDs:       finding.ResponseIDs(),
			Remediation:       "Never pass user input to eval-like functions. Parse data with a dedicated parser instead.",
			ScannerName:       s.Name(),
		})
	}
	return findings, nil
}
