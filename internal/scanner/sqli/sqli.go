package sqli

import (
	"context"
	"fmt"
	"strings"

	"Blindtime/internal/compare"
	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"
	"Blindtime/internal/payloads"
	"Blindtime/internal/scanner"
	"Blindtime/internal/timedelay"
)

// specialPaths is a list of paths that often cause false positives and will be ignored.
var specialPaths = []string{
	"/logout",
	"/signout",
}

// sameThreshold is the FuzzyEqual ratio above which two visible texts are the same page.
const sameThreshold = 0.98

const remediation = "Use parameterized queries (prepared statements)."

// SQLiScanner implements the Scanner interface for SQL Injection.
// It runs error-based, time-delay and boolean-based tests, in that order, and reports the
// first technique that succeeds for each parameter.
type SQLiScanner struct {
	sender timedelay.Sender
}

// NewSQLiScanner creates a new instance of SQLiScanner.
func NewSQLiScanner() *SQLiScanner {
	return &SQLiScanner{}
}

// NewSQLiScannerWithSender returns a scanner that sends through s instead of the client
// passed to Scan.
func NewSQLiScannerWithSender(s timedelay.Sender) *SQLiScanner {
	return &SQLiScanner{sender: s}
}

// Name returns the name of the scanner.
func (s *SQLiScanner) Name() string {
	return "Blind SQL Injection Scanner"
}

// Scan performs the SQL Injection scan.
func (s *SQLiScanner) Scan(ctx context.Context, target mutant.Target, client *httpclient.Client, log *logger.Logger, opts scanner.ScannerOptions) ([]scanner.VulnerabilityResult, error) {
	var findings []scanner.VulnerabilityResult
	var sender timedelay.Sender = client
	if s.sender != nil {
		sender = s.sender
	}

	for _, path := range specialPaths {
		if strings.Contains(target.URL, path) {
			return nil, nil
		}
	}

	for _, paramName := range scanner.TestableParams(target, payloads.IsIgnoredParam) {
		if ctx.Err() != nil {
			break
		}
		log.Debug("SQLi: Testing parameter '%s' in %s", paramName, target.URL)

		// 1. Error-Based
		vuln, dbType, found := s.testErrorBased(ctx, target, sender, log, paramName)
		if found {
			findings = append(findings, vuln)
			continue
		}

		// 2. Time-Delay
		delayOpts := opts
		if delayOpts.Platform == "" {
			delayOpts.Platform = dbType
		}
		vuln, found, err := s.testTimeDelay(ctx, target, sender, log, paramName, delayOpts)
		if err != nil {
			return findings, err
		}
		if found {
			findings = append(findings, vuln)
			continue
		}

		// 3. Boolean-Based
		if vuln, found := s.testBooleanBased(ctx, target, sender, log, paramName); found {
			findings = append(findings, vuln)
		}
	}
	return findings, nil
}

// testErrorBased injects syntax breaking characters and looks for database error messages.
// It also returns the DBMS inferred from the error. A page that shows an error before any
// injection only yields that DBMS.
func (s *SQLiScanner) testErrorBased(ctx context.Context, target mutant.Target, sender timedelay.Sender, log *logger.Logger, paramName string) (scanner.VulnerabilityResult, string, bool) {
	base, err := mutant.New(target, paramName, mutant.Append)
	if err != nil {
		return scanner.VulnerabilityResult{}, "", false
	}

	// Errors already on the clean page say nothing about the parameter.
	clean, err := scanner.Fetch(ctx, sender, base.Clean(), false)
	if err != nil {
		return scanner.VulnerabilityResult{}, "", false
	}
	if evidence := payloads.FindSQLError(clean.BodyString()); evidence != "" {
		log.Debug("SQLi: Clean response for %s already shows a database error, skipping error-based test", target.URL)
		return scanner.VulnerabilityResult{}, payloads.InferDBType(evidence), false
	}

	for _, probe := range payloads.SQLiErrorProbes {
		m := base.WithValue(probe)
		resp, err := scanner.Fetch(ctx, sender, m, false)
		if err != nil {
			continue
		}
		evidence := payloads.FindSQLError(resp.BodyString())
		if evidence == "" {
			continue
		}
		dbType := payloads.InferDBType(evidence)
		log.Success("SQLi (Error-Based): Found '%s' for param '%s'", evidence, paramName)
		return scanner.VulnerabilityResult{
			VulnerabilityType: "SQL Injection (Error-Based)",
			URL:               m.URL(),
			Method:            m.Method(),
			Parameter:         paramName,
			Payload:           probe,
			Location:          m.Location(),
			Details:           fmt.Sprintf("A database error message was detected in the response (DBMS: %s).", orUnknown(dbType)),
			Severity:          "High",
			Evidence:          evidence,
			ResponseIDs:       []int64{resp.ID},
			Remediation:       remediation,
			ScannerName:       s.Name(),
		}, dbType, true
	}
	return scanner.VulnerabilityResult{}, "", false
}

// testTimeDelay proves the parameter controls a database sleep.
func (s *SQLiScanner) testTimeDelay(ctx context.Context, target mutant.Target, sender timedelay.Sender, log *logger.Logger, paramName string, opts scanner.ScannerOptions) (scanner.VulnerabilityResult, bool, error) {
	finding, err := scanner.DetectDelay(ctx, target, paramName, payloads.SQLDelays(), sender, log, opts)
	if err != nil || finding == nil {
		return scanner.VulnerabilityResult{}, false, err
	}
	log.Success("SQLi (Time-Delay): Delay controlled for param '%s' with %s payload", paramName, finding.Template.Platform)
	return scanner.VulnerabilityResult{
		VulnerabilityType: "SQL Injection (Time-Delay)",
		URL:               finding.Mutant.URL(),
		Method:            finding.Mutant.Method(),
		Parameter:         paramName,
		Payload:           finding.Payload,
		Location:          finding.Mutant.Location(),
		Details:           fmt.Sprintf("Response times followed the injected %s (%s) for sleeps of %v seconds, and the reversed payload did not delay.", finding.Template.Description, finding.Template.Platform, finding.Magnitudes),
		Severity:          "High",
		Evidence:          finding.Evidence(),
		ResponseIDs:       finding.ResponseIDs(),
		Remediation:       remediation,
		ScannerName:       s.Name(),
	}, true, nil
}

// testBooleanBased performs a boolean-based blind SQL injection test.
// The TRUE condition must render the same visible text as the original page, the FALSE one
// must not, and the original page must be stable across two fetches.
func (s *SQLiScanner) testBooleanBased(ctx context.Context, target mutant.Target, sender timedelay.Sender, log *logger.Logger, paramName string) (scanner.VulnerabilityResult, bool) {
	base, err := mutant.New(target, paramName, mutant.Append)
	if err != nil {
		return scanner.VulnerabilityResult{}, false
	}
	original, err := scanner.Fetch(ctx, sender, base.Clean(), false)
	if err != nil {
		return scanner.VulnerabilityResult{}, false
	}
	originalText := compare.VisibleText(original.BodyString())

	req, err := base.Clean().Request(ctx)
	if err != nil {
		return scanner.VulnerabilityResult{}, false
	}
	again, err := sender.Send(ctx, req, httpclient.SendOptions{Retry: true})
	if err != nil {
		return scanner.VulnerabilityResult{}, false
	}
	if !compare.FuzzyEqual(originalText, compare.VisibleText(again.BodyString()), sameThreshold) {
		log.Debug("SQLi: Page %s is not stable, skipping boolean-based test", target.URL)
		return scanner.VulnerabilityResult{}, false
	}

	for _, test := range payloads.BooleanSQLiTests {
		trueMutant := base.WithValue(test.TruePayload)
		trueResp, err := scanner.Fetch(ctx, sender, trueMutant, false)
		if err != nil {
			continue
		}
		falseResp, err := scanner.Fetch(ctx, sender, base.WithValue(test.FalsePayload), false)
		if err != nil {
			continue
		}

		trueText := compare.VisibleText(trueResp.BodyString())
		falseText := compare.VisibleText(falseResp.BodyString())
		if !compare.FuzzyEqual(originalText, trueText, sameThreshold) || compare.IsDifferentResponse(originalText, trueText) {
			continue
		}
		if !compare.IsDifferentResponse(originalText, falseText) {
			continue
		}

		log.Success("SQLi (Boolean-Based): Detected differential response for param '%s'", paramName)
		return scanner.VulnerabilityResult{
			VulnerabilityType: "SQL Injection (Boolean-Based)",
			URL:               trueMutant.URL(),
			Method:            trueMutant.Method(),
			Parameter:         paramName,
			Payload:           test.TruePayload,
			Location:          trueMutant.Location(),
			Details:           fmt.Sprintf("The response changed when a logically false condition was injected (%s).", test.Description),
			Severity:          "High",
			Evidence:          "Response for TRUE condition was similar to original, while response for FALSE was different.",
			ResponseIDs:       []int64{original.ID, trueResp.ID, falseResp.ID},
			Remediation:       remediation,
			ScannerName:       s.Name(),
		}, true
	}
	return scanner.VulnerabilityResult{}, false
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
