package scanner

import (
	"Blindtime/internal/timedelay"
)

// ScannerOptions carries settings shared by every scanner.
type ScannerOptions struct {
	Concurrency  int                 // Number of (target, scanner) jobs run at once.
	Platform     string              // Platform hint narrowing the delay payloads ("unix", "mysql", ...).
	Magnitudes   []int               // Sleep sequence for time-delay sessions; nil uses the default.
	DeltaPercent float64             // Upper bound widening; 0 uses the default.
	Baseliner    timedelay.Baseliner // Shared RTT estimator; nil gives each session its own.
	Modes        []string            // Injection modes to try: "replace", "append". Empty means both.
}

// VulnerabilityResult is one reported finding.
type VulnerabilityResult struct {
	VulnerabilityType string  `json:"vulnerability_type"`
	URL               string  `json:"url"`
	Method            string  `json:"method"`
	Parameter         string  `json:"parameter,omitempty"`
	Payload           string  `json:"payload,omitempty"`
	Location          string  `json:"location,omitempty"`
	Details           string  `json:"details"`
	Severity          string  `json:"severity"`
	Evidence          string  `json:"evidence,omitempty"`
	ResponseIDs       []int64 `json:"response_ids,omitempty"`
	Remediation       string  `json:"remediation,omitempty"`
	ScannerName       string  `json:"scanner_name"`
}
