package reporter

import (
	"time"

	"Blindtime/internal/mutant"
	"Blindtime/internal/scanner"

	"github.com/google/uuid"
)

// ScannedTarget is one endpoint that was tested.
type ScannedTarget struct {
	URL    string   `json:"url"`
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
}

// Report is the main data structure for scan results.
type Report struct {
	ID              string                        `json:"id"`
	ScanSummary     ScanSummary                   `json:"scan_summary"`
	Targets         []ScannedTarget               `json:"targets,omitempty"`
	Vulnerabilities []scanner.VulnerabilityResult `json:"vulnerabilities"`
}

// ScanSummary contains metadata and a summary of the scan.
type ScanSummary struct {
	TargetURL            string            `json:"target_url"`
	ScanStartTime        string            `json:"scan_start_time"`
	ScanEndTime          string            `json:"scan_end_time"`
	TotalDuration        string            `json:"total_duration"`
	ScannersRun          []string          `json:"scanners_run"`
	Platform             string            `json:"platform,omitempty"`
	Magnitudes           []int             `json:"magnitudes"`
	TechnologiesDetected map[string]string `json:"technologies_detected,omitempty"`
	TotalVulnsFound      int               `json:"total_vulnerabilities_found"`
}

// NewReport creates a new report instance.
// Slices start empty so they are never null in the JSON output.
func NewReport(target string, startTime time.Time) *Report {
	return &Report{
		ID: uuid.NewString(),
		ScanSummary: ScanSummary{
			TargetURL:     target,
			ScanStartTime: startTime.Format(time.RFC3339),
		},
		Targets:         make([]ScannedTarget, 0),
		Vulnerabilities: make([]scanner.VulnerabilityResult, 0),
	}
}

// Finalize completes the report with all final data before saving.
func (r *Report) Finalize(
	endTime time.Time,
	startTime time.Time,
	vulns []scanner.VulnerabilityResult,
	scanners []string,
	opts scanner.ScannerOptions,
	tech map[string]string,
	targets []mutant.Target,
) {
	r.ScanSummary.ScanEndTime = endTime.Format(time.RFC3339)
	r.ScanSummary.TotalDuration = endTime.Sub(startTime).Round(time.Second).String()
	if vulns != nil {
		r.Vulnerabilities = vulns
	}
	r.ScanSummary.TotalVulnsFound = len(vulns)
	r.ScanSummary.ScannersRun = scanners
	r.ScanSummary.Platform = opts.Platform
	r.ScanSummary.Magnitudes = opts.Magnitudes
	r.ScanSummary.TechnologiesDetected = tech

	for _, t := range targets {
		r.Targets = append(r.Targets, ScannedTarget{
			URL:    t.URL,
			Method: t.Method,
			Params: t.ParamNames,
		})
	}
}
