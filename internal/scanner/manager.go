package scanner

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"

	"golang.org/x/sync/errgroup"
)

// Manager orchestrates the execution of multiple scanners.
// Every (target, scanner) pair is one job; at most Concurrency jobs run at once.
type Manager struct {
	scanners   []Scanner
	httpClient *httpclient.Client
	logger     *logger.Logger
	options    ScannerOptions
	progress   io.Writer
}

// NewManager creates a new scanner manager.
func NewManager(client *httpclient.Client, log *logger.Logger, opts ScannerOptions) *Manager {
	return &Manager{
		httpClient: client,
		logger:     log,
		options:    opts,
		scanners:   make([]Scanner, 0),
	}
}

// RegisterScanner adds a scanner to the manager.
func (m *Manager) RegisterScanner(s Scanner) {
	m.scanners = append(m.scanners, s)
	m.logger.Debug("ScannerManager: Registered scanner: %s", s.Name())
}

// GetRegisteredScanners returns a slice of registered scanners.
func (m *Manager) GetRegisteredScanners() []Scanner {
	return m.scanners
}

// SetProgressWriter enables the spinner on w. A nil writer disables it.
func (m *Manager) SetProgressWriter(w io.Writer) {
	m.progress = w
}

// RunScans executes all registered scanners against targets.
// A failing scanner is logged and does not stop the others. Cancelling ctx stops
// scheduling new jobs; findings collected so far are returned.
func (m *Manager) RunScans(ctx context.Context, targets []mutant.Target) []VulnerabilityResult {
	if len(m.scanners) == 0 || len(targets) == 0 {
		return nil
	}

	m.logger.Info("ScannerManager: Starting vulnerability scanning on %d target(s) with %d scanner(s)...", len(targets), len(m.scanners))
	var allFindings []VulnerabilityResult
	var findingsMu sync.Mutex

	numWorkers := m.options.Concurrency
	if numWorkers <= 0 {
		numWorkers = 1
	}
	m.logger.Debug("ScannerManager: Running at most %d job(s) at once.", numWorkers)

	stop := m.startSpinner()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)

Schedule:
	for _, target := range targets {
		for _, s := range m.scanners {
			if gctx.Err() != nil {
				break Schedule
			}
			target, s := target, s
			g.Go(func() error {
				findings, err := s.Scan(gctx, target, m.httpClient, m.logger, m.options)
				if err != nil {
					m.logger.Error("Scanner %s failed for %s: %v", s.Name(), target.URL, err)
					return nil
				}
				if len(findings) > 0 {
					findingsMu.Lock()
					allFindings = append(allFindings, findings...)
					findingsMu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		m.logger.Warn("ScannerManager: Scan interrupted: %v", ctx.Err())
	}
	m.logger.Info("ScannerManager: All scanning jobs finished. Found %d total potential vulnerabilities.", len(allFindings))
	return allFindings
}

// startSpinner draws a spinner on the progress writer until the returned func is called.
func (m *Manager) startSpinner() func() {
	if m.progress == nil {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		spinner := []string{"/", "-", "\\", "|"}
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(spinner) {
			select {
			case <-done:
				fmt.Fprint(m.progress, "\r")
				return
			case <-ticker.C:
				fmt.Fprintf(m.progress, "\rScanning... %s ", spinner[i])
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
