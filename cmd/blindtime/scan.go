package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"Blindtime/internal/config"
	"Blindtime/internal/fingerprint"
	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"
	"Blindtime/internal/payloads"
	"Blindtime/internal/reporter"
	"Blindtime/internal/scanner"
	"Blindtime/internal/scanner/cmdinjection"
	"Blindtime/internal/scanner/eval"
	"Blindtime/internal/scanner/sqli"
	"Blindtime/internal/timedelay"

	"github.com/spf13/cobra"
)

type scanFlags struct {
	configFile  string
	target      string
	method      string
	data        string
	params      string
	scanners    string
	concurrency int
	platform    string
	fingerprint bool
	magnitudes  string
	modes       string
	rateLimit   float64
	timeout     int
	output      string
	verbose     bool
	trace       bool
	insecure    bool
}

func newScanCmd() *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a URL for time-delay blind injections",
		Long: `Inject delay payloads into every parameter of the target and report the
parameters whose response time follows the requested sleeps.

Settings are read from config.yaml (or --config) and overridden by flags.`,
		Example: `  blindtime scan -u "http://example.com/item?id=1" -s sqli
  blindtime scan -u http://example.com/ping -X POST -d "host=127.0.0.1" -s cmdinjection --platform unix
  blindtime scan -u "http://example.com/calc?expr=1" -s eval --magnitudes 3,1,4 -o report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(flags.configFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, flags, cfg)
			if cfg.Target == "" {
				return errors.New("missing target: use -u or set 'target' in the config file")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScan(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configFile, "config", "config.yaml", "Path to the YAML config file")
	f.StringVarP(&flags.target, "url", "u", "", "Target URL")
	f.StringVarP(&flags.method, "method", "X", "", "HTTP method (GET or POST)")
	f.StringVarP(&flags.data, "data", "d", "", "Form body for POST targets")
	f.StringVarP(&flags.params, "params", "p", "", "Comma-separated parameters to test (default: all)")
	f.StringVarP(&flags.scanners, "scanners", "s", "", "Comma-separated scanners: sqli,cmdinjection,eval or all")
	f.IntVarP(&flags.concurrency, "concurrency", "c", 0, "Number of concurrent jobs")
	f.StringVar(&flags.platform, "platform", "", "Platform hint narrowing the payloads (mysql, unix, windows, php, ...)")
	f.BoolVar(&flags.fingerprint, "fingerprint", false, "Detect the platform from the target when --platform is empty")
	f.StringVar(&flags.magnitudes, "magnitudes", "", "Comma-separated sleep sequence in seconds (default 8,4,9,5,14)")
	f.StringVar(&flags.modes, "modes", "", "Injection modes: replace,append")
	f.Float64Var(&flags.rateLimit, "rate-limit", 0, "Maximum requests per second (0 is unlimited)")
	f.IntVar(&flags.timeout, "timeout", 0, "Default request timeout in seconds")
	f.StringVarP(&flags.output, "output", "o", "", "Path to save the JSON report")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output (DEBUG level)")
	f.BoolVar(&flags.trace, "vv", false, "Enable trace-level output (highly verbose)")
	f.BoolVarP(&flags.insecure, "insecure", "k", false, "Skip TLS certificate verification")

	return cmd
}

// applyFlags copies every flag the user set over the loaded configuration.
func applyFlags(cmd *cobra.Command, flags *scanFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.Target = flags.target
	}
	if changed("method") {
		cfg.Method = flags.method
	}
	if changed("data") {
		cfg.Data = flags.data
		if !changed("method") {
			cfg.Method = "POST"
		}
	}
	if changed("params") {
		cfg.Params = splitList(flags.params)
	}
	if changed("scanners") {
		cfg.Scanners = flags.scanners
	}
	if changed("concurrency") {
		cfg.Concurrency = flags.concurrency
	}
	if changed("platform") {
		cfg.Platform = flags.platform
	}
	if changed("fingerprint") {
		cfg.Fingerprint = flags.fingerprint
	}
	if changed("magnitudes") {
		cfg.TimeDelay.Magnitudes = parseMagnitudes(flags.magnitudes)
	}
	if changed("modes") {
		cfg.Modes = splitList(flags.modes)
	}
	if changed("rate-limit") {
		cfg.RateLimit = flags.rateLimit
	}
	if changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	if changed("output") {
		cfg.Output.OutputFile = flags.output
	}
	if changed("insecure") {
		cfg.Insecure = flags.insecure
	}
	if flags.verbose && cfg.Output.Verbose < 1 {
		cfg.Output.Verbose = 1
	}
	if flags.trace {
		cfg.Output.Verbose = 2
	}
}

// parseMagnitudes reads "8,4,9". Unparsable entries become 0 so Validate rejects them.
func parseMagnitudes(s string) []int {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			n = 0
		}
		out = append(out, n)
	}
	return out
}

func runScan(ctx context.Context, cfg *config.Config) error {
	startTime := time.Now()

	level := logger.INFO
	switch {
	case cfg.Output.LogLevel != "" && cfg.Output.Verbose == 0:
		level = logger.ParseLevel(cfg.Output.LogLevel)
	case cfg.Output.Verbose >= 2:
		level = logger.TRACE
	case cfg.Output.Verbose == 1:
		level = logger.DEBUG
	}
	log := logger.NewLogger(level)

	if timedelay.IsMonotonic(cfg.TimeDelay.Magnitudes) && len(cfg.TimeDelay.Magnitudes) > 1 {
		log.Warn("Magnitudes %v never decrease; a slowing target can match them by chance.", cfg.TimeDelay.Magnitudes)
	}

	target, err := buildTarget(cfg)
	if err != nil {
		return err
	}
	if len(target.ParamNames) == 0 {
		return fmt.Errorf("no parameters to test in %s", cfg.Target)
	}

	client := httpclient.NewClient(log, httpclient.ClientOptions{
		Timeout:            time.Duration(cfg.Timeout) * time.Second,
		InsecureSkipVerify: cfg.Insecure,
		UserAgent:          cfg.UserAgent,
		MaxRetries:         cfg.MaxRetries,
		RequestDelay:       time.Duration(cfg.Delay) * time.Millisecond,
		RateLimit:          cfg.RateLimit,
		TargetBaseURL:      cfg.Target,
		AuthCookie:         cfg.Authentication.Cookie,
		AuthHeaders:        cfg.Authentication.Headers,
	})
	client.RegisterGrep(func(resp *httpclient.Response) {
		if evidence := payloads.FindSQLError(resp.BodyString()); evidence != "" {
			log.Warn("Database error in response %d (%s): %s", resp.ID, resp.URL, evidence)
		}
	})

	platform := cfg.Platform
	var tech map[string]string
	if platform == "" && cfg.Fingerprint {
		fp := fingerprint.NewFingerprinter(client, log).Analyze(ctx, cfg.Target)
		tech = fp
		platform = fp.Platform()
		if platform != "" {
			log.Info("Detected platform hint: %s", platform)
		}
	}

	opts := scanner.ScannerOptions{
		Concurrency:  cfg.Concurrency,
		Platform:     platform,
		Magnitudes:   cfg.TimeDelay.Magnitudes,
		DeltaPercent: cfg.TimeDelay.DeltaPercent,
		Modes:        cfg.Modes,
		Baseliner: timedelay.NewEstimator(client, log, timedelay.EstimatorOptions{
			Samples:   cfg.TimeDelay.BaselineSamples,
			CacheSize: cfg.TimeDelay.BaselineCacheSize,
			TTL:       cfg.TimeDelay.BaselineTTL,
			Timeout:   cfg.TimeDelay.BaselineTimeout,
		}),
	}

	manager := scanner.NewManager(client, log, opts)
	names, err := registerScanners(manager, cfg.Scanners)
	if err != nil {
		return err
	}
	if level == logger.INFO {
		manager.SetProgressWriter(os.Stdout)
	}

	log.Info("Scanning %s %s (params: %s) with %s", target.Method, target.URL, strings.Join(target.ParamNames, ","), strings.Join(names, ","))
	vulns := dedupe(manager.RunScans(ctx, []mutant.Target{target}))
	printFindings(log, vulns)

	if cfg.Output.OutputFile != "" {
		report := reporter.NewReport(cfg.Target, startTime)
		report.Finalize(time.Now(), startTime, vulns, names, opts, tech, []mutant.Target{target})
		path := reportPath(cfg.Output.OutputFile)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create reports directory: %w", err)
		}
		if err := reporter.WriteJSONReport(report, path); err != nil {
			return err
		}
		log.Info("JSON report saved to %s", path)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// buildTarget turns the configured URL, method and body into a scan target.
func buildTarget(cfg *config.Config) (mutant.Target, error) {
	u, err := url.Parse(cfg.Target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return mutant.Target{}, fmt.Errorf("invalid target URL %q", cfg.Target)
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = "GET"
	}
	target := mutant.Target{Method: method, URL: cfg.Target, FormPostData: cfg.Data}
	if method != "GET" && method != "POST" {
		return mutant.Target{}, fmt.Errorf("unsupported method %q", cfg.Method)
	}

	if len(cfg.Params) > 0 {
		target.ParamNames = append([]string(nil), cfg.Params...)
		return target, nil
	}
	values, err := target.Params()
	if err != nil {
		return mutant.Target{}, fmt.Errorf("parse parameters: %w", err)
	}
	for name := range values {
		target.ParamNames = append(target.ParamNames, name)
	}
	sort.Strings(target.ParamNames)
	return target, nil
}

// registerScanners adds the scanners named in list and returns their short names.
func registerScanners(m *scanner.Manager, list string) ([]string, error) {
	available := map[string]func() scanner.Scanner{
		"sqli":         func() scanner.Scanner { return sqli.NewSQLiScanner() },
		"cmdinjection": func() scanner.Scanner { return cmdinjection.NewCommandInjectionScanner() },
		"eval":         func() scanner.Scanner { return eval.NewEvalScanner() },
	}
	order := []string{"sqli", "cmdinjection", "eval"}

	requested := splitList(list)
	if len(requested) == 1 && requested[0] == "all" {
		requested = order
	}
	var names []string
	for _, name := range requested {
		newScanner, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("unknown scanner %q (available: %s)", name, strings.Join(order, ","))
		}
		m.RegisterScanner(newScanner())
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, errors.New("no scanner selected")
	}
	return names, nil
}

// dedupe keeps the first finding per (type, URL path, parameter).
func dedupe(vulns []scanner.VulnerabilityResult) []scanner.VulnerabilityResult {
	seen := make(map[string]bool)
	var out []scanner.VulnerabilityResult
	for _, v := range vulns {
		path := v.URL
		if u, err := url.Parse(v.URL); err == nil {
			path = u.Path
		}
		key := fmt.Sprintf("%s|%s|%s", v.VulnerabilityType, path, v.Parameter)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func printFindings(log *logger.Logger, vulns []scanner.VulnerabilityResult) {
	log.Info("--- Scan Results ---")
	if len(vulns) == 0 {
		log.Info("No vulnerabilities found.")
		return
	}
	for _, vuln := range vulns {
		log.Success("--------------------------------------------------")
		log.Success("Vulnerability Found: %s", vuln.VulnerabilityType)
		log.Success("  URL: %s", vuln.URL)
		log.Success("  Parameter: %s (%s)", vuln.Parameter, vuln.Location)
		log.Success("  Payload: %s", vuln.Payload)
		log.Success("  Severity: %s", vuln.Severity)
		log.Success("  Details: %s", vuln.Details)
		if vuln.Evidence != "" {
			log.Success("  Evidence: %s", vuln.Evidence)
		}
	}
	log.Success("--------------------------------------------------")
	log.Info("Total unique vulnerabilities reported: %d", len(vulns))
}

// reportPath places relative report paths under reports/.
func reportPath(p string) string {
	const reportsDir = "reports"
	if filepath.IsAbs(p) || strings.HasPrefix(p, reportsDir+string(os.PathSeparator)) {
		return p
	}
	return filepath.Join(reportsDir, p)
}
