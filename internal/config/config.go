package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"Blindtime/internal/timedelay"

	"gopkg.in/yaml.v3"
)

// OutputConfig holds configuration settings related to output and logging.
type OutputConfig struct {
	OutputFile string `yaml:"output_file"` // Path to save the JSON report.
	Verbose    int    `yaml:"verbose"`     // 0 info, 1 debug, 2 trace.
	LogLevel   string `yaml:"log_level"`   // trace, debug, info, warn, error; overrides Verbose.
}

// TimeDelayConfig tunes the time-delay confirmation engine.
type TimeDelayConfig struct {
	Magnitudes        []int         `yaml:"magnitudes"`          // Sleep sequence in seconds, each in 1..99.
	DeltaPercent      float64       `yaml:"delta_percent"`       // Widening of the upper bound.
	BaselineSamples   int           `yaml:"baseline_samples"`    // Clean requests per baseline measurement.
	BaselineCacheSize int           `yaml:"baseline_cache_size"` // Endpoints whose baseline is remembered.
	BaselineTTL       time.Duration `yaml:"baseline_ttl"`        // Lifetime of a cached baseline.
	BaselineTimeout   time.Duration `yaml:"baseline_timeout"`    // Timeout of a baseline request.
}

// Config is the main struct to hold all configuration data from the YAML file.
type Config struct {
	Target      string   `yaml:"target"`          // Target URL for scanning.
	Method      string   `yaml:"method"`          // GET or POST.
	Data        string   `yaml:"data"`            // Form body for POST targets.
	Params      []string `yaml:"params"`          // Parameters to test; empty means every parameter found.
	Concurrency int      `yaml:"concurrency"`     // Number of concurrent jobs.
	MaxRetries  int      `yaml:"max_retries"`     // Maximum number of retries for non-timed requests.
	Delay       int      `yaml:"delay"`           // Delay between retries in milliseconds.
	RateLimit   float64  `yaml:"rate_limit"`      // Requests per second; 0 is unlimited.
	Timeout     int      `yaml:"timeout"`         // Default request timeout in seconds.
	Scanners    string   `yaml:"scanners_to_run"` // Comma-separated list of scanners to run.
	Platform    string   `yaml:"platform"`        // Platform hint narrowing the payloads.
	Fingerprint bool     `yaml:"fingerprint"`     // Detect the platform when none is given.
	Modes       []string `yaml:"modes"`           // Injection modes: replace, append.
	Insecure    bool     `yaml:"insecure"`        // Skip TLS certificate verification.

	// UserAgent field allows specifying a custom User-Agent header.
	UserAgent string `yaml:"user_agent"`

	TimeDelay TimeDelayConfig `yaml:"time_delay"`

	// Output configuration settings.
	Output OutputConfig `yaml:"output"`

	// Authentication configuration settings.
	Authentication struct {
		// Cookie field for static cookie-based authentication.
		Cookie string `yaml:"cookie"`
		// Headers map for static header-based authentication (e.g., Authorization tokens).
		Headers map[string]string `yaml:"headers"`
	} `yaml:"authentication"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Method:      "GET",
		Concurrency: 4,
		MaxRetries:  1,
		Timeout:     15,
		Scanners:    "sqli,cmdinjection,eval",
		TimeDelay: TimeDelayConfig{
			Magnitudes:        append([]int(nil), timedelay.DefaultMagnitudes...),
			DeltaPercent:      timedelay.DefaultDeltaPercent,
			BaselineSamples:   3,
			BaselineCacheSize: 512,
			BaselineTTL:       60 * time.Second,
			BaselineTimeout:   10 * time.Second,
		},
	}
}

// LoadConfig reads the configuration from a YAML file on top of Default().
// A missing file is not an error.
func LoadConfig(filePath string) (*Config, error) {
	config := Default()

	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("read config %s: %w", filePath, err)
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filePath, err)
	}
	return config, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if err := timedelay.ValidateMagnitudes(c.TimeDelay.Magnitudes); err != nil {
		errs = append(errs, fmt.Errorf("time_delay.magnitudes: %w", err))
	}
	// Zero is taken as "unset" further down and would silently become the default.
	if c.TimeDelay.DeltaPercent <= 0 || c.TimeDelay.DeltaPercent > 1 {
		errs = append(errs, fmt.Errorf("time_delay.delta_percent must be within (0,1], got %v", c.TimeDelay.DeltaPercent))
	}
	if c.TimeDelay.BaselineSamples < 0 {
		errs = append(errs, fmt.Errorf("time_delay.baseline_samples must not be negative"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative"))
	}
	for _, m := range c.Modes {
		if m != "replace" && m != "append" {
			errs = append(errs, fmt.Errorf("unknown injection mode %q", m))
		}
	}
	return errors.Join(errs...)
}
