package scanner

import (
	"context"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"
)

// Scanner is one vulnerability-class plugin.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, target mutant.Target, client *httpclient.Client, log *logger.Logger, opts ScannerOptions) ([]VulnerabilityResult, error)
}
