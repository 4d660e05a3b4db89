package timedelay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Baseliner returns the normal, non-delayed round trip time for a mutant, in seconds.
type Baseliner interface {
	Baseline(ctx context.Context, m *mutant.Mutant, debuggingID string) float64
}

// EstimatorOptions tunes an Estimator.
type EstimatorOptions struct {
	Samples   int           // Requests per measurement (default 3).
	CacheSize int           // Number of mutants kept (default 512).
	TTL       time.Duration // How long a measurement is reused (default 60s).
	Timeout   time.Duration // Per-request timeout for a baseline sample (default 10s).
	Fallback  float64       // Seconds returned when nothing could be measured (default 0).
}

// Estimator measures baseline RTTs and caches them per mutant key.
// It is safe for concurrent use; concurrent misses for the same key share one measurement.
type Estimator struct {
	sender Sender
	log    *logger.Logger
	opts   EstimatorOptions
	cache  *expirable.LRU[string, float64]
	known  *lru.Cache[string, float64] // last good value per key, survives cache expiry
	group  singleflight.Group
}

var errNoSamples = errors.New("no baseline sample succeeded")

// NewEstimator creates an Estimator that measures through sender.
func NewEstimator(sender Sender, log *logger.Logger, opts EstimatorOptions) *Estimator {
	if opts.Samples <= 0 {
		opts.Samples = 3
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 512
	}
	if opts.TTL <= 0 {
		opts.TTL = 60 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	known, _ := lru.New[string, float64](opts.CacheSize)
	return &Estimator{
		sender: sender,
		log:    log,
		opts:   opts,
		cache:  expirable.NewLRU[string, float64](opts.CacheSize, nil, opts.TTL),
		known:  known,
	}
}

// Baseline returns the cached estimate for m, measuring it on a miss.
// When measuring fails the last known value for the key is kept, otherwise Fallback is returned.
func (e *Estimator) Baseline(ctx context.Context, m *mutant.Mutant, debuggingID string) float64 {
	key := m.Key()
	if v, ok := e.cache.Get(key); ok {
		return v
	}

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		if v, ok := e.cache.Get(key); ok {
			return v, nil
		}
		avg, err := e.measure(ctx, m, debuggingID)
		if err != nil {
			return nil, err
		}
		e.cache.Add(key, avg)
		e.known.Add(key, avg)
		return avg, nil
	})
	if err != nil {
		fallback := e.opts.Fallback
		if prev, ok := e.known.Get(key); ok {
			fallback = prev
		}
		e.log.Debug("TimeDelay: [did=%s] baseline measurement failed for %s: %v; using fallback=%.3f",
			debuggingID, m, err, fallback)
		return fallback
	}
	return v.(float64)
}

// Forget drops the cached estimate for m.
func (e *Estimator) Forget(m *mutant.Mutant) {
	e.cache.Remove(m.Key())
	e.known.Remove(m.Key())
}

// measure sends the un-injected request Samples times and smooths the wait times.
func (e *Estimator) measure(ctx context.Context, m *mutant.Mutant, debuggingID string) (float64, error) {
	clean := m.Clean()

	samples := make([]float64, 0, e.opts.Samples)
	var lastErr error
	for i := 0; i < e.opts.Samples; i++ {
		req, err := clean.Request(ctx)
		if err != nil {
			return 0, fmt.Errorf("build baseline request: %w", err)
		}
		resp, err := e.sender.Send(ctx, req, httpclient.SendOptions{
			Timeout:     e.opts.Timeout,
			UseCache:    false,
			DebuggingID: debuggingID,
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		samples = append(samples, resp.WaitSeconds())
	}
	if len(samples) == 0 {
		if lastErr == nil {
			lastErr = errNoSamples
		}
		return 0, fmt.Errorf("%w: %v", errNoSamples, lastErr)
	}

	avg := smooth(samples)
	e.log.Debug("TimeDelay: [did=%s] baseline=%.3f samples=%v for %s", debuggingID, avg, samples, m.Key())
	return avg, nil
}

// smooth averages samples, dropping the slowest one when there are at least three.
func smooth(samples []float64) float64 {
	s := append([]float64(nil), samples...)
	sort.Float64s(s)
	if len(s) >= 3 {
		s = s[:len(s)-1]
	}
	var total float64
	for _, v := range s {
		total += v
	}
	return total / float64(len(s))
}
