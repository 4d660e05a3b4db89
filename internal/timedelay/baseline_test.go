package timedelay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmooth(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"single", []float64{0.5}, 0.5},
		{"two samples are averaged", []float64{0.2, 0.4}, 0.3},
		{"slowest of three dropped", []float64{0.3, 5, 0.1}, 0.2},
		{"slowest of four dropped", []float64{1, 2, 3, 100}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, smooth(tt.samples), 1e-9)
		})
	}
}

func TestEstimator_CachesPerMutant(t *testing.T) {
	sender := &scriptedSender{param: "id", respond: func(string) (float64, error) { return 0.2, nil }}
	est := NewEstimator(sender, nil, EstimatorOptions{Samples: 3})
	m := testMutant(t)

	first := est.Baseline(context.Background(), m, "a")
	second := est.Baseline(context.Background(), m.WithValue("sleep(3)"), "b")

	assert.InDelta(t, 0.2, first, 1e-9)
	assert.Equal(t, first, second)
	assert.Len(t, sender.sent(), 3)
	for _, c := range sender.sent() {
		assert.Equal(t, "1", c.Value, "baselines are measured without the payload")
		assert.Equal(t, 10*time.Second, c.Opts.Timeout)
	}

	est.Forget(m)
	est.Baseline(context.Background(), m, "c")
	assert.Len(t, sender.sent(), 6)
}

func TestEstimator_FallbackWhenNothingMeasured(t *testing.T) {
	sender := &scriptedSender{param: "id", respond: func(string) (float64, error) { return 0, errors.New("refused") }}
	est := NewEstimator(sender, nil, EstimatorOptions{Samples: 2, Fallback: 1.5})

	assert.Equal(t, 1.5, est.Baseline(context.Background(), testMutant(t), "x"))
	assert.Len(t, sender.sent(), 2)
}

func TestEstimator_PartialSamples(t *testing.T) {
	var n atomic.Int32
	sender := &scriptedSender{param: "id", respond: func(string) (float64, error) {
		if n.Add(1) == 2 {
			return 0, errors.New("reset")
		}
		return 0.4, nil
	}}
	est := NewEstimator(sender, nil, EstimatorOptions{Samples: 3})

	assert.InDelta(t, 0.4, est.Baseline(context.Background(), testMutant(t), "x"), 1e-9)
}

func TestEstimator_KeepsLastKnownValueAfterExpiry(t *testing.T) {
	var failing atomic.Bool
	sender := &scriptedSender{param: "id", respond: func(string) (float64, error) {
		if failing.Load() {
			return 0, errors.New("refused")
		}
		return 0.3, nil
	}}
	est := NewEstimator(sender, nil, EstimatorOptions{Samples: 1, TTL: 20 * time.Millisecond, Fallback: 9})
	m := testMutant(t)

	require.InDelta(t, 0.3, est.Baseline(context.Background(), m, "x"), 1e-9)
	failing.Store(true)
	time.Sleep(60 * time.Millisecond)

	assert.InDelta(t, 0.3, est.Baseline(context.Background(), m, "x"), 1e-9)
	assert.Len(t, sender.sent(), 2, "the expired entry must be measured again")
}

func TestEstimator_ConcurrentCallersShareOneMeasurement(t *testing.T) {
	release := make(chan struct{})
	sender := &scriptedSender{param: "id", respond: func(string) (float64, error) {
		<-release
		return 0.25, nil
	}}
	est := NewEstimator(sender, nil, EstimatorOptions{Samples: 3})
	m := testMutant(t)

	var wg sync.WaitGroup
	results := make([]float64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = est.Baseline(context.Background(), m, "x")
		}(i)
	}
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.InDelta(t, 0.25, r, 1e-9)
	}
	assert.Len(t, sender.sent(), 3)
}
