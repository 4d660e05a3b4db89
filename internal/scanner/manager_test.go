package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubScanner reports one finding per target after an optional pause.
type stubScanner struct {
	name  string
	pause time.Duration
	err   error

	running atomic.Int32
	peak    atomic.Int32
	calls   atomic.Int32
}

func (s *stubScanner) Name() string { return s.name }

func (s *stubScanner) Scan(ctx context.Context, target mutant.Target, _ *httpclient.Client, _ *logger.Logger, _ ScannerOptions) ([]VulnerabilityResult, error) {
	s.calls.Add(1)
	n := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.pause > 0 {
		time.Sleep(s.pause)
	}
	if s.err != nil {
		return nil, s.err
	}
	return []VulnerabilityResult{{URL: target.URL, ScannerName: s.name}}, nil
}

func targets(n int) []mutant.Target {
	out := make([]mutant.Target, n)
	for i := range out {
		out[i] = mutant.Target{Method: "GET", URL: fmt.Sprintf("http://app.test/item?id=%d", i), ParamNames: []string{"id"}}
	}
	return out
}

// lockedBuffer is a bytes.Buffer safe for the spinner goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestManager_RunScansCollectsEveryJob(t *testing.T) {
	a := &stubScanner{name: "a", pause: 20 * time.Millisecond}
	b := &stubScanner{name: "b", pause: 20 * time.Millisecond}
	m := NewManager(nil, logger.Discard(), ScannerOptions{Concurrency: 3})
	m.RegisterScanner(a)
	m.RegisterScanner(b)
	require.Len(t, m.GetRegisteredScanners(), 2)

	findings := m.RunScans(context.Background(), targets(6))

	assert.Len(t, findings, 12)
	assert.EqualValues(t, 6, a.calls.Load())
	assert.EqualValues(t, 6, b.calls.Load())
	assert.LessOrEqual(t, a.peak.Load()+b.peak.Load(), int32(6))
}

func TestManager_ConcurrencyLimit(t *testing.T) {
	s := &stubScanner{name: "slow", pause: 30 * time.Millisecond}
	m := NewManager(nil, logger.Discard(), ScannerOptions{Concurrency: 2})
	m.RegisterScanner(s)

	m.RunScans(context.Background(), targets(8))

	assert.EqualValues(t, 8, s.calls.Load())
	assert.LessOrEqual(t, s.peak.Load(), int32(2))
	assert.GreaterOrEqual(t, s.peak.Load(), int32(1))
}

func TestManager_ZeroConcurrencyRunsSequentially(t *testing.T) {
	s := &stubScanner{name: "seq", pause: 5 * time.Millisecond}
	m := NewManager(nil, logger.Discard(), ScannerOptions{})
	m.RegisterScanner(s)

	m.RunScans(context.Background(), targets(4))
	assert.EqualValues(t, 1, s.peak.Load())
}

func TestManager_FailingScannerDoesNotStopOthers(t *testing.T) {
	var logs lockedBuffer
	bad := &stubScanner{name: "bad", err: errors.New("boom")}
	good := &stubScanner{name: "good"}
	m := NewManager(nil, logger.NewWriterLogger(&logs, logger.INFO), ScannerOptions{Concurrency: 2})
	m.RegisterScanner(bad)
	m.RegisterScanner(good)

	findings := m.RunScans(context.Background(), targets(3))

	assert.Len(t, findings, 3)
	for _, f := range findings {
		assert.Equal(t, "good", f.ScannerName)
	}
	assert.Equal(t, 3, strings.Count(logs.String(), "Scanner bad failed"))
}

func TestManager_CancelledContext(t *testing.T) {
	s := &stubScanner{name: "never"}
	m := NewManager(nil, logger.Discard(), ScannerOptions{Concurrency: 2})
	m.RegisterScanner(s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, m.RunScans(ctx, targets(5)))
	assert.Zero(t, s.calls.Load())
}

func TestManager_NothingToDo(t *testing.T) {
	m := NewManager(nil, logger.Discard(), ScannerOptions{})
	assert.Nil(t, m.RunScans(context.Background(), targets(2)))

	m.RegisterScanner(&stubScanner{name: "x"})
	assert.Nil(t, m.RunScans(context.Background(), nil))
}

func TestManager_Spinner(t *testing.T) {
	var progress lockedBuffer
	m := NewManager(nil, logger.Discard(), ScannerOptions{Concurrency: 1})
	m.RegisterScanner(&stubScanner{name: "slow", pause: 250 * time.Millisecond})
	m.SetProgressWriter(&progress)

	m.RunScans(context.Background(), targets(1))
	assert.Contains(t, progress.String(), "Scanning...")
	assert.True(t, strings.HasSuffix(progress.String(), "\r"))
}
