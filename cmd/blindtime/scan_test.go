package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"Blindtime/internal/config"
	"Blindtime/internal/logger"
	"Blindtime/internal/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMagnitudes(t *testing.T) {
	assert.Equal(t, []int{8, 4, 9}, parseMagnitudes("8, 4,9"))
	assert.Equal(t, []int{3, 0}, parseMagnitudes("3,x"))
	assert.Nil(t, parseMagnitudes(""))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"sqli", "eval"}, splitList(" SQLi,, eval ,"))
	assert.Nil(t, splitList(" , "))
}

func TestApplyFlags(t *testing.T) {
	cmd := newScanCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"-u", "http://app.test/ping",
		"-d", "host=1",
		"--magnitudes", "3,1,2",
		"--modes", "append",
		"-c", "2",
		"-v",
	}))
	cfg := config.Default()
	cfg.Platform = "unix"

	applyFlags(cmd, &scanFlags{
		target:      "http://app.test/ping",
		data:        "host=1",
		magnitudes:  "3,1,2",
		modes:       "append",
		concurrency: 2,
		verbose:     true,
	}, cfg)

	assert.Equal(t, "http://app.test/ping", cfg.Target)
	assert.Equal(t, "POST", cfg.Method, "-d implies POST")
	assert.Equal(t, "host=1", cfg.Data)
	assert.Equal(t, []int{3, 1, 2}, cfg.TimeDelay.Magnitudes)
	assert.Equal(t, []string{"append"}, cfg.Modes)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 1, cfg.Output.Verbose)
	assert.Equal(t, "unix", cfg.Platform, "unset flags keep the configured value")
	assert.Equal(t, 15, cfg.Timeout)
}

func TestBuildTarget(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.Config
		wantMethod string
		wantParams []string
		wantErr    bool
	}{
		{
			name:       "query parameters are sorted",
			cfg:        config.Config{Target: "http://app.test/item?sort=asc&id=1"},
			wantMethod: "GET",
			wantParams: []string{"id", "sort"},
		},
		{
			name:       "post body",
			cfg:        config.Config{Target: "http://app.test/ping", Method: "post", Data: "host=1&count=2"},
			wantMethod: "POST",
			wantParams: []string{"count", "host"},
		},
		{
			name:       "explicit parameters",
			cfg:        config.Config{Target: "http://app.test/item?id=1&sort=asc", Params: []string{"sort"}},
			wantMethod: "GET",
			wantParams: []string{"sort"},
		},
		{name: "relative url", cfg: config.Config{Target: "/item?id=1"}, wantErr: true},
		{name: "unsupported method", cfg: config.Config{Target: "http://app.test/item?id=1", Method: "PUT"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := buildTarget(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, target.Method)
			assert.Equal(t, tt.wantParams, target.ParamNames)
		})
	}
}

func TestRegisterScanners(t *testing.T) {
	m := scanner.NewManager(nil, logger.Discard(), scanner.ScannerOptions{})
	names, err := registerScanners(m, "all")
	require.NoError(t, err)
	assert.Equal(t, []string{"sqli", "cmdinjection", "eval"}, names)
	assert.Len(t, m.GetRegisteredScanners(), 3)

	_, err = registerScanners(scanner.NewManager(nil, logger.Discard(), scanner.ScannerOptions{}), "sqli,xss")
	assert.ErrorContains(t, err, `unknown scanner "xss"`)

	_, err = registerScanners(scanner.NewManager(nil, logger.Discard(), scanner.ScannerOptions{}), " ")
	assert.Error(t, err)
}

func TestDedupe(t *testing.T) {
	vulns := []scanner.VulnerabilityResult{
		{VulnerabilityType: "SQL Injection (Time-Delay)", URL: "http://app.test/item?id=1+or+SLEEP%288%29", Parameter: "id"},
		{VulnerabilityType: "SQL Injection (Time-Delay)", URL: "http://app.test/item?id=1%27+or+SLEEP%288%29", Parameter: "id"},
		{VulnerabilityType: "SQL Injection (Time-Delay)", URL: "http://app.test/item?sort=x", Parameter: "sort"},
		{VulnerabilityType: "Code Injection (Time-Delay)", URL: "http://app.test/item?id=x", Parameter: "id"},
	}
	out := dedupe(vulns)
	require.Len(t, out, 3)
	assert.Equal(t, vulns[0], out[0])
}

func TestReportPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "r.json")
	assert.Equal(t, abs, reportPath(abs))
	assert.Equal(t, filepath.Join("reports", "r.json"), reportPath("r.json"))
	assert.Equal(t, filepath.Join("reports", "r.json"), reportPath(filepath.Join("reports", "r.json")))
}

func TestListPayloads(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listPayloads(&out, &payloadsFlags{scanners: "cmdinjection", platform: "windows", magnitude: 5}))
	assert.Contains(t, out.String(), "[cmdinjection]")
	assert.Contains(t, out.String(), "ping -n 6 127.0.0.1")
	assert.NotContains(t, out.String(), "sleep 5")

	assert.Error(t, listPayloads(&out, &payloadsFlags{scanners: "xss"}))
}

// TestRunScan_EndToEnd sleeps for real against a local server.
func TestRunScan_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps for several seconds")
	}
	sleep := regexp.MustCompile(`^;sleep (\d+)$`)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m := sleep.FindStringSubmatch(r.URL.Query().Get("host")); m != nil {
			n, _ := strconv.Atoi(m[1])
			time.Sleep(time.Duration(n) * time.Second)
		}
		w.Write([]byte("<html><body>pong</body></html>"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Target = server.URL + "/ping?host=127.0.0.1"
	cfg.Scanners = "cmdinjection"
	cfg.Platform = "unix"
	cfg.Modes = []string{"replace"}
	cfg.TimeDelay.Magnitudes = []int{2, 1}
	cfg.Output.LogLevel = "error"
	cfg.Output.OutputFile = filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, runScan(context.Background(), cfg))

	raw, err := os.ReadFile(cfg.Output.OutputFile)
	require.NoError(t, err)
	var report struct {
		Vulnerabilities []scanner.VulnerabilityResult `json:"vulnerabilities"`
	}
	require.NoError(t, json.Unmarshal(raw, &report))
	require.Len(t, report.Vulnerabilities, 1)
	assert.Equal(t, ";sleep 2", report.Vulnerabilities[0].Payload)
	assert.Equal(t, "host", report.Vulnerabilities[0].Parameter)
	assert.Len(t, report.Vulnerabilities[0].ResponseIDs, 2)
}
