package sqli

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"Blindtime/internal/logger"
	"Blindtime/internal/mutant"
	"Blindtime/internal/scanner"
	"Blindtime/internal/scanner/scannertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemTarget = mutant.Target{
	Method:     http.MethodGet,
	URL:        "http://shop.test/item?id=1&csrf_token=abc",
	ParamNames: []string{"id", "csrf_token"},
}

const noResults = "<html><body><h1>Items</h1><p>No results match your query</p></body></html>"

func scan(t *testing.T, target mutant.Target, respond scannertest.RespondFunc) ([]scanner.VulnerabilityResult, *scannertest.Sender) {
	t.Helper()
	sender := scannertest.NewSender("id", respond)
	findings, err := NewSQLiScannerWithSender(sender).Scan(context.Background(), target, nil, logger.Discard(), scanner.ScannerOptions{})
	require.NoError(t, err)
	return findings, sender
}

func TestSQLiScanner_ErrorBased(t *testing.T) {
	findings, _ := scan(t, itemTarget, func(value string) (float64, string) {
		if strings.HasSuffix(value, "'") {
			return scannertest.BaseRTT, "<b>You have an error in your SQL syntax</b> near ''' at line 1"
		}
		return scannertest.BaseRTT, scannertest.Page
	})

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, "SQL Injection (Error-Based)", f.VulnerabilityType)
	assert.Equal(t, "id", f.Parameter)
	assert.Equal(t, "'", f.Payload)
	assert.Equal(t, "GET", f.Method)
	assert.Equal(t, "query", f.Location)
	assert.Equal(t, "You have an error in your SQL syntax", f.Evidence)
	assert.Contains(t, f.Details, "mysql")
	assert.Len(t, f.ResponseIDs, 1)
}

func TestSQLiScanner_TimeDelay(t *testing.T) {
	findings, _ := scan(t, itemTarget, scannertest.Sleeps(regexp.MustCompile(`^1 or SLEEP\((\d+)\)$`)))

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, "SQL Injection (Time-Delay)", f.VulnerabilityType)
	assert.Equal(t, "1 or SLEEP(8)", f.Payload)
	assert.Contains(t, f.Details, "mysql")
	assert.Len(t, f.ResponseIDs, 5)
	assert.Equal(t, "Blind SQL Injection Scanner", f.ScannerName)
}

func TestSQLiScanner_TimeDelayUsesDBMSFromPageError(t *testing.T) {
	const page = "<html><body>ORA-00933: SQL command not properly ended</body></html>"
	delay := scannertest.Sleeps(regexp.MustCompile(`dbms_pipe\.receive_message\('a',(\d+)\)$`))
	findings, sender := scan(t, itemTarget, func(value string) (float64, string) {
		wait, _ := delay(value)
		return wait, page
	})

	require.Len(t, findings, 1)
	assert.Equal(t, "SQL Injection (Time-Delay)", findings[0].VulnerabilityType)
	assert.Contains(t, findings[0].Details, "oracle")
	for _, v := range sender.Values() {
		assert.NotContains(t, v, "SLEEP(", "only oracle payloads are tried")
	}
}

func TestSQLiScanner_BooleanBased(t *testing.T) {
	findings, _ := scan(t, itemTarget, func(value string) (float64, string) {
		if value == "1' AND '1'='2" {
			return scannertest.BaseRTT, noResults
		}
		return scannertest.BaseRTT, scannertest.Page
	})

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, "SQL Injection (Boolean-Based)", f.VulnerabilityType)
	assert.Equal(t, "' OR '1'='1", f.Payload)
	assert.Len(t, f.ResponseIDs, 3)
}

func TestSQLiScanner_UnstablePageSkipsBooleanTest(t *testing.T) {
	var n atomic.Int64
	findings, _ := scan(t, itemTarget, func(value string) (float64, string) {
		if value == "1" && n.Add(1)%2 == 0 {
			return scannertest.BaseRTT, "<html><body>Rotating banner with completely different content today</body></html>"
		}
		if value == "1' AND '1'='2" {
			return scannertest.BaseRTT, noResults
		}
		return scannertest.BaseRTT, scannertest.Page
	})
	assert.Empty(t, findings)
}

func TestSQLiScanner_NotVulnerable(t *testing.T) {
	findings, sender := scan(t, itemTarget, scannertest.NotVulnerable)
	assert.Empty(t, findings)
	assert.NotEmpty(t, sender.Values())
}

func TestSQLiScanner_SkipsSpecialPaths(t *testing.T) {
	target := mutant.Target{Method: http.MethodGet, URL: "http://shop.test/logout?id=1", ParamNames: []string{"id"}}
	findings, sender := scan(t, target, scannertest.NotVulnerable)
	assert.Empty(t, findings)
	assert.Empty(t, sender.Values())
}
