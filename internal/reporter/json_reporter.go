package reporter

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSONReport serializes the report as indented JSON and writes it to outputPath.
func WriteJSONReport(reportData *Report, outputPath string) error {
	jsonData, err := json.MarshalIndent(reportData, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		return fmt.Errorf("write report %s: %w", outputPath, err)
	}
	return nil
}
