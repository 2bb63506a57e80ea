package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/designeval/pkg/option"
	"github.com/entrhq/designeval/pkg/partition"
)

const (
	StatusCompleted = "completed"
	StatusNoWinner  = "no_winner"
	StatusFailed    = "failed"
)

// Summary describes one evaluation run.
type Summary struct {
	RunID      string             `json:"run_id"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Input      string             `json:"input"`
	Output     string             `json:"output"`
	StartTime  time.Time          `json:"start_time"`
	EndTime    time.Time          `json:"end_time"`
	Duration   time.Duration      `json:"duration"`
	Options    int                `json:"options"`
	Filtered   int                `json:"filtered"`
	Evaluated  int                `json:"evaluated"`
	Best       *Winner            `json:"best,omitempty"`
	Partitions []partition.Report `json:"partitions"`
}

// Winner is the serialized form of a BestDesign.
type Winner struct {
	Row    int               `json:"row"`
	ID     string            `json:"design_option"`
	Metric float64           `json:"metric"`
	Fields map[string]string `json:"fields,omitempty"`
}

// NewWinner converts a BestDesign for the summary.
func NewWinner(best BestDesign) *Winner {
	return &Winner{
		Row:    best.Index,
		ID:     best.Result.Option.ID,
		Metric: best.Result.Metric.Value,
		Fields: best.Result.Option.Fields,
	}
}

// Absent returns the number of options without a metric.
func (s *Summary) Absent() int {
	return s.Options - s.Evaluated
}

// ArtifactWriter writes run summaries to a directory.
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{outputDir: outputDir}
}

// WriteAll writes summary.json and summary.md
func (w *ArtifactWriter) WriteAll(summary *Summary) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	if err := w.WriteSummaryJSON(summary); err != nil {
		return fmt.Errorf("failed to write summary JSON: %w", err)
	}

	if err := w.WriteSummaryMarkdown(summary); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}

	return nil
}

// WriteSummaryJSON writes the run summary as JSON
func (w *ArtifactWriter) WriteSummaryJSON(summary *Summary) error {
	path := filepath.Join(w.outputDir, "summary.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary JSON: %w", writeErr)
	}

	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *Summary) error {
	path := filepath.Join(w.outputDir, "summary.md")

	var md strings.Builder

	md.WriteString("# Design Evaluation Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", summary.RunID))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Input:** `%s`\n\n", summary.Input))
	md.WriteString(fmt.Sprintf("**Output:** `%s`\n\n", summary.Output))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration))

	md.WriteString("## Result\n\n")
	switch {
	case summary.Error != "":
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	case summary.Best != nil:
		md.WriteString(fmt.Sprintf("✅ **Best design option:** `%s` with metric %s (row %d)\n\n",
			summary.Best.ID, option.Present(summary.Best.Metric), summary.Best.Row))
	default:
		md.WriteString("⚠️ No valid metric found for any design option\n\n")
	}

	md.WriteString("## Options\n\n")
	md.WriteString(fmt.Sprintf("- **Total:** %d\n", summary.Options))
	md.WriteString(fmt.Sprintf("- **Filtered out:** %d\n", summary.Filtered))
	md.WriteString(fmt.Sprintf("- **Evaluated:** %d\n", summary.Evaluated))
	md.WriteString(fmt.Sprintf("- **Absent:** %d\n", summary.Absent()))

	if len(summary.Partitions) > 0 {
		md.WriteString("\n## Partitions\n\n")
		md.WriteString("| # | Rows | Evaluated | Failed | Duration | Error |\n")
		md.WriteString("|---|------|-----------|--------|----------|-------|\n")
		for _, p := range summary.Partitions {
			md.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %s | %s |\n",
				p.Index, p.Rows, p.Evaluated, p.Failed, p.Duration.Round(time.Millisecond), p.Error))
		}
	}

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return nil
}
