package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Report file names.
const (
	SummaryFile  = "evaluation_summary.txt"
	JSONFile     = "evaluation.json"
	OutcomesFile = "evaluation_outcomes.csv"
)

// Reporter writes evaluation reports
type Reporter struct {
	results    *Results
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport writes the summary, the JSON report and the per-sample log.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateJSONReport(); err != nil {
		return err
	}
	return r.generateOutcomeLog()
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	res := r.results
	fmt.Fprintf(file, "RAINFALL MODEL EVALUATION\n")
	fmt.Fprintf(file, "=========================\n\n")

	if res.Source != "" {
		fmt.Fprintf(file, "Data: %s\n", res.Source)
	}
	fmt.Fprintf(file, "Model Version: %s\n", res.ModelVersion)
	fmt.Fprintf(file, "Run At: %s (%s)\n\n", res.StartTime.Format("2006-01-02 15:04:05"), res.Duration)

	fmt.Fprintf(file, "SAMPLES\n")
	fmt.Fprintf(file, "-------\n")
	fmt.Fprintf(file, "Rows: %d\n", res.Samples)
	fmt.Fprintf(file, "Scored: %d (%d rain)\n", res.Scored, res.Positives)
	fmt.Fprintf(file, "Unparseable: %d\n", res.Skipped)
	fmt.Fprintf(file, "Failed Validation: %d\n\n", res.Invalid)

	fmt.Fprintf(file, "AT THRESHOLD %.2f\n", res.Score.Threshold)
	fmt.Fprintf(file, "-----------------\n")
	writeScore(file, res.Score)

	fmt.Fprintf(file, "\nTHRESHOLD SWEEP\n")
	fmt.Fprintf(file, "---------------\n")
	fmt.Fprintf(file, "%-10s %-10s %-10s %-10s %-10s\n", "Threshold", "Accuracy", "Precision", "Recall", "F1")
	for _, s := range res.Sweep {
		fmt.Fprintf(file, "%-10.2f %-10.4f %-10.4f %-10.4f %-10.4f\n",
			s.Threshold, s.Accuracy, s.Precision, s.Recall, s.F1)
	}
	fmt.Fprintf(file, "\nBest F1: %.4f at threshold %.2f\n", res.Best.F1, res.Best.Threshold)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func writeScore(file *os.File, s Score) {
	c := s.Confusion
	fmt.Fprintf(file, "                 predicted rain   predicted no-rain\n")
	fmt.Fprintf(file, "actual rain      %-16d %d\n", c.TruePositive, c.FalseNegative)
	fmt.Fprintf(file, "actual no-rain   %-16d %d\n\n", c.FalsePositive, c.TrueNegative)
	fmt.Fprintf(file, "Accuracy: %.4f\n", s.Accuracy)
	fmt.Fprintf(file, "Precision: %.4f\n", s.Precision)
	fmt.Fprintf(file, "Recall: %.4f\n", s.Recall)
	fmt.Fprintf(file, "F1: %.4f\n", s.F1)
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, JSONFile)
	data, err := json.MarshalIndent(r.results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

func (r *Reporter) generateOutcomeLog() error {
	csvPath := filepath.Join(r.outputPath, OutcomesFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create outcome log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"line", "actual", "probability", "label"}); err != nil {
		return err
	}
	for _, o := range r.results.Outcomes {
		actual := "no"
		if o.Actual {
			actual = "yes"
		}
		record := []string{
			strconv.Itoa(o.Line),
			actual,
			strconv.FormatFloat(o.Probability, 'f', 6, 64),
			string(o.Label),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log.Info().Str("file", csvPath).Int("rows", len(r.results.Outcomes)).Msg("Outcome log generated")
	return nil
}
