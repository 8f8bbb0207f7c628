package main

import (
	"fmt"
	"path/filepath"
	"time"

	"rainfall-predictor/internal/evaluate"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	evalData   string
	evalOutput string
)

// evaluateCmd replays a labelled CSV through the model
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the model against labelled observations",
	Long: `Replays a labelled CSV through the predictor and reports the confusion
matrix, accuracy, precision, recall and F1 at the configured threshold, plus
a sweep of thresholds from 0.05 to 0.95.

The header must name the eight measurements (temparature is accepted for
temperature) and a rainfall column holding 1/0 or yes/no.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalData, "data", "d", "", "Labelled CSV file")
	evaluateCmd.Flags().StringVarP(&evalOutput, "output", "o", "", "Output directory (default: evaluation_<timestamp>)")
	_ = evaluateCmd.MarkFlagRequired("data")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	svc, settings, err := loadService(cmd)
	if err != nil {
		return err
	}

	ds, err := evaluate.LoadCSV(evalData)
	if err != nil {
		return err
	}

	engine, err := evaluate.NewEngine(svc, settings.ProbThreshold)
	if err != nil {
		return err
	}
	results, err := engine.Run(cmd.Context(), ds)
	if err != nil {
		return err
	}

	output := evalOutput
	if output == "" {
		output = fmt.Sprintf("evaluation_%s", time.Now().Format("20060102_150405"))
	}
	if err := evaluate.NewReporter(results, output).GenerateReport(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scored %d of %d rows (%d unparseable, %d invalid)\n",
		results.Scored, results.Samples, results.Skipped, results.Invalid)
	fmt.Fprintf(out, "Threshold %.2f: accuracy %.4f, precision %.4f, recall %.4f, F1 %.4f\n",
		results.Score.Threshold, results.Score.Accuracy, results.Score.Precision, results.Score.Recall, results.Score.F1)
	fmt.Fprintf(out, "Best F1 %.4f at threshold %.2f\n", results.Best.F1, results.Best.Threshold)
	fmt.Fprintf(out, "Reports written to %s\n", filepath.Clean(output))

	log.Debug().Str("output", output).Msg("Evaluation reports written")
	return nil
}
