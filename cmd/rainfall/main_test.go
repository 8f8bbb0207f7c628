package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rainfall-predictor/internal/evaluate"
	"rainfall-predictor/internal/ml"
	"rainfall-predictor/internal/rainfall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range append(cmd.Commands(), cmd) {
		c.Flags().VisitAll(reset)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func testArtifacts(t *testing.T) string {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SCORER_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()
	require.NoError(t, rainfall.WriteArtifacts(dir, rainfall.DefaultTestArtifacts()))
	return dir
}

func observationArgs(humidity string) []string {
	return []string{
		"--pressure", "1012", "--temperature", "20", "--dewpoint", "15",
		"--humidity", humidity, "--cloud", "50", "--sunshine", "6",
		"--winddirection", "180", "--windspeed", "10",
	}
}

func TestPredictCommand(t *testing.T) {
	dir := testArtifacts(t)

	args := append([]string{"predict", "--artifacts", dir, "--threshold", "0.5"}, observationArgs("90")...)
	out, err := execute(t, args...)
	require.NoError(t, err)

	var res rainfall.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, ml.LabelRain, res.Label)
	assert.Equal(t, 0.5, res.Threshold)
	assert.Equal(t, "test", res.ModelVersion)
}

func TestPredictCommandMissingFlags(t *testing.T) {
	dir := testArtifacts(t)

	_, err := execute(t, "predict", "--artifacts", dir, "--pressure", "1012")
	require.Error(t, err)
	assert.True(t, rainfall.IsValidation(err))
	assert.Contains(t, err.Error(), "humidity")
}

func TestTransformCommand(t *testing.T) {
	dir := testArtifacts(t)

	args := append([]string{"transform", "--artifacts", dir}, observationArgs("80")...)
	out, err := execute(t, args...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 16)
	assert.True(t, strings.HasPrefix(lines[1], "pressure"))
	assert.Contains(t, out, "winddirection_cos")
	assert.Contains(t, out, "cloud_yeo^2")
}

func TestEvaluateCommand(t *testing.T) {
	dir := testArtifacts(t)

	data := filepath.Join(t.TempDir(), "weather.csv")
	csv := "pressure,temparature,dewpoint,humidity,cloud,sunshine,winddirection,windspeed,rainfall\n" +
		"1012,20,15,90,50,6,180,10,yes\n" +
		"1012,20,15,70,50,6,180,10,no\n"
	require.NoError(t, os.WriteFile(data, []byte(csv), 0o644))
	output := filepath.Join(t.TempDir(), "report")

	out, err := execute(t, "evaluate", "--artifacts", dir, "--threshold", "0.5", "--data", data, "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Scored 2 of 2 rows")
	assert.Contains(t, out, "accuracy 1.0000")

	assert.FileExists(t, filepath.Join(output, evaluate.SummaryFile))
	assert.FileExists(t, filepath.Join(output, evaluate.JSONFile))
}

func TestEvaluateCommandRequiresData(t *testing.T) {
	dir := testArtifacts(t)

	_, err := execute(t, "evaluate", "--artifacts", dir)
	assert.Error(t, err)
}
