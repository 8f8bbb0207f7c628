package main

import (
	"encoding/json"
	"fmt"
	"io"

	"rainfall-predictor/internal/rainfall"
	"rainfall-predictor/internal/weather"

	"github.com/spf13/cobra"
)

var station string

// predictCmd scores one observation given as flags
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict rainfall for one observation",
	Long: `Validates, transforms and scores one observation and prints the result
as JSON. Every measurement flag is required; missing or out-of-range values
are all reported together.`,
	Example: `  rainfall predict --pressure 1012 --temperature 20 --dewpoint 15 \
    --humidity 85 --cloud 70 --sunshine 3 --winddirection 180 --windspeed 12`,
	RunE: runPredict,
}

// transformCmd prints the engineered columns for one observation
var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Print the engineered feature columns for one observation",
	RunE:  runTransform,
}

func init() {
	for _, cmd := range []*cobra.Command{predictCmd, transformCmd} {
		for _, name := range observationFlags() {
			r := weather.Ranges[name]
			cmd.Flags().Float64(name, 0, fmt.Sprintf("%s in %s [%g, %g]", name, r.Unit, r.Min, r.Max))
		}
	}
	predictCmd.Flags().StringVar(&station, "station", "", "Station name recorded with the prediction")
}

func observationFlags() []string {
	return []string{"pressure", "temperature", "dewpoint", "humidity", "cloud", "sunshine", "winddirection", "windspeed"}
}

// observationFromFlags leaves unset flags nil so validation reports them
// as missing rather than as zero.
func observationFromFlags(cmd *cobra.Command) (weather.Observation, error) {
	obsValues := make(map[string]*float64)
	for _, name := range observationFlags() {
		if !cmd.Flags().Changed(name) {
			continue
		}
		v, err := cmd.Flags().GetFloat64(name)
		if err != nil {
			return weather.Observation{}, err
		}
		obsValues[name] = &v
	}

	return weather.Observation{
		Pressure:      obsValues["pressure"],
		Temperature:   obsValues["temperature"],
		Dewpoint:      obsValues["dewpoint"],
		Humidity:      obsValues["humidity"],
		Cloud:         obsValues["cloud"],
		Sunshine:      obsValues["sunshine"],
		WindDirection: obsValues["winddirection"],
		WindSpeed:     obsValues["windspeed"],
	}, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	obs, err := observationFromFlags(cmd)
	if err != nil {
		return err
	}
	svc, _, err := loadService(cmd)
	if err != nil {
		return err
	}

	res, err := svc.Predict(cmd.Context(), rainfall.Request{Observation: obs, Station: station})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runTransform(cmd *cobra.Command, args []string) error {
	obs, err := observationFromFlags(cmd)
	if err != nil {
		return err
	}
	svc, _, err := loadService(cmd)
	if err != nil {
		return err
	}

	engineered, scaled, err := svc.Columns(obs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-26s %14s %14s\n", "column", "engineered", "scaled")
	raw := engineered.Values()
	for i, c := range scaled.Columns() {
		fmt.Fprintf(out, "%-26s %14.6f %14.6f\n", c.Name, raw[i], c.Value)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
