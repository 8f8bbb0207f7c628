// Package evaluate replays labelled observations through the predictor and
// reports classification quality across decision thresholds.
package evaluate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"rainfall-predictor/internal/weather"

	"github.com/rs/zerolog/log"
)

// LabelColumn names the ground truth column.
const LabelColumn = "rainfall"

var headerAliases = map[string]string{
	"temparature": "temperature",
}

// Sample is one labelled observation. Line is the 1-based line in the source.
type Sample struct {
	Line        int
	Observation weather.Observation
	Rain        bool
}

// Dataset holds the samples read from a CSV file.
type Dataset struct {
	Source  string
	Samples []Sample
	// Skipped counts rows that could not be parsed.
	Skipped int
}

// LoadCSV reads a labelled CSV file.
func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	ds, err := ReadCSV(file)
	if err != nil {
		return nil, err
	}
	ds.Source = path

	log.Info().
		Str("file", path).
		Int("samples", len(ds.Samples)).
		Int("skipped", ds.Skipped).
		Msg("Evaluation data loaded")
	return ds, nil
}

// ReadCSV reads labelled observations. The header must name the eight
// observation fields and the rainfall label; other columns are ignored.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		indices[name] = i
	}

	var missing []string
	for _, name := range append(fieldNames(), LabelColumn) {
		if _, ok := indices[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("CSV header is missing columns: %s", strings.Join(missing, ", "))
	}

	ds := &Dataset{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				log.Debug().Err(err).Int("line", line).Msg("Skipping malformed row")
				ds.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		sample, err := parseRow(record, indices)
		if err != nil {
			log.Debug().Err(err).Int("line", line).Msg("Skipping row")
			ds.Skipped++
			continue
		}
		sample.Line = line
		ds.Samples = append(ds.Samples, sample)
	}

	return ds, nil
}

func fieldNames() []string {
	return []string{"pressure", "temperature", "dewpoint", "humidity", "cloud", "sunshine", "winddirection", "windspeed"}
}

func parseRow(record []string, indices map[string]int) (Sample, error) {
	var s Sample
	targets := map[string]**float64{
		"pressure":      &s.Observation.Pressure,
		"temperature":   &s.Observation.Temperature,
		"dewpoint":      &s.Observation.Dewpoint,
		"humidity":      &s.Observation.Humidity,
		"cloud":         &s.Observation.Cloud,
		"sunshine":      &s.Observation.Sunshine,
		"winddirection": &s.Observation.WindDirection,
		"windspeed":     &s.Observation.WindSpeed,
	}

	for name, dst := range targets {
		idx := indices[name]
		if idx >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[idx])
		// An empty cell stays nil and is rejected as missing by validation.
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%s: %w", name, err)
		}
		*dst = &v
	}

	idx := indices[LabelColumn]
	if idx >= len(record) {
		return Sample{}, fmt.Errorf("%s: missing", LabelColumn)
	}
	rain, err := parseLabel(record[idx])
	if err != nil {
		return Sample{}, err
	}
	s.Rain = rain
	return s, nil
}

func parseLabel(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "yes", "true":
		return true, nil
	case "0", "no", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s: unrecognised label %q", LabelColumn, raw)
	}
}
