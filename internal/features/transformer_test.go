package features

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rainfall-predictor/internal/weather"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMetricsTracker struct {
	mu        sync.Mutex
	errors    int
	durations int
}

func (m *mockMetricsTracker) FeatureErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

func (m *mockMetricsTracker) FeatureCalcDuration(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func scenarioReading() weather.Reading {
	return weather.Reading{
		Pressure:      1010,
		Temperature:   25,
		Dewpoint:      15,
		Humidity:      70,
		Cloud:         50,
		Sunshine:      6,
		WindDirection: 180,
		WindSpeed:     10,
	}
}

func newIdentityTransformer(t *testing.T, metrics MetricsTracker) *Transformer {
	t.Helper()
	tr, err := NewTransformer(Artifacts{Poly: DefaultPolynomialSpec(), Scaler: IdentityScaler()}, metrics)
	require.NoError(t, err)
	return tr
}

func TestEngineer_Scenario(t *testing.T) {
	tr := newIdentityTransformer(t, nil)

	v, err := tr.Engineer(scenarioReading())
	require.NoError(t, err)
	require.Equal(t, Schema(), v.Names())

	expected := map[string]float64{
		ColPressure:              1010,
		ColTemparature:           25,
		ColHumidity:              70,
		ColSunshine:              6,
		ColWindspeedLog:          math.Log(11),
		ColDewpointYeo:           15,
		ColCloudYeo:              50,
		ColWinddirectionSin:      0,
		ColWinddirectionCos:      -1,
		"sunshine^2":             36,
		"sunshine_dewpoint_yeo":  90,
		"sunshine_cloud_yeo":     300,
		"dewpoint_yeo^2":         225,
		"dewpoint_yeo_cloud_yeo": 750,
		"cloud_yeo^2":            2500,
	}
	for name, want := range expected {
		got, ok := v.Get(name)
		require.True(t, ok, "missing column %s", name)
		assert.InDelta(t, want, got, 1e-9, name)
	}
	got, _ := v.Get(ColWindspeedLog)
	assert.InDelta(t, 2.3979, got, 1e-4)
}

func TestTransform_Deterministic(t *testing.T) {
	scaler, err := NewStandardScaler(Schema(), sequence(15, 1), sequence(15, 2))
	require.NoError(t, err)
	tr, err := NewTransformer(Artifacts{Poly: DefaultPolynomialSpec(), Scaler: scaler}, nil)
	require.NoError(t, err)

	readings := []weather.Reading{
		scenarioReading(),
		{Pressure: 850, Temperature: -50, Dewpoint: 0, Humidity: 0, Cloud: 0, Sunshine: 0, WindDirection: 0, WindSpeed: 0},
		{Pressure: 1100, Temperature: 60, Dewpoint: 60, Humidity: 100, Cloud: 100, Sunshine: 24, WindDirection: 360, WindSpeed: 150},
	}
	for _, r := range readings {
		a, err := tr.Transform(r)
		require.NoError(t, err)
		b, err := tr.Transform(r)
		require.NoError(t, err)

		av, bv := a.Values(), b.Values()
		for i := range av {
			assert.Equal(t, math.Float64bits(av[i]), math.Float64bits(bv[i]), "column %d differs", i)
		}
		assert.Len(t, a.Names(), 15)
		assert.Equal(t, Schema(), a.Names())
	}
}

func TestTransform_StandardScaling(t *testing.T) {
	mean := sequence(15, 0)
	scale := sequence(15, 0)
	for i := range scale {
		mean[i] = 1
		scale[i] = 2
	}
	scaler, err := NewStandardScaler(Schema(), mean, scale)
	require.NoError(t, err)
	tr, err := NewTransformer(Artifacts{Poly: DefaultPolynomialSpec(), Scaler: scaler}, nil)
	require.NoError(t, err)

	raw, err := tr.Engineer(scenarioReading())
	require.NoError(t, err)
	scaled, err := tr.Transform(scenarioReading())
	require.NoError(t, err)

	rv, sv := raw.Values(), scaled.Values()
	for i := range rv {
		assert.InDelta(t, (rv[i]-1)/2, sv[i], 1e-12)
	}
}

func TestTransform_MinMaxScaling(t *testing.T) {
	min := sequence(15, 0)
	scale := sequence(15, 0)
	for i := range scale {
		min[i] = -0.5
		scale[i] = 0.01
	}
	scaler, err := NewMinMaxScaler(Schema(), min, scale)
	require.NoError(t, err)
	tr, err := NewTransformer(Artifacts{Poly: DefaultPolynomialSpec(), Scaler: scaler}, nil)
	require.NoError(t, err)

	v, err := tr.Transform(scenarioReading())
	require.NoError(t, err)
	got, _ := v.Get("cloud_yeo^2")
	assert.InDelta(t, 2500*0.01-0.5, got, 1e-9)
}

func TestTransform_CircularConsistency(t *testing.T) {
	tr := newIdentityTransformer(t, nil)

	for _, d := range []float64{0, 45, 90, 135, 180, 270} {
		a := scenarioReading()
		a.WindDirection = d
		b := scenarioReading()
		b.WindDirection = d + 360

		va, err := tr.Engineer(a)
		require.NoError(t, err)
		vb, err := tr.Engineer(b)
		require.NoError(t, err)

		sa, _ := va.Get(ColWinddirectionSin)
		sb, _ := vb.Get(ColWinddirectionSin)
		ca, _ := va.Get(ColWinddirectionCos)
		cb, _ := vb.Get(ColWinddirectionCos)
		assert.InDelta(t, sa, sb, 1e-9, "sin at %g", d)
		assert.InDelta(t, ca, cb, 1e-9, "cos at %g", d)
	}
}

func TestTransform_WindspeedLogMonotonic(t *testing.T) {
	tr := newIdentityTransformer(t, nil)

	prev := math.Inf(-1)
	for ws := 0.0; ws <= 150; ws += 0.5 {
		r := scenarioReading()
		r.WindSpeed = ws
		v, err := tr.Engineer(r)
		require.NoError(t, err)
		got, _ := v.Get(ColWindspeedLog)
		require.Greater(t, got, prev, "windspeed %g", ws)
		prev = got
	}
}

func TestTransform_PowerSpecApplied(t *testing.T) {
	power := &PowerSpec{
		Method:  "yeo-johnson",
		Lambdas: map[string]float64{ColDewpointYeo: 0, ColCloudYeo: 1},
	}
	tr, err := NewTransformer(Artifacts{Poly: DefaultPolynomialSpec(), Scaler: IdentityScaler(), Power: power}, nil)
	require.NoError(t, err)
	assert.True(t, tr.PowerTransformActive())

	v, err := tr.Engineer(scenarioReading())
	require.NoError(t, err)

	dew, _ := v.Get(ColDewpointYeo)
	cloud, _ := v.Get(ColCloudYeo)
	assert.InDelta(t, math.Log1p(15), dew, 1e-12)
	assert.InDelta(t, 50, cloud, 1e-12)

	cross, _ := v.Get("dewpoint_yeo_cloud_yeo")
	assert.InDelta(t, math.Log1p(15)*50, cross, 1e-9)
}

func TestEngineer_RejectsOverflowingPowerSpec(t *testing.T) {
	power := &PowerSpec{
		Method:  "yeo-johnson",
		Lambdas: map[string]float64{ColDewpointYeo: 200, ColCloudYeo: 1},
	}
	metrics := &mockMetricsTracker{}
	tr, err := NewTransformer(Artifacts{Poly: DefaultPolynomialSpec(), Scaler: IdentityScaler(), Power: power}, metrics)
	require.NoError(t, err)

	_, err = tr.Transform(scenarioReading())
	require.Error(t, err)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "engineer", schemaErr.Stage)
	assert.Contains(t, schemaErr.Detail, "dewpoint_yeo^2")
	assert.Equal(t, 1, metrics.errors)
	assert.Zero(t, metrics.durations)
}

func TestTransform_RejectsNonFiniteScaledColumn(t *testing.T) {
	scale := ones(15)
	scale[0] = math.MaxFloat64
	scaler, err := NewMinMaxScaler(Schema(), make([]float64, 15), scale)
	require.NoError(t, err)
	tr, err := NewTransformer(Artifacts{Poly: DefaultPolynomialSpec(), Scaler: scaler}, nil)
	require.NoError(t, err)

	_, err = tr.Transform(scenarioReading())
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "scaler", schemaErr.Stage)
	assert.Contains(t, schemaErr.Detail, ColPressure)
}

func TestTransform_ConcurrentUse(t *testing.T) {
	metrics := &mockMetricsTracker{}
	tr := newIdentityTransformer(t, metrics)
	want, err := tr.Transform(scenarioReading())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := tr.Transform(scenarioReading())
				assert.NoError(t, err)
				assert.Equal(t, want.Values(), got.Values())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 16*50+1, metrics.durations)
	assert.Zero(t, metrics.errors)
}

func TestNewTransformer_RejectsMisorderedScaler(t *testing.T) {
	names := Schema()
	names[0], names[1] = names[1], names[0]
	s := &ScalingSpec{Kind: ScalerStandard, FeatureNamesIn: names, Mean: sequence(15, 0), Scale: ones(15)}

	_, err := NewTransformer(Artifacts{Poly: DefaultPolynomialSpec(), Scaler: s}, nil)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "scaler", se.Stage)
	assert.Contains(t, err.Error(), `column 0: expected "pressure", got "temparature"`)
}

func TestNewTransformer_RejectsShortScaler(t *testing.T) {
	names := Schema()[:12]
	_, err := NewStandardScaler(names, sequence(12, 0), ones(12))
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "expected 15 columns, got 12")
}

func TestNewTransformer_RequiresArtifacts(t *testing.T) {
	_, err := NewTransformer(Artifacts{Scaler: IdentityScaler()}, nil)
	assert.Error(t, err)
	_, err = NewTransformer(Artifacts{Poly: DefaultPolynomialSpec()}, nil)
	assert.Error(t, err)
}

func TestScalingSpec_TransformRejectsWrongColumns(t *testing.T) {
	s := IdentityScaler()
	cols := make([]Column, 0, 15)
	for _, n := range Schema() {
		cols = append(cols, Column{Name: n})
	}
	cols[14].Name = "cloud_yeo cloud_yeo"

	_, err := s.Transform(cols)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
}

func TestScalingSpec_RejectsZeroScale(t *testing.T) {
	scale := ones(15)
	scale[3] = 0
	_, err := NewStandardScaler(Schema(), sequence(15, 0), scale)
	assert.ErrorContains(t, err, `"sunshine"`)
}

func TestLoadArtifacts(t *testing.T) {
	dir := t.TempDir()

	writeJSON(t, filepath.Join(dir, "poly.json"), map[string]any{
		"input_features": PolyInputs,
		"powers":         DefaultPolynomialSpec().Powers,
	})
	writeJSON(t, filepath.Join(dir, "scaler.json"), map[string]any{
		"feature_names_in": Schema(),
		"mean":             sequence(15, 0),
		"scale":            ones(15),
	})
	writeJSON(t, filepath.Join(dir, "power.json"), map[string]any{
		"method":  "yeo-johnson",
		"lambdas": map[string]float64{ColDewpointYeo: 0.8, ColCloudYeo: 1.2},
	})

	poly, err := LoadPolynomialSpec(filepath.Join(dir, "poly.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sunshine", "dewpoint_yeo", "cloud_yeo",
		"sunshine^2", "sunshine_dewpoint_yeo", "sunshine_cloud_yeo",
		"dewpoint_yeo^2", "dewpoint_yeo_cloud_yeo", "cloud_yeo^2",
	}, poly.FeatureNames())

	scaler, err := LoadScalingSpec(filepath.Join(dir, "scaler.json"))
	require.NoError(t, err)
	assert.Equal(t, ScalerStandard, scaler.Kind)

	power, err := LoadPowerSpec(filepath.Join(dir, "power.json"))
	require.NoError(t, err)
	require.NotNil(t, power)

	missing, err := LoadPowerSpec(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = LoadScalingSpec(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}

func TestYeoJohnson(t *testing.T) {
	tests := []struct {
		name   string
		x, l   float64
		expect float64
	}{
		{"identity positive", 3, 1, 3},
		{"identity negative", -3, 1, -3},
		{"log branch", 4, 0, math.Log(5)},
		{"negative log branch", -4, 2, -math.Log(5)},
		{"square root", 3, 0.5, (2 - 1) / 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expect, YeoJohnson(tt.x, tt.l), 1e-12)
		})
	}
}

func TestVector_JSONKeepsOrder(t *testing.T) {
	v := NewVector([]Column{{"b", 2}, {"a", 1}})
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"b","value":2},{"name":"a","value":1}]`, string(data))

	var back Vector
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"b", "a"}, back.Names())
}

func sequence(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}
