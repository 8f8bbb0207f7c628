package features

import (
	"errors"
	"math"
	"time"

	"rainfall-predictor/internal/weather"
)

// MetricsTracker receives transformer statistics. It may be nil.
type MetricsTracker interface {
	FeatureErrorsInc()
	FeatureCalcDuration(d time.Duration)
}

// Artifacts are the fitted preprocessing objects, loaded once at startup.
type Artifacts struct {
	Poly   *PolynomialSpec
	Scaler *ScalingSpec
	Power  *PowerSpec // nil: *_yeo columns are copied from the raw values
}

// Transformer maps readings to scaled feature vectors. It holds only
// immutable artifacts and is safe for concurrent use.
type Transformer struct {
	poly    *PolynomialSpec
	scaler  *ScalingSpec
	power   *PowerSpec
	metrics MetricsTracker
}

// NewTransformer checks the artifacts against the column schema.
func NewTransformer(a Artifacts, metrics MetricsTracker) (*Transformer, error) {
	if a.Poly == nil {
		return nil, errors.New("polynomial spec is required")
	}
	if a.Scaler == nil {
		return nil, errors.New("scaling spec is required")
	}
	if err := a.Poly.init(); err != nil {
		return nil, err
	}
	if err := a.Scaler.validate(); err != nil {
		return nil, err
	}
	if a.Power != nil {
		if err := a.Power.validate(); err != nil {
			return nil, err
		}
	}
	return &Transformer{
		poly:    a.Poly,
		scaler:  a.Scaler,
		power:   a.Power,
		metrics: metrics,
	}, nil
}

// PowerTransformActive reports whether the Yeo-Johnson stage is applied.
func (t *Transformer) PowerTransformActive() bool { return t.power != nil }

// ScalerKind returns the kind of the fitted scaler.
func (t *Transformer) ScalerKind() string { return t.scaler.Kind }

// derived holds the columns that survive pruning of the raw fields.
type derived struct {
	pressure         float64
	temparature      float64
	humidity         float64
	sunshine         float64
	windspeedLog     float64
	dewpointYeo      float64
	cloudYeo         float64
	winddirectionSin float64
	winddirectionCos float64
}

func (t *Transformer) derive(r weather.Reading) derived {
	rad := r.WindDirection * math.Pi / 180
	return derived{
		pressure:         r.Pressure,
		temparature:      r.Temperature,
		humidity:         r.Humidity,
		sunshine:         r.Sunshine,
		windspeedLog:     math.Log1p(r.WindSpeed),
		dewpointYeo:      t.power.Apply(ColDewpointYeo, r.Dewpoint),
		cloudYeo:         t.power.Apply(ColCloudYeo, r.Cloud),
		winddirectionSin: math.Sin(rad),
		winddirectionCos: math.Cos(rad),
	}
}

func (d derived) columns() []Column {
	return []Column{
		{ColPressure, d.pressure},
		{ColTemparature, d.temparature},
		{ColHumidity, d.humidity},
		{ColSunshine, d.sunshine},
		{ColWindspeedLog, d.windspeedLog},
		{ColDewpointYeo, d.dewpointYeo},
		{ColCloudYeo, d.cloudYeo},
		{ColWinddirectionSin, d.winddirectionSin},
		{ColWinddirectionCos, d.winddirectionCos},
	}
}

// Engineer returns the 15 engineered columns before scaling.
func (t *Transformer) Engineer(r weather.Reading) (Vector, error) {
	d := t.derive(r)

	terms, err := t.poly.Expand([]float64{d.sunshine, d.dewpointYeo, d.cloudYeo})
	if err != nil {
		t.featureError()
		return Vector{}, err
	}

	cols := append(d.columns(), terms...)
	if ok, detail := sameColumns(Schema(), namesOf(cols)); !ok {
		t.featureError()
		return Vector{}, schemaErrorf("assembly", "%s", detail)
	}
	if err := checkFinite("engineer", cols); err != nil {
		t.featureError()
		return Vector{}, err
	}
	return Vector{cols: cols}, nil
}

// Transform returns the scaled feature vector for r.
func (t *Transformer) Transform(r weather.Reading) (Vector, error) {
	start := time.Now()

	raw, err := t.Engineer(r)
	if err != nil {
		return Vector{}, err
	}
	out, err := t.scaler.Transform(raw.cols)
	if err == nil {
		err = checkFinite("scaler", out.cols)
	}
	if err != nil {
		t.featureError()
		return Vector{}, err
	}

	if t.metrics != nil {
		t.metrics.FeatureCalcDuration(time.Since(start))
	}
	return out, nil
}

func (t *Transformer) featureError() {
	if t.metrics != nil {
		t.metrics.FeatureErrorsInc()
	}
}

// checkFinite rejects NaN and infinite columns, which the classifier and the
// JSON encoder cannot accept.
func checkFinite(stage string, cols []Column) error {
	for _, c := range cols {
		if !isFinite(c.Value) {
			return schemaErrorf(stage, "column %q is not finite (%g)", c.Name, c.Value)
		}
	}
	return nil
}

func namesOf(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
