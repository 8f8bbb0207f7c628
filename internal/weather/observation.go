// Package weather defines the raw weather observation accepted by the
// predictor and its physical range validation.
//
// An Observation is the wire form: every field is a pointer so that a field
// absent from the request can be told apart from a legitimate zero. A
// successful Validate call yields a Reading, the value form consumed by the
// feature transformer. The transformer never validates on its own.
package weather

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Observation is one set of station measurements as supplied by a caller.
type Observation struct {
	Pressure      *float64 `json:"pressure" yaml:"pressure" validate:"required,finite,gte=850,lte=1100"`
	Temperature   *float64 `json:"temperature" yaml:"temperature" validate:"required,finite,gte=-50,lte=60"`
	Dewpoint      *float64 `json:"dewpoint" yaml:"dewpoint" validate:"required,finite,gte=0,lte=60"`
	Humidity      *float64 `json:"humidity" yaml:"humidity" validate:"required,finite,gte=0,lte=100"`
	Cloud         *float64 `json:"cloud" yaml:"cloud" validate:"required,finite,gte=0,lte=100"`
	Sunshine      *float64 `json:"sunshine" yaml:"sunshine" validate:"required,finite,gte=0,lte=24"`
	WindDirection *float64 `json:"winddirection" yaml:"winddirection" validate:"required,finite,gte=0,lte=360"`
	WindSpeed     *float64 `json:"windspeed" yaml:"windspeed" validate:"required,finite,gte=0,lte=150"`
}

// Reading is a validated observation.
type Reading struct {
	Pressure      float64 `json:"pressure"`
	Temperature   float64 `json:"temperature"`
	Dewpoint      float64 `json:"dewpoint"`
	Humidity      float64 `json:"humidity"`
	Cloud         float64 `json:"cloud"`
	Sunshine      float64 `json:"sunshine"`
	WindDirection float64 `json:"winddirection"`
	WindSpeed     float64 `json:"windspeed"`
}

// Range is the inclusive physical range accepted for a field.
type Range struct {
	Min, Max float64
	Unit     string
}

// Ranges lists the accepted range of every observation field by its wire name.
var Ranges = map[string]Range{
	"pressure":      {850, 1100, "hPa"},
	"temperature":   {-50, 60, "°C"},
	"dewpoint":      {0, 60, "°C"},
	"humidity":      {0, 100, "%"},
	"cloud":         {0, 100, "%"},
	"sunshine":      {0, 24, "hours"},
	"winddirection": {0, 360, "degrees"},
	"windspeed":     {0, 150, "km/h"},
}

// FieldError describes one rejected field. Value is nil when the field was
// missing.
type FieldError struct {
	Field  string   `json:"field"`
	Value  *float64 `json:"value,omitempty"`
	Reason string   `json:"reason"`
}

func (f FieldError) Error() string {
	return fmt.Sprintf("%s %s", f.Field, f.Reason)
}

// ValidationError reports every field of an observation that is missing or
// outside its physical range.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid observation: " + strings.Join(msgs, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// gte/lte already reject NaN; this catches +/-Inf hidden behind a wide range.
	if err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks presence and range of every field and returns the reading.
func (o Observation) Validate() (Reading, error) {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Reading{}, fmt.Errorf("validate observation: %w", err)
		}
		ve := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
		for _, fe := range verrs {
			ve.Fields = append(ve.Fields, toFieldError(fe))
		}
		return Reading{}, ve
	}

	return Reading{
		Pressure:      *o.Pressure,
		Temperature:   *o.Temperature,
		Dewpoint:      *o.Dewpoint,
		Humidity:      *o.Humidity,
		Cloud:         *o.Cloud,
		Sunshine:      *o.Sunshine,
		WindDirection: *o.WindDirection,
		WindSpeed:     *o.WindSpeed,
	}, nil
}

func toFieldError(fe validator.FieldError) FieldError {
	name := fe.Field()
	out := FieldError{Field: name}

	if fe.Tag() == "required" {
		out.Reason = "is required"
		return out
	}

	switch v := fe.Value().(type) {
	case float64:
		out.Value = &v
	case *float64:
		out.Value = v
	}
	if r, ok := Ranges[name]; ok {
		out.Reason = fmt.Sprintf("must be between %g and %g %s", r.Min, r.Max, r.Unit)
	} else {
		out.Reason = fmt.Sprintf("failed %s check", fe.Tag())
	}
	return out
}

// Observation converts the reading back into its wire form.
func (r Reading) Observation() Observation {
	return Observation{
		Pressure:      ptr(r.Pressure),
		Temperature:   ptr(r.Temperature),
		Dewpoint:      ptr(r.Dewpoint),
		Humidity:      ptr(r.Humidity),
		Cloud:         ptr(r.Cloud),
		Sunshine:      ptr(r.Sunshine),
		WindDirection: ptr(r.WindDirection),
		WindSpeed:     ptr(r.WindSpeed),
	}
}

func ptr(v float64) *float64 { return &v }
