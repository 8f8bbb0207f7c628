package api

import (
	"context"
	"errors"
	"net/http"

	"rainfall-predictor/internal/features"
	"rainfall-predictor/internal/ml"
	"rainfall-predictor/internal/weather"
)

// Error kinds reported in ErrorResponse.Kind.
const (
	KindRequest    = "request"
	KindValidation = "validation"
	KindSchema     = "schema"
	KindInference  = "inference"
	KindTimeout    = "timeout"
	KindInternal   = "internal"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string               `json:"error"`
	Kind   string               `json:"kind"`
	Fields []weather.FieldError `json:"fields,omitempty"`
}

// classify maps a service error to a status code and body. A failed
// prediction is never reported as a label.
func classify(err error) (int, ErrorResponse) {
	var ve *weather.ValidationError
	var se *features.SchemaError
	var ie *ml.InferenceError

	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Kind: KindValidation, Fields: ve.Fields}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: err.Error(), Kind: KindTimeout}
	case errors.As(err, &se):
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: KindSchema}
	case errors.As(err, &ie):
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: KindInference}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: KindInternal}
	}
}
