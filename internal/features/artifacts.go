package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LoadPolynomialSpec reads a fitted polynomial expansion from a JSON file.
func LoadPolynomialSpec(path string) (*PolynomialSpec, error) {
	var p PolynomialSpec
	if err := readJSON(path, &p); err != nil {
		return nil, fmt.Errorf("load polynomial spec: %w", err)
	}
	if err := p.init(); err != nil {
		return nil, fmt.Errorf("load polynomial spec %s: %w", path, err)
	}
	return &p, nil
}

// LoadScalingSpec reads fitted scaler statistics from a JSON file.
func LoadScalingSpec(path string) (*ScalingSpec, error) {
	var s ScalingSpec
	if err := readJSON(path, &s); err != nil {
		return nil, fmt.Errorf("load scaling spec: %w", err)
	}
	if s.Kind == "" {
		s.Kind = ScalerStandard
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("load scaling spec %s: %w", path, err)
	}
	return &s, nil
}

// LoadPowerSpec reads fitted Yeo-Johnson parameters. A missing file yields a
// nil spec and no error.
func LoadPowerSpec(path string) (*PowerSpec, error) {
	var p PowerSpec
	if err := readJSON(path, &p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load power spec: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("load power spec %s: %w", path, err)
	}
	return &p, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
