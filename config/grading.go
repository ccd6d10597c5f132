package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/school-results/internal/domain/grading"
)

// gradeBandsFile is the on-disk layout of a band table:
//
//	bands:
//	  - {min: 75, max: 100, grade: A, remark: Excellent}
//	  - {min: 65, max: 74, grade: B, remark: Very Good}
type gradeBandsFile struct {
	Bands []grading.Band `yaml:"bands"`
}

// LoadGradeBands reads and validates a band table. An empty path returns
// the default table.
func LoadGradeBands(path string) (*grading.Table, error) {
	if path == "" {
		return grading.DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grade bands %s: %w", path, err)
	}
	return ParseGradeBands(data)
}

// ParseGradeBands decodes a YAML band table. Unknown keys are rejected so
// a typo such as "mn" does not silently produce a zero bound.
func ParseGradeBands(data []byte) (*grading.Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file gradeBandsFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse grade bands: %w", err)
	}

	table, err := grading.NewTable(file.Bands)
	if err != nil {
		return nil, fmt.Errorf("invalid grade bands: %w", err)
	}
	return table, nil
}
