package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// LoadThresholds reads a YAML thresholds file onto the defaults. Keys absent
// from the file keep their default value. An empty path returns the defaults.
func LoadThresholds(path string) (domain.Thresholds, error) {
	th := domain.DefaultThresholds()
	if path == "" {
		return th, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("reading thresholds file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&th); err != nil && !errors.Is(err, io.EOF) {
		return th, fmt.Errorf("parsing thresholds file %s: %w", path, err)
	}

	if err := th.Validate(); err != nil {
		return th, fmt.Errorf("invalid thresholds in %s: %w", path, err)
	}
	return th, nil
}
