package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maltedev/applicability-scraper/internal/applicability"
)

// LoadSelectors reads a YAML selectors file. Keys absent from the file keep
// their default value; keys present but empty are rejected.
func LoadSelectors(filePath string) (*applicability.Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer file.Close()

	selectors := applicability.DefaultSelectors()
	if err := yaml.NewDecoder(file).Decode(&selectors); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if missing := selectors.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("selectors file %s: empty selectors: %s", filePath, strings.Join(missing, ", "))
	}

	return &selectors, nil
}
