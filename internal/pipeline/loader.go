package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// RegistryFile is the on-disk shape of a pipeline registry.
type RegistryFile struct {
	Pipelines []PipelineDefinition `yaml:"pipelines"`
}

// ParseRegistryYAML decodes and validates a registry from YAML/JSON bytes.
func ParseRegistryYAML(data []byte) (*Registry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("pipeline: registry payload is empty")
	}
	var file RegistryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("pipeline: decode registry: %w", err)
	}
	return NewRegistry(file.Pipelines)
}

// LoadRegistryReader reads a registry from an io.Reader.
func LoadRegistryReader(r io.Reader) (*Registry, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read registry: %w", err)
	}
	return ParseRegistryYAML(content)
}

// LoadRegistryFile loads a registry from an explicit file path.
func LoadRegistryFile(path string) (*Registry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read %s: %w", path, err)
	}
	reg, parseErr := ParseRegistryYAML(content)
	if parseErr != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", path, parseErr)
	}
	return reg, nil
}
