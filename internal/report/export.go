package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Exporter writes a report in one serialization format.
type Exporter interface {
	Export(r *Report, w io.Writer) error
	Extension() string
}

func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json", "":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s (supported: json, yaml)", format)
	}
}

type JSONExporter struct{}

func (e *JSONExporter) Export(r *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (e *JSONExporter) Extension() string {
	return "json"
}

type YAMLExporter struct{}

func (e *YAMLExporter) Export(r *Report, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(r)
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
