package export

import (
	"encoding/json"
	"fmt"
)

// JSONExporter renders any value as indented JSON.
type JSONExporter struct{}

// NewJSONExporter builds a JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Render marshals v with two-space indentation.
func (e *JSONExporter) Render(v interface{}) ([]byte, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return payload, nil
}
