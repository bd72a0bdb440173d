package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// ConfigurationError reports a malformed catalog. The catalog is static, so
// this is a build-time defect rather than a runtime condition.
type ConfigurationError struct {
	CourseID string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.CourseID == "" {
		return "catalog: " + e.Reason
	}
	return fmt.Sprintf("catalog: course %s: %s", e.CourseID, e.Reason)
}

// Validate checks a YAML catalog document against the catalog schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}
	if doc == nil {
		return &ConfigurationError{Reason: "empty document"}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validating catalog: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return &ConfigurationError{Reason: strings.Join(msgs, "; ")}
	}
	return nil
}
