package schema

import (
    _ "embed"
    "errors"
    "fmt"
    "strings"

    "github.com/xeipuuv/gojsonschema"
)

//go:embed data/config.json
var configSchema string

var configLoader = gojsonschema.NewStringLoader(configSchema)

// ValidationError lists every schema violation in a document.
type ValidationError struct {
    Problems []string
}

func (e *ValidationError) Error() string {
    return strings.Join(e.Problems, "; ")
}

// ValidateConfig checks a decoded YAML/JSON document against the embedded
// configuration schema.
func ValidateConfig(doc interface{}) error {
    if doc == nil {
        return errors.New("config document is empty")
    }
    result, err := gojsonschema.Validate(configLoader, gojsonschema.NewGoLoader(doc))
    if err != nil {
        return fmt.Errorf("schema validation error: %w", err)
    }
    if result.Valid() {
        return nil
    }
    problems := make([]string, 0, len(result.Errors()))
    for _, e := range result.Errors() {
        problems = append(problems, e.String())
    }
    return &ValidationError{Problems: problems}
}
