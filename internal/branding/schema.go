package branding

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

// ErrSchemaValidation is wrapped by every *ValidationError.
var ErrSchemaValidation = errors.New("branding schema validation failed")

// ValidationIssue is a single schema violation.
type ValidationIssue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// ValidationError lists the schema violations of a rejected document.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrSchemaValidation.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		location := issue.Location
		if location == "" {
			location = "#"
		} else if !strings.HasPrefix(location, "#") {
			location = "#" + location
		}
		parts = append(parts, fmt.Sprintf("%s: %s", location, issue.Message))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaValidation
}

// Validator checks documents against the embedded branding schema. Only
// shape is enforced; unknown top-level keys are allowed.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("branding.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("load branding schema: %w", err)
	}
	schema, err := compiler.Compile("branding.json")
	if err != nil {
		return nil, fmt.Errorf("compile branding schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate returns a *ValidationError when doc does not match the schema.
func (v *Validator) Validate(doc Document) error {
	// Round-trip through JSON so nested Document values and Go integer
	// types reach the validator as the generic JSON shapes it expects.
	encoded, err := json.Marshal(doc)
	if err != nil {
		return &ValidationError{Issues: []ValidationIssue{{Message: err.Error()}}}
	}
	var generic any
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return &ValidationError{Issues: []ValidationIssue{{Message: err.Error()}}}
	}
	if generic == nil {
		generic = map[string]any{}
	}

	if err := v.schema.Validate(generic); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &ValidationError{Issues: collectValidationIssues(verr)}
		}
		return &ValidationError{Issues: []ValidationIssue{{Message: err.Error()}}}
	}
	return nil
}

// Issues extracts validation issues from an error chain.
func Issues(err error) []ValidationIssue {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Issues
	}
	return nil
}

func collectValidationIssues(err *jsonschema.ValidationError) []ValidationIssue {
	var issues []ValidationIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			issues = append(issues, ValidationIssue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}
