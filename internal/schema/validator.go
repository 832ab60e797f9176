// Package schema validates untyped JSON payloads against declared shapes
// before they cross a component boundary. Shapes are plain JSON Schema
// documents; validation failures surface as taxonomy validation errors.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"flux-tools/internal/domain/entity"
)

// Compiled is a shape descriptor compiled for repeated validation.
// It is immutable and safe for concurrent use.
type Compiled struct {
	schema *jsonschema.Schema
}

// Compile turns a raw JSON Schema document into a reusable validator.
// Compilation happens once per tool at provider construction time.
func Compile(shape map[string]any) (*Compiled, error) {
	data, err := json.Marshal(shape)
	if err != nil {
		return nil, fmt.Errorf("marshal shape: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse shape: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("shape.json", doc); err != nil {
		return nil, fmt.Errorf("register shape: %w", err)
	}
	compiled, err := compiler.Compile("shape.json")
	if err != nil {
		return nil, fmt.Errorf("compile shape: %w", err)
	}
	return &Compiled{schema: compiled}, nil
}

// MustCompile is Compile for statically declared shapes. It panics on error
// and is intended for package-level tool definitions inside providers.
func MustCompile(shape map[string]any) *Compiled {
	c, err := Compile(shape)
	if err != nil {
		panic(fmt.Sprintf("schema: invalid shape: %v", err))
	}
	return c
}

// Validate checks value against the compiled shape. It is pure, synchronous
// and side-effect free. On mismatch it returns a KindValidation TaggedError
// with code VALIDATION_ERROR and the raw jsonschema diagnostics as cause.
//
// Callers discriminate further: parameter failures are re-coded as
// INVALID_PARAMETERS, response failures as EXTRACTION_ERROR, because the
// remediation differs (caller's fault vs. remote service's fault).
func (c *Compiled) Validate(value any) error {
	normalized, err := normalize(value)
	if err != nil {
		return entity.NewValidationError(entity.CodeValidation, "value is not JSON-serializable", err)
	}
	if err := c.schema.Validate(normalized); err != nil {
		return entity.NewValidationError(entity.CodeValidation, "value does not match declared shape", err)
	}
	return nil
}

// normalize round-trips value through JSON so validation always sees decoded
// JSON types (map[string]any, []any, float64, ...) regardless of how the
// caller built the payload.
func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}
