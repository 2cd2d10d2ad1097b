// Package schemas checks reference data (zone tables, seed files) against JSON
// Schema documents before it is decoded into typed structs.
package schemas

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON Schema. It is safe for concurrent use.
type Schema struct {
	name     string
	compiled *gojsonschema.Schema
}

// Problem is one rule a document broke.
type Problem struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a document.
type ValidationError struct {
	Schema   string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Path + ": " + p.Message
	}
	return fmt.Sprintf("%s: %d problem(s): %s", e.Schema, len(e.Problems), strings.Join(parts, "; "))
}

// Compile parses schema source. name is used in error messages.
func Compile(name, source string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

// MustCompile is Compile for schemas embedded in the binary.
func MustCompile(name, source string) *Schema {
	s, err := Compile(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the name the schema was compiled with.
func (s *Schema) Name() string { return s.name }

// Validate checks a decoded value (maps, slices and scalars as produced by the
// YAML or JSON decoders). Problems are sorted by path.
func (s *Schema) Validate(value any) error {
	return s.check(gojsonschema.NewGoLoader(normalize(value)))
}

// ValidateJSON checks raw JSON bytes.
func (s *Schema) ValidateJSON(doc []byte) error {
	return s.check(gojsonschema.NewBytesLoader(doc))
}

func (s *Schema) check(doc gojsonschema.JSONLoader) error {
	result, err := s.compiled.Validate(doc)
	if err != nil {
		return fmt.Errorf("%s: unreadable document: %w", s.name, err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: s.name}
	for _, re := range result.Errors() {
		path := re.Field()
		if path == "(root)" || path == "" {
			path = "$"
		} else {
			path = "$." + path
		}
		verr.Problems = append(verr.Problems, Problem{
			Path:    path,
			Rule:    re.Type(),
			Message: re.Description(),
		})
	}
	sort.SliceStable(verr.Problems, func(i, j int) bool {
		return verr.Problems[i].Path < verr.Problems[j].Path
	})
	return verr
}

// ValidateValue compiles source and validates value in one step.
func ValidateValue(name, source string, value any) error {
	s, err := Compile(name, source)
	if err != nil {
		return err
	}
	return s.Validate(value)
}

// normalize converts map[any]any nodes, which gojsonschema cannot walk, into
// map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
