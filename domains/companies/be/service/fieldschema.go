package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/platform/go/apperr"
)

// FieldValue is one custom attribute stored on a worker or customer.
type FieldValue struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

const isoDatePattern = `^\d{4}-\d{2}-\d{2}$`

// FieldSchema renders a JSON Schema (draft-07) accepting a []FieldValue that satisfies fields:
// unknown ids are rejected, values are typed per field, and required fields must be present.
func FieldSchema(fields []Field) ([]byte, error) {
	sorted := make([]Field, 0, len(fields))
	sorted = append(sorted, fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	doc := map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "array",
	}
	if len(sorted) == 0 {
		doc["maxItems"] = 0
		return json.Marshal(doc)
	}

	ids := make([]string, 0, len(sorted))
	conditions := make([]any, 0, len(sorted))
	var required []any
	for _, f := range sorted {
		if f.ID == "" {
			return nil, fmt.Errorf("field %q has no id", f.Name)
		}
		ids = append(ids, f.ID)
		conditions = append(conditions, map[string]any{
			"if":   map[string]any{"properties": map[string]any{"id": map[string]any{"const": f.ID}}},
			"then": map[string]any{"properties": map[string]any{"value": valueSchema(f)}},
		})
		if f.Required {
			required = append(required, map[string]any{
				"contains": map[string]any{
					"type":       "object",
					"required":   []string{"id"},
					"properties": map[string]any{"id": map[string]any{"const": f.ID}},
				},
			})
		}
	}

	doc["items"] = map[string]any{
		"type":       "object",
		"required":   []string{"id", "value"},
		"properties": map[string]any{"id": map[string]any{"enum": ids}},
		"allOf":      conditions,
	}
	if len(required) > 0 {
		doc["allOf"] = required
	}
	return json.Marshal(doc)
}

func valueSchema(f Field) map[string]any {
	switch f.Type {
	case FieldNumber:
		return map[string]any{"type": "number"}
	case FieldBoolean:
		return map[string]any{"type": "boolean"}
	case FieldDate:
		return map[string]any{"type": "string", "pattern": isoDatePattern}
	case FieldSelect:
		options := make([]any, 0, len(f.Options))
		for _, o := range f.Options {
			options = append(options, o)
		}
		return map[string]any{"enum": options}
	default:
		s := map[string]any{"type": "string"}
		if f.Size > 0 {
			s["maxLength"] = f.Size
		}
		if f.Required {
			s["minLength"] = 1
		}
		return s
	}
}

// ValidateFieldValues checks values against the company's active fields of scope.
// Failures are reported as fields[i].value paths.
func (s *Service) ValidateFieldValues(ctx context.Context, companyID uuid.UUID, scope FieldScope, values []FieldValue) error {
	if err := validScope(scope); err != nil {
		return err
	}
	fields, err := s.ActiveFields(ctx, companyID, scope)
	if err != nil {
		return err
	}
	schema, err := FieldSchema(fields)
	if err != nil {
		return err
	}
	if values == nil {
		values = []FieldValue{}
	}
	err = s.documents.ValidateWith(ctx, schema, values)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	out := apperr.FieldErrors{}
	for pointer, messages := range ve.Fields {
		for _, msg := range messages {
			out.Add(valuePath(pointer), msg)
		}
	}
	return &apperr.ValidationError{Fields: out}
}

// valuePath turns a JSON pointer such as /2/value into fields[2].value.
func valuePath(pointer string) string {
	parts := strings.Split(strings.Trim(pointer, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "fields"
	}
	path := "fields[" + parts[0] + "]"
	if len(parts) > 1 {
		path += "." + strings.Join(parts[1:], ".")
	}
	return path
}
