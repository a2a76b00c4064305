// Package validator checks the shape of incoming metadata documents before they touch storage.
package validator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"volumeapi/internal/apperror"
	"volumeapi/internal/model"
)

const malformed = "malformed metadata"

var schemas sync.Map // joined required fields -> *gojsonschema.Schema

// Parse decodes a raw metadata value as received from a client.
// An empty raw value is an empty document when optional is set and an error otherwise.
func Parse(raw string, optional bool) (model.Metadata, error) {
	if strings.TrimSpace(raw) == "" {
		if optional {
			return model.Metadata{}, nil
		}
		return nil, apperror.Validation("malformed request", "missing 'metadata' in request")
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, apperror.Validation(malformed, err.Error())
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, apperror.Validation(malformed, "metadata value should be a json object")
	}
	return model.Metadata(doc), nil
}

// Validate checks that doc is a key-value document holding every field in required.
// A present _language must be a non-empty string.
func Validate(doc model.Metadata, required ...string) error {
	if doc == nil {
		return apperror.Validation(malformed, "metadata value should be a json object")
	}

	schema, err := schemaFor(required)
	if err != nil {
		return fmt.Errorf("compile metadata schema: %w", err)
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(map[string]any(doc)))
	if err != nil {
		return apperror.Validation(malformed, err.Error())
	}
	if res.Valid() {
		return nil
	}

	details := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		if e.Type() == "required" {
			details = append(details, fmt.Sprintf("Required field '%v' is missing in metadata", e.Details()["property"]))
			continue
		}
		details = append(details, e.String())
	}
	return apperror.Validation(malformed, strings.Join(details, "; "))
}

func schemaFor(required []string) (*gojsonschema.Schema, error) {
	fields := append([]string(nil), required...)
	sort.Strings(fields)
	key := strings.Join(fields, "\x00")

	if s, ok := schemas.Load(key); ok {
		return s.(*gojsonschema.Schema), nil
	}

	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			model.LanguageField: map[string]any{"type": "string", "minLength": 1},
		},
	}
	if len(fields) > 0 {
		def["required"] = fields
	}

	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def))
	if err != nil {
		return nil, err
	}
	actual, _ := schemas.LoadOrStore(key, s)
	return actual.(*gojsonschema.Schema), nil
}
