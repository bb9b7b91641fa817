package report

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// ErrInvalidReport is returned when a document does not match the report schema.
var ErrInvalidReport = errors.New("report does not match schema")

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// Schema returns the embedded JSON schema.
func Schema() []byte {
	return schemaJSON
}

// ValidateJSON checks an encoded report against the embedded schema.
func ValidateJSON(doc []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load report schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidReport, strings.Join(msgs, "; "))
	}
	return nil
}

// Validate encodes r and checks it against the embedded schema.
func (r *Report) Validate() error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return ValidateJSON(doc)
}

// Encode renders r as indented JSON after validating it.
func Encode(r *Report) ([]byte, error) {
	doc, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := ValidateJSON(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
