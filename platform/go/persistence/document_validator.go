package persistence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/harmony-hq/harmony/platform/go/apperr"
)

//go:embed schemas/*.json
var builtinSchemas embed.FS

// Built-in document kinds.
const (
	DocumentStep        = "step.json"
	DocumentStallWorker = "stall_worker.json"
	DocumentShift       = "shift.json"
)

const builtinBase = "harmony://documents/"

// DocumentValidator validates JSON documents before they are written to JSONB columns.
// Built-in schemas are compiled once; ad-hoc schemas (company custom fields) are cached by content hash.
type DocumentValidator struct {
	mu       sync.RWMutex
	builtin  map[string]*jsonschema.Schema
	adhoc    map[string]*jsonschema.Schema
	maxAdhoc int
}

// NewDocumentValidator compiles the embedded document schemas.
func NewDocumentValidator() (*DocumentValidator, error) {
	compiler := jsonschema.NewCompiler()
	entries, err := builtinSchemas.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	for _, entry := range entries {
		raw, err := builtinSchemas.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		if err := compiler.AddResource(builtinBase+entry.Name(), bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("register schema %s: %w", entry.Name(), err)
		}
	}

	v := &DocumentValidator{
		builtin:  make(map[string]*jsonschema.Schema, len(entries)),
		adhoc:    make(map[string]*jsonschema.Schema),
		maxAdhoc: 256,
	}
	for _, entry := range entries {
		compiled, err := compiler.Compile(builtinBase + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", entry.Name(), err)
		}
		v.builtin[entry.Name()] = compiled
	}
	return v, nil
}

// MustNewDocumentValidator panics when the embedded schemas fail to compile.
func MustNewDocumentValidator() *DocumentValidator {
	v, err := NewDocumentValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks doc against one of the built-in document kinds.
func (v *DocumentValidator) Validate(ctx context.Context, kind string, doc any) error {
	compiled, ok := v.builtin[kind]
	if !ok {
		return fmt.Errorf("unknown document kind %q", kind)
	}
	return validateDocument(compiled, doc)
}

// ValidateWith checks doc against an ad-hoc schema document.
func (v *DocumentValidator) ValidateWith(ctx context.Context, schema []byte, doc any) error {
	if len(schema) == 0 {
		return errors.New("schema is required for validation")
	}
	compiled, err := v.getOrCompile(schema)
	if err != nil {
		return err
	}
	return validateDocument(compiled, doc)
}

func (v *DocumentValidator) getOrCompile(schema []byte) (*jsonschema.Schema, error) {
	sum := sha256.Sum256(schema)
	key := "harmony://adhoc/" + hex.EncodeToString(sum[:])

	v.mu.RLock()
	compiled, ok := v.adhoc[key]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// another goroutine may have populated the cache while we were waiting
	if compiled, ok = v.adhoc[key]; ok {
		return compiled, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(key, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("register schema: %w", err)
	}
	compiled, err := compiler.Compile(key)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	if len(v.adhoc) >= v.maxAdhoc {
		v.adhoc = make(map[string]*jsonschema.Schema)
	}
	v.adhoc[key] = compiled
	return compiled, nil
}

func validateDocument(compiled *jsonschema.Schema, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	err = compiled.Validate(decoded)
	if err == nil {
		return nil
	}

	var schemaErr *jsonschema.ValidationError
	if !errors.As(err, &schemaErr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	fields := apperr.FieldErrors{}
	collectLeaves(schemaErr, fields)
	for k := range fields {
		sort.Strings(fields[k])
	}
	return &apperr.ValidationError{Fields: fields}
}

func collectLeaves(ve *jsonschema.ValidationError, into apperr.FieldErrors) {
	if len(ve.Causes) == 0 {
		location := ve.InstanceLocation
		if location == "" {
			location = "/"
		}
		into.Add(location, ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, into)
	}
}
