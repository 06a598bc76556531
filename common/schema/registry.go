// Package schema resolves schema ids to compiled JSON Schemas and evaluates
// data against them. A Registry is built once at startup and is read-only
// afterwards, so it is safe for concurrent use without locking.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/opendataplatform/registry/common/errs"
)

// Validity is the outcome of evaluating data against a schema
type Validity struct {
	Valid  bool            `json:"valid"`
	Errors []ValidityError `json:"errors,omitempty"`
}

// ValidityError is one entry of the basic output format
type ValidityError struct {
	KeywordLocation         string `json:"keywordLocation"`
	AbsoluteKeywordLocation string `json:"absoluteKeywordLocation,omitempty"`
	InstanceLocation        string `json:"instanceLocation"`
	Error                   string `json:"error"`
}

// Map renders the report as stored alongside packages and records: a bare
// flag when valid, the full error list otherwise.
func (v *Validity) Map() map[string]any {
	if v.Valid {
		return map[string]any{"valid": true}
	}
	list := make([]any, 0, len(v.Errors))
	for _, e := range v.Errors {
		list = append(list, map[string]any{
			"keywordLocation":         e.KeywordLocation,
			"absoluteKeywordLocation": e.AbsoluteKeywordLocation,
			"instanceLocation":        e.InstanceLocation,
			"error":                   e.Error,
		})
	}
	return map[string]any{"valid": false, "errors": list}
}

type key struct {
	typ Type
	id  string
}

type compiled struct {
	entry    Entry
	schema   *jsonschema.Schema
	rules    map[string][]*rule
	template []byte
}

// Registry holds the compiled schema catalog
type Registry struct {
	schemas map[key]*compiled
}

// Load reads the manifest at path and compiles every schema it lists
func Load(path string) (*Registry, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	docs, err := m.ReadDocuments(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(docs)
}

// NewRegistry compiles docs into a registry
func NewRegistry(docs []Document) (*Registry, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	for _, doc := range docs {
		if err := compiler.AddResource(doc.URI, bytes.NewReader(doc.Schema)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", doc.ID, err)
		}
	}

	r := &Registry{schemas: make(map[key]*compiled, len(docs))}
	for _, doc := range docs {
		sch, err := compiler.Compile(doc.URI)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", doc.ID, err)
		}

		rules, err := compileRules(doc.Schema)
		if err != nil {
			return nil, fmt.Errorf("compile translation rules for %s: %w", doc.ID, err)
		}

		if len(doc.Template) > 0 && !json.Valid(doc.Template) {
			return nil, fmt.Errorf("template for %s is not valid JSON", doc.ID)
		}

		r.schemas[key{doc.Type, doc.ID}] = &compiled{
			entry:    doc.Entry,
			schema:   sch,
			rules:    rules,
			template: doc.Template,
		}
	}

	return r, nil
}

// Has reports whether the registry knows the schema
func (r *Registry) Has(typ Type, id string) bool {
	_, ok := r.schemas[key{typ, id}]
	return ok
}

// Entries returns the manifest entries of all loaded schemas
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, 0, len(r.schemas))
	for _, c := range r.schemas {
		entries = append(entries, c.entry)
	}
	return entries
}

func (r *Registry) lookup(typ Type, id string) (*compiled, error) {
	c, ok := r.schemas[key{typ, id}]
	if !ok {
		return nil, errs.Fatal(nil, "%s schema %s is not loaded", typ, id)
	}
	return c, nil
}

// Validate evaluates data against the schema
func (r *Registry) Validate(ctx context.Context, typ Type, id string, data map[string]any) (*Validity, error) {
	c, err := r.lookup(typ, id)
	if err != nil {
		return nil, err
	}
	return c.validate(data)
}

func (c *compiled) validate(data map[string]any) (*Validity, error) {
	instance, err := normalize(data)
	if err != nil {
		return nil, err
	}

	err = c.schema.Validate(instance)
	if err == nil {
		return &Validity{Valid: true}, nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("evaluate %s: %w", c.entry.ID, err)
	}

	basic := ve.BasicOutput()
	v := &Validity{Valid: false, Errors: make([]ValidityError, 0, len(basic.Errors))}
	for _, e := range basic.Errors {
		v.Errors = append(v.Errors, ValidityError{
			KeywordLocation:         e.KeywordLocation,
			AbsoluteKeywordLocation: e.AbsoluteKeywordLocation,
			InstanceLocation:        e.InstanceLocation,
			Error:                   e.Error,
		})
	}
	return v, nil
}

// Template returns a fresh copy of a metadata schema's template document
func (r *Registry) Template(ctx context.Context, id string) (map[string]any, error) {
	c, err := r.lookup(TypeMetadata, id)
	if err != nil {
		return nil, err
	}
	if len(c.template) == 0 {
		return nil, errs.Fatal(nil, "metadata schema %s has no template", id)
	}

	var doc map[string]any
	if err := json.Unmarshal(c.template, &doc); err != nil {
		return nil, errs.Fatal(err, "decode template for %s", id)
	}
	return doc, nil
}

// Scheme returns the translation scheme associated with a metadata schema
func (r *Registry) Scheme(ctx context.Context, id string) (string, error) {
	c, err := r.lookup(TypeMetadata, id)
	if err != nil {
		return "", err
	}
	if c.entry.Scheme == "" {
		return "", errs.Fatal(nil, "metadata schema %s has no translation scheme", id)
	}
	return c.entry.Scheme, nil
}

// TranslationPatch validates data against the schema and evaluates the
// schema's translation rules for scheme into patch operations.
func (r *Registry) TranslationPatch(ctx context.Context, typ Type, id string, data map[string]any, scheme string) ([]Operation, error) {
	c, err := r.lookup(typ, id)
	if err != nil {
		return nil, err
	}

	validity, err := c.validate(data)
	if err != nil {
		return nil, err
	}
	if !validity.Valid {
		return nil, errs.Unprocessable("data does not conform to %s", id).WithDetail(validity.Map())
	}

	return c.translate(data, scheme)
}

// Translate produces a complete document in scheme by applying the schema's
// translation rules to an empty document. With ignoreValidity the rules are
// evaluated even when data does not validate.
func (r *Registry) Translate(ctx context.Context, typ Type, id string, data map[string]any, scheme string, ignoreValidity bool) (map[string]any, error) {
	c, err := r.lookup(typ, id)
	if err != nil {
		return nil, err
	}

	if !ignoreValidity {
		validity, err := c.validate(data)
		if err != nil {
			return nil, err
		}
		if !validity.Valid {
			return nil, errs.Unprocessable("data does not conform to %s", id).WithDetail(validity.Map())
		}
	}

	ops, err := c.translate(data, scheme)
	if err != nil {
		return nil, err
	}

	doc, err := ApplyPatch(map[string]any{}, ops)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnprocessable, err, "translate %s to %s", id, scheme)
	}
	return doc, nil
}

// normalize round-trips data through JSON so the validator and the rule
// engine only ever see JSON-native Go types.
func normalize(data map[string]any) (any, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnprocessable, err, "data is not JSON-serializable")
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode normalized data: %w", err)
	}
	return out, nil
}
