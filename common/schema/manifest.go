package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Type distinguishes the roles a schema can play
type Type string

const (
	TypeTag        Type = "tag"
	TypeVocabulary Type = "vocabulary"
	TypeMetadata   Type = "metadata"
)

// Entry describes one schema in the catalog manifest
type Entry struct {
	ID   string `yaml:"id"`
	Type Type   `yaml:"type"`
	URI  string `yaml:"uri"`
	File string `yaml:"file"`
	// Template is the metadata skeleton that submission patches are applied to.
	Template string `yaml:"template,omitempty"`
	// Scheme is the translation scheme requested from tag schemas when
	// building metadata for this schema.
	Scheme string `yaml:"scheme,omitempty"`
}

// Manifest is the schema catalog definition
type Manifest struct {
	Schemas []Entry `yaml:"schemas"`
}

// Document is a manifest entry together with its loaded content
type Document struct {
	Entry
	Schema   []byte
	Template []byte
}

// LoadManifest parses the manifest at path
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse schema manifest %s: %w", path, err)
	}

	for i, e := range m.Schemas {
		if e.ID == "" || e.URI == "" || e.File == "" {
			return nil, fmt.Errorf("schema manifest entry %d: id, uri and file are required", i)
		}
		switch e.Type {
		case TypeTag, TypeVocabulary, TypeMetadata:
		default:
			return nil, fmt.Errorf("schema %s: unknown type %q", e.ID, e.Type)
		}
	}

	return &m, nil
}

// ReadDocuments loads the files referenced by m, relative to baseDir
func (m *Manifest) ReadDocuments(baseDir string) ([]Document, error) {
	docs := make([]Document, 0, len(m.Schemas))
	for _, e := range m.Schemas {
		doc := Document{Entry: e}

		var err error
		if doc.Schema, err = os.ReadFile(filepath.Join(baseDir, e.File)); err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.ID, err)
		}
		if e.Template != "" {
			if doc.Template, err = os.ReadFile(filepath.Join(baseDir, e.Template)); err != nil {
				return nil, fmt.Errorf("read template for %s: %w", e.ID, err)
			}
		}

		docs = append(docs, doc)
	}
	return docs, nil
}
