package models

import "time"

// EntityKind names a taggable entity kind
type EntityKind string

const (
	KindCollection EntityKind = "collection"
	KindPackage    EntityKind = "package"
	KindRecord     EntityKind = "record"
)

// Cardinality governs how many instances of a tag an entity may carry
type Cardinality string

const (
	// CardinalityOne allows one instance per entity
	CardinalityOne Cardinality = "one"
	// CardinalityUser allows one instance per user per entity
	CardinalityUser Cardinality = "user"
	// CardinalityMulti allows any number of instances
	CardinalityMulti Cardinality = "multi"
)

// Tag is an immutable tag definition
type Tag struct {
	ID           string      `json:"id" yaml:"id"`
	Kind         EntityKind  `json:"type" yaml:"type"`
	Cardinality  Cardinality `json:"cardinality" yaml:"cardinality"`
	Public       bool        `json:"public" yaml:"public"`
	ScopeID      string      `json:"scope_id" yaml:"scope_id"`
	SchemaID     string      `json:"schema_id" yaml:"schema_id"`
	VocabularyID *string     `json:"vocabulary_id,omitempty" yaml:"vocabulary_id"`
}

// TagInstance is one application of a tag to one entity
type TagInstance struct {
	ID           string         `json:"id"`
	EntityID     string         `json:"entity_id"`
	TagID        string         `json:"tag_id"`
	UserID       *string        `json:"user_id,omitempty"`
	UserName     *string        `json:"user_name,omitempty"`
	VocabularyID *string        `json:"vocabulary_id,omitempty"`
	KeywordID    *int           `json:"keyword_id,omitempty"`
	Data         map[string]any `json:"data"`
	Timestamp    time.Time      `json:"timestamp"`

	// Denormalized from the tag definition on read.
	Cardinality Cardinality `json:"cardinality"`
	Public      bool        `json:"public"`

	// Root-to-keyword path, set for vocabulary tags.
	KeywordIDs  []int    `json:"keyword_ids,omitempty"`
	KeywordKeys []string `json:"keyword_keys,omitempty"`
}

// TagInstanceInput is the payload of an apply-tag request
type TagInstanceInput struct {
	TagID   string         `json:"tag_id"`
	Data    map[string]any `json:"data"`
	Keyword *string        `json:"keyword,omitempty"`
}
