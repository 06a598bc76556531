package models

import "time"

// Provider owns collections and packages
type Provider struct {
	ID        string    `json:"id" yaml:"id"`
	Key       string    `json:"key" yaml:"key"`
	Name      string    `json:"name" yaml:"name"`
	Timestamp time.Time `json:"timestamp" yaml:"-"`
}

// ProviderInput is the payload of a provider create request
type ProviderInput struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Collection groups records belonging to a provider
type Collection struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DOIKey     *string   `json:"doi_key,omitempty"`
	ProviderID string    `json:"provider_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// CollectionInput is the payload of a collection create or update request
type CollectionInput struct {
	Name       string  `json:"name"`
	DOIKey     *string `json:"doi_key,omitempty"`
	ProviderID string  `json:"provider_id"`
}

// PackageStatus is the submission state of a package
type PackageStatus string

const (
	PackagePending   PackageStatus = "pending"
	PackageSubmitted PackageStatus = "submitted"
)

// Package bundles resources and the tag data from which its metadata is derived
type Package struct {
	ID         string         `json:"id"`
	Key        string         `json:"key"`
	Title      string         `json:"title"`
	Status     PackageStatus  `json:"status"`
	ProviderID string         `json:"provider_id"`
	SchemaID   string         `json:"schema_id"`
	Metadata   map[string]any `json:"metadata_"`
	Validity   map[string]any `json:"validity"`
	Resources  []string       `json:"resource_ids"`
	Timestamp  time.Time      `json:"timestamp"`
}

// PackageInput is the payload of a package create or update request
type PackageInput struct {
	Title      string   `json:"title"`
	ProviderID string   `json:"provider_id"`
	SchemaID   string   `json:"schema_id"`
	Resources  []string `json:"resource_ids,omitempty"`
}

// Record is a validated metadata record belonging to a collection
type Record struct {
	ID           string         `json:"id"`
	DOI          *string        `json:"doi,omitempty"`
	SID          *string        `json:"sid,omitempty"`
	CollectionID string         `json:"collection_id"`
	SchemaID     string         `json:"schema_id"`
	Metadata     map[string]any `json:"metadata"`
	Validity     map[string]any `json:"validity"`
	ParentID     *string        `json:"parent_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// RecordInput is the payload of a record create or update request
type RecordInput struct {
	DOI          *string        `json:"doi,omitempty"`
	SID          *string        `json:"sid,omitempty"`
	CollectionID string         `json:"collection_id"`
	SchemaID     string         `json:"schema_id"`
	Metadata     map[string]any `json:"metadata"`
	ParentID     *string        `json:"parent_id,omitempty"`
}
