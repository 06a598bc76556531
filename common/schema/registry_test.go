package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendataplatform/registry/common/errs"
)

const commentSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {"comment": {"type": "string"}},
	"required": ["comment"],
	"x-translation": {
		"test/doc": [
			{"op": "add", "path": "/title", "value": "data.comment"}
		]
	}
}`

const isoSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"abstract": {"type": "string"},
		"keywords": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["title"],
	"x-translation": {
		"test/doc": [
			{"op": "add", "path": "/titles/-", "value": "{'title': data.title}", "when": "has(data.title)"},
			{"op": "add", "path": "/descriptions/-", "value": "{'description': data.abstract, 'descriptionType': 'Abstract'}", "when": "has(data.abstract)"},
			{"op": "add", "path": "/subjects", "value": "has(data.keywords) ? data.keywords.map(k, {'subject': k}) : []"}
		]
	}
}`

const docSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {"title": {"type": "string"}},
	"required": ["title"]
}`

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry([]Document{
		{Entry: Entry{ID: "Comment", Type: TypeTag, URI: "https://odp.test/schema/tag/comment"}, Schema: []byte(commentSchema)},
		{Entry: Entry{ID: "ISO", Type: TypeMetadata, URI: "https://odp.test/schema/metadata/iso", Scheme: "test/doc"}, Schema: []byte(isoSchema)},
		{
			Entry:    Entry{ID: "Doc", Type: TypeMetadata, URI: "https://odp.test/schema/metadata/doc", Scheme: "test/doc"},
			Schema:   []byte(docSchema),
			Template: []byte(`{"language": "en"}`),
		},
	})
	require.NoError(t, err)
	return r
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(t)

	v, err := r.Validate(ctx, TypeTag, "Comment", map[string]any{"comment": "hello"})
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, map[string]any{"valid": true}, v.Map())

	v, err = r.Validate(ctx, TypeTag, "Comment", map[string]any{"comment": 5})
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.NotEmpty(t, v.Errors)
	assert.Equal(t, false, v.Map()["valid"])
	assert.NotEmpty(t, v.Map()["errors"])
}

func TestLookupIsTyped(t *testing.T) {
	r := testRegistry(t)

	assert.True(t, r.Has(TypeTag, "Comment"))
	assert.False(t, r.Has(TypeMetadata, "Comment"))

	_, err := r.Validate(context.Background(), TypeMetadata, "Comment", nil)
	assert.Equal(t, errs.KindFatal, errs.KindOf(err))
}

func TestTranslationPatch(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(t)

	ops, err := r.TranslationPatch(ctx, TypeTag, "Comment", map[string]any{"comment": "hello"}, "test/doc")
	require.NoError(t, err)
	assert.Equal(t, []Operation{{Op: "add", Path: "/title", Value: "hello"}}, ops)

	ops, err = r.TranslationPatch(ctx, TypeTag, "Comment", map[string]any{"comment": "hello"}, "other/scheme")
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestTranslationPatchRejectsInvalidData(t *testing.T) {
	_, err := testRegistry(t).TranslationPatch(context.Background(), TypeTag, "Comment", map[string]any{}, "test/doc")
	require.Error(t, err)
	assert.Equal(t, errs.KindUnprocessable, errs.KindOf(err))

	detail, ok := errs.DetailOf(err).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, detail["valid"])
}

func TestTranslate(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(t)

	doc, err := r.Translate(ctx, TypeMetadata, "ISO", map[string]any{
		"title":    "Rainfall",
		"abstract": "Daily rainfall",
		"keywords": []any{"rain", "climate"},
	}, "test/doc", false)
	require.NoError(t, err)

	assert.Equal(t, []any{map[string]any{"title": "Rainfall"}}, doc["titles"])
	assert.Equal(t, []any{map[string]any{"description": "Daily rainfall", "descriptionType": "Abstract"}}, doc["descriptions"])
	assert.Equal(t, []any{map[string]any{"subject": "rain"}, map[string]any{"subject": "climate"}}, doc["subjects"])
}

func TestTranslateIgnoreValidity(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(t)
	legacy := map[string]any{"abstract": "no title"}

	_, err := r.Translate(ctx, TypeMetadata, "ISO", legacy, "test/doc", false)
	assert.Equal(t, errs.KindUnprocessable, errs.KindOf(err))

	doc, err := r.Translate(ctx, TypeMetadata, "ISO", legacy, "test/doc", true)
	require.NoError(t, err)
	assert.NotContains(t, doc, "titles")
	assert.Len(t, doc["descriptions"], 1)
}

func TestTemplateAndScheme(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(t)

	tmpl, err := r.Template(ctx, "Doc")
	require.NoError(t, err)
	tmpl["language"] = "af"

	fresh, err := r.Template(ctx, "Doc")
	require.NoError(t, err)
	assert.Equal(t, "en", fresh["language"])

	_, err = r.Template(ctx, "ISO")
	assert.Equal(t, errs.KindFatal, errs.KindOf(err))

	scheme, err := r.Scheme(ctx, "Doc")
	require.NoError(t, err)
	assert.Equal(t, "test/doc", scheme)
}

func TestNewRegistryRejectsBadRules(t *testing.T) {
	bad := `{"type": "object", "x-translation": {"s": [{"op": "add", "path": "/a", "value": "data."}]}}`
	_, err := NewRegistry([]Document{
		{Entry: Entry{ID: "Bad", Type: TypeTag, URI: "https://odp.test/schema/bad"}, Schema: []byte(bad)},
	})
	assert.ErrorContains(t, err, "CEL compilation error")

	missingValue := `{"type": "object", "x-translation": {"s": [{"op": "add", "path": "/a"}]}}`
	_, err = NewRegistry([]Document{
		{Entry: Entry{ID: "Bad", Type: TypeTag, URI: "https://odp.test/schema/bad"}, Schema: []byte(missingValue)},
	})
	assert.ErrorContains(t, err, "'value' required")
}

func TestLoadFromManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comment.json"), []byte(commentSchema), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(`
schemas:
  - id: Comment
    type: tag
    uri: https://odp.test/schema/tag/comment
    file: comment.json
`), 0o644))

	r, err := Load(filepath.Join(dir, "manifest.yaml"))
	require.NoError(t, err)
	assert.True(t, r.Has(TypeTag, "Comment"))
	assert.Len(t, r.Entries(), 1)
}

func TestLoadManifestRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schemas:
  - id: X
    type: widget
    uri: https://odp.test/x
    file: x.json
`), 0o644))

	_, err := LoadManifest(path)
	assert.ErrorContains(t, err, "unknown type")
}
