package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `schemas:
  - id: Tag.Comment
    type: tag
    uri: https://odp.test/schema/tag/comment
    file: comment.json
`

const testCommentSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {"comment": {"type": "string"}},
	"required": ["comment"]
}`

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(testManifest), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comment.json"), []byte(testCommentSchema), 0o600))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSchemaValidate(t *testing.T) {
	dir := writeCatalog(t)
	manifest := filepath.Join(dir, "manifest.yaml")

	t.Run("valid yaml document", func(t *testing.T) {
		doc := filepath.Join(dir, "ok.yaml")
		require.NoError(t, os.WriteFile(doc, []byte("comment: looks fine\n"), 0o600))

		out, err := execute(t, "schema", "validate", "-m", manifest, "tag", "Tag.Comment", doc)
		require.NoError(t, err)
		assert.Contains(t, out, "valid against tag Tag.Comment")
	})

	t.Run("invalid json document", func(t *testing.T) {
		doc := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(doc, []byte(`{"comment": 42}`), 0o600))

		out, err := execute(t, "schema", "validate", "-m", manifest, "tag", "Tag.Comment", doc)
		assert.ErrorIs(t, err, errInvalidDocument)
		assert.Contains(t, out, "invalid against tag Tag.Comment")
		assert.Contains(t, out, "/comment")
	})

	t.Run("unknown schema", func(t *testing.T) {
		doc := filepath.Join(dir, "ok.yaml")
		_, err := execute(t, "schema", "validate", "-m", manifest, "metadata", "Tag.Comment", doc)
		assert.Error(t, err)
	})

	t.Run("wrong argument count", func(t *testing.T) {
		_, err := execute(t, "schema", "validate", "-m", manifest, "tag")
		assert.Error(t, err)
	})
}

func TestSchemaList(t *testing.T) {
	dir := writeCatalog(t)

	out, err := execute(t, "schema", "list", "-m", filepath.Join(dir, "manifest.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Tag.Comment")
	assert.Contains(t, out, "https://odp.test/schema/tag/comment")
}

func TestFirstTitle(t *testing.T) {
	assert.Equal(t, "Rainfall", firstTitle(map[string]any{
		"titles": []any{map[string]any{"title": "Rainfall"}},
	}))
	assert.Empty(t, firstTitle(map[string]any{}))
}
