package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidSchema(t *testing.T) {
	out, err := execute(t, "validate", schemaDir())
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All schemas valid (3 entities)")
}

func TestValidateValidSchemaJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", schemaDir())
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"Article", "Author", "Comment"}, resp.Data.Entities)
}

func TestValidateUsesSchemaFlag(t *testing.T) {
	out, err := execute(t, "--schema", schemaDir(), "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All schemas valid")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, "validate", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidateSyntaxError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte("entity: {"), 0o644))

	_, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateInvalidSchema(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join("testdata", "invalid"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E201")
	assert.Contains(t, out, "E206")
	assert.Contains(t, out, "E203")
	assert.Contains(t, out, "E205")
}

func TestValidateInvalidSchemaJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", filepath.Join("testdata", "invalid"))
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Errors)
	for _, e := range resp.Data.Errors {
		assert.Equal(t, "Post", e.Entity)
	}
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"type":                    "E201",
		"table":                   "E207",
		"relations.author.target": "E203",
		"relations.author.kind":   "E204",
		"cue":                     ErrCodeLoadFailed,
		"other":                   ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}
