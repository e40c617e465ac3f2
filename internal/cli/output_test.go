package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recman/internal/manager"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), buf.String())
	return resp
}

func TestOutputFormatter_JSONSuccessKeepsOperators(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(CompilationResult{
		Entity: "Article",
		DQL:    "SELECT article FROM Article article WHERE (article.published >= ?0 AND article.published <= ?1)",
	}))

	assert.Contains(t, buf.String(), ">= ?0", "operators must not be HTML-escaped")
	resp := decodeResponse(t, buf)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_Error(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		verbose bool
		details any
		want    []string
		notWant []string
	}{
		{
			name:   "text",
			format: "text",
			want:   []string{"Error [E006]: CUE build failed"},
		},
		{
			name:    "text hides details",
			format:  "text",
			details: map[string]string{"file": "article.cue"},
			notWant: []string{"Details:"},
		},
		{
			name:    "text verbose shows details",
			format:  "text",
			verbose: true,
			details: map[string]string{"file": "article.cue"},
			want:    []string{"Details: map[file:article.cue]"},
		},
		{
			name:    "json",
			format:  "json",
			details: map[string]string{"file": "article.cue"},
			want:    []string{`"status":"error"`, `"code":"E006"`, `"file":"article.cue"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: tt.format, Writer: buf, Verbose: tt.verbose}

			require.NoError(t, f.Error(ErrCodeBuildFailed, "CUE build failed", tt.details))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}

	quiet := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}
	quiet.VerboseLog("Validating entity: %s", "Article")
	assert.Empty(t, diag.String())

	loud := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}
	loud.VerboseLog("Validating entity: %s", "Article")
	assert.Equal(t, "Validating entity: Article\n", diag.String())
	assert.Empty(t, out.String())

	fallback := &OutputFormatter{Format: "text", Writer: out, Verbose: true}
	fallback.VerboseLog("Found %d CUE file(s)", 2)
	assert.Equal(t, "Found 2 CUE file(s)\n", out.String())
}

func TestOutputFormatter_FailClassifiesManagerErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := f.Fail("read failed", manager.NewNotFoundError("Article", 9))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [RESOURCE_NOT_FOUND]")

	buf.Reset()
	err = f.Fail("read failed", errors.New("disk on fire"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E001]: read failed: disk on fire")
}

func TestOutputFormatter_FailJSONCarriesField(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	cause := fmt.Errorf("query: %w", manager.NewUnknownFieldError("Article", "author_nickname"))
	err := f.Fail("query failed", cause)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, manager.ErrUnknownField)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string       `json:"code"`
			Details ErrorDetails `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "UNKNOWN_FIELD", resp.Error.Code)
	assert.Equal(t, ErrorDetails{Entity: "Article", Field: "author_nickname"}, resp.Error.Details)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitCommandError, "open store", errors.New("locked"))
	assert.Equal(t, "open store: locked", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "locked")
}
