package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogJoins = "SELECT article, author, comments FROM Article article" +
	" LEFT JOIN article.author author LEFT JOIN article.comments comments"

func TestCompile_Text(t *testing.T) {
	out, err := execute(t, "--schema", schemaDir(), "compile", "Article",
		`{"title": "Go%", "author_name": "|Ann", "limit": 10}`)
	require.NoError(t, err)

	assert.Contains(t, out, "DQL:    "+blogJoins+" WHERE article.title LIKE ?0 OR author.name LIKE ?1\n")
	assert.Contains(t, out, `SQL:    SELECT DISTINCT "article".* FROM "articles" AS "article"`+
		` LEFT JOIN "authors" AS "author" ON "author"."id" = "article"."author_id"`+
		` LEFT JOIN "comment" AS "comments" ON "comments"."article_id" = "article"."id"`+
		` WHERE "article"."title" LIKE ?1 OR "author"."name" LIKE ?2`+
		` ORDER BY "article"."id" ASC LIMIT 10`)
	assert.Contains(t, out, `  ?0 = "Go%"`)
	assert.Contains(t, out, `  ?1 = "Ann"`)
	assert.Contains(t, out, "Limit:  10")
}

func TestCompile_JSONTypesArgs(t *testing.T) {
	out, err := execute(t, "--format", "json", "--schema", schemaDir(), "compile", "--dialect", "postgres", "Article",
		`{"views": "12", "published": {"startDate": "2015-05-30", "endDate": "2015-07-30"}, "orderBy": {"author_name": "desc"}}`)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	r := resp.Data
	assert.Equal(t, "Article", r.Entity)
	assert.Equal(t, "postgres", r.Dialect)
	assert.Equal(t, blogJoins+
		" WHERE article.views = ?0 AND (article.published >= ?1 AND article.published <= ?2)"+
		" ORDER BY author.name DESC", r.DQL)
	assert.Contains(t, r.SQL, `"author"."name" AS "order_key"`)
	assert.Contains(t, r.SQL, `WHERE "article"."views" = $1 AND ("article"."published" >= $2 AND "article"."published" <= $3)`)
	assert.Contains(t, r.SQL, `ORDER BY "author"."name" DESC, "article"."id" ASC`)

	// Params are echoed as supplied; args are typed for their columns.
	assert.Equal(t, []any{"12", "2015-05-30T00:00:00Z", "2015-07-30T00:00:00Z"}, r.Params)
	assert.Equal(t, []any{float64(12), "2015-05-30T00:00:00Z", "2015-07-30T00:00:00Z"}, r.Args)
	assert.Nil(t, r.MaxResults)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"unknown field", []string{"Article", `{"ghost": 1}`}, ExitFailure, "UNKNOWN_FIELD"},
		{"unknown relation column", []string{"Article", `{"author_ghost": 1}`}, ExitFailure, "UNKNOWN_FIELD"},
		{"bad date range", []string{"Article", `{"published": "2015-05-30"}`}, ExitFailure, "INVALID_DATE_RANGE"},
		{"bad limit", []string{"Article", `{"limit": "many"}`}, ExitFailure, "INVALID_DIRECTIVE"},
		{"bad order", []string{"Article", `{"orderBy": {"views": "UP"}}`}, ExitFailure, "INVALID_DIRECTIVE"},
		{"malformed json", []string{"Article", `{"title": `}, ExitCommandError, ErrCodeBadInput},
		{"unknown entity", []string{"Ghost", `{}`}, ExitCommandError, `unknown entity "Ghost"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--schema", schemaDir(), "compile"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestCompile_BadDialect(t *testing.T) {
	_, err := execute(t, "--schema", schemaDir(), "compile", "--dialect", "mysql", "Article", `{}`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompile_MissingSchema(t *testing.T) {
	out, err := execute(t, "--schema", "/nonexistent/schema", "compile", "Article", `{}`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}
