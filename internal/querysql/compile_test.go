package querysql

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/planner"
	"github.com/roach88/recman/internal/queryir"
)

func blog() (ir.EntityDescriptor, ir.Catalog) {
	article := ir.EntityDescriptor{
		Name:  "Article",
		Table: "articles",
		Fields: []ir.Field{
			{Name: "title", Type: ir.TypeString},
			{Name: "views", Type: ir.TypeInteger},
			{Name: "published", Type: ir.TypeDatetime},
		},
		Relations: []ir.Relation{
			{Name: "author", Target: "Author", Kind: ir.RelationOne},
			{Name: "comments", Target: "Comment", Kind: ir.RelationMany, MappedBy: "article"},
		},
	}
	author := ir.EntityDescriptor{Name: "Author", Table: "authors", Fields: []ir.Field{{Name: "name", Type: ir.TypeString}}}
	comment := ir.EntityDescriptor{Name: "Comment", Fields: []ir.Field{
		{Name: "body", Type: ir.TypeText},
		{Name: "approved", Type: ir.TypeBoolean},
	}}
	return article, ir.NewCatalog(article, author, comment)
}

func compileFilters(t *testing.T, filters *ir.FilterMap) queryir.Query {
	t.Helper()
	article, catalog := blog()
	q, err := planner.Compile(planner.BuildBaseQuery(article), article, catalog, filters)
	require.NoError(t, err)
	return q
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "?1", DialectSQLite.Placeholder(0))
	assert.Equal(t, "$3", DialectPostgres.Placeholder(2))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	s, err := QuoteIdent("author_id")
	require.NoError(t, err)
	assert.Equal(t, `"author_id"`, s)

	for _, bad := range []string{"", "1abc", `a"b`, "a b", "a;DROP", "café"} {
		_, err := QuoteIdent(bad)
		assert.Error(t, err, bad)
	}
}

func TestCompile_Skeleton(t *testing.T) {
	_, catalog := blog()
	c := NewSQLCompiler(DialectSQLite, catalog)

	sql, args, err := c.Compile(compileFilters(t, nil))
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT DISTINCT "article".* FROM "articles" AS "article"`+
			` LEFT JOIN "authors" AS "author" ON "author"."id" = "article"."author_id"`+
			` LEFT JOIN "comment" AS "comments" ON "comments"."article_id" = "article"."id"`+
			` ORDER BY "article"."id" ASC`,
		sql)
	assert.Empty(t, args)
}

func TestCompile_Filters(t *testing.T) {
	_, catalog := blog()
	q := compileFilters(t, ir.NewFilterMap(
		ir.Entry("limit", 10),
		ir.Entry("title", "Go%"),
		ir.Entry("published", ir.NewFilterMap(ir.Entry("startDate", "2024-01-01"), ir.Entry("endDate", "2024-12-31"))),
		ir.Entry("author_name", "|Ann"),
		ir.Entry("orderBy", ir.NewFilterMap(ir.Entry("views", "DESC"))),
	))

	tests := []struct {
		dialect Dialect
		where   string
	}{
		{DialectSQLite, `WHERE "article"."title" LIKE ?1 AND ("article"."published" >= ?2 AND "article"."published" <= ?3) OR "author"."name" LIKE ?4`},
		{DialectPostgres, `WHERE "article"."title" LIKE $1 AND ("article"."published" >= $2 AND "article"."published" <= $3) OR "author"."name" LIKE $4`},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			sql, args, err := NewSQLCompiler(tt.dialect, catalog).Compile(q)
			require.NoError(t, err)

			assert.Contains(t, sql, tt.where)
			assert.True(t, strings.HasSuffix(sql, `ORDER BY "article"."views" DESC, "article"."id" ASC LIMIT 10`), sql)
			assert.Equal(t, []any{
				"Go%",
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
				"Ann",
			}, args)
		})
	}
}

func TestCompile_NoValueInterpolation(t *testing.T) {
	_, catalog := blog()
	q := compileFilters(t, ir.NewFilterMap(ir.Entry("title", "'; DROP TABLE articles; --")))

	sql, args, err := NewSQLCompiler(DialectSQLite, catalog).Compile(q)
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{"'; DROP TABLE articles; --"}, args)
}

func TestCompile_OrderByRelationAddsKeyColumn(t *testing.T) {
	_, catalog := blog()
	q := compileFilters(t, ir.NewFilterMap(ir.Entry("orderBy", ir.NewFilterMap(ir.Entry("author_name", "asc")))))

	sql, _, err := NewSQLCompiler(DialectPostgres, catalog).Compile(q)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, `SELECT DISTINCT "article".*, "author"."name" AS "order_key" FROM`), sql)
	assert.Contains(t, sql, `ORDER BY "author"."name" ASC, "article"."id" ASC`)
}

func TestCompile_OrClauseGroupsBeforeLaterAnd(t *testing.T) {
	_, catalog := blog()
	q := compileFilters(t, ir.NewFilterMap(
		ir.Entry("title", "Rust%"),
		ir.Entry("author_name", "|Ann"),
		ir.Entry("views", 10),
	))

	tests := []struct {
		dialect Dialect
		where   string
	}{
		{DialectSQLite, ` WHERE ("article"."title" LIKE ?1 OR "author"."name" LIKE ?2) AND "article"."views" = ?3 ORDER BY`},
		{DialectPostgres, ` WHERE ("article"."title" LIKE $1 OR "author"."name" LIKE $2) AND "article"."views" = $3 ORDER BY`},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			sql, args, err := NewSQLCompiler(tt.dialect, catalog).Compile(q)
			require.NoError(t, err)
			assert.Contains(t, sql, tt.where)
			assert.Equal(t, []any{"Rust%", "Ann", int64(10)}, args)
		})
	}
}

func TestCompile_OrderByToManyAggregatesPerRoot(t *testing.T) {
	_, catalog := blog()

	tests := []struct {
		name    string
		dialect Dialect
		order   *ir.FilterMap
		key     string
		dir     string
	}{
		{"sqlite asc", DialectSQLite, ir.NewFilterMap(ir.Entry("comments_body", "asc")), `MIN("comments"."body")`, "ASC"},
		{"postgres desc", DialectPostgres, ir.NewFilterMap(ir.Entry("comments_body", "desc")), `MAX("comments"."body")`, "DESC"},
		{"postgres boolean asc", DialectPostgres, ir.NewFilterMap(ir.Entry("comments_approved", "asc")), `BOOL_AND("comments"."approved")`, "ASC"},
		{"postgres boolean desc", DialectPostgres, ir.NewFilterMap(ir.Entry("comments_approved", "desc")), `BOOL_OR("comments"."approved")`, "DESC"},
		{"sqlite boolean desc", DialectSQLite, ir.NewFilterMap(ir.Entry("comments_approved", "desc")), `MAX("comments"."approved")`, "DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := compileFilters(t, ir.NewFilterMap(ir.Entry("limit", 2), ir.Entry("orderBy", tt.order)))

			sql, _, err := NewSQLCompiler(tt.dialect, catalog).Compile(q)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(sql, `SELECT "article".*, `+tt.key+` AS "order_key" FROM`), sql)
			assert.NotContains(t, sql, "DISTINCT")
			assert.True(t, strings.HasSuffix(sql,
				` GROUP BY "article"."id" ORDER BY "order_key" `+tt.dir+`, "article"."id" ASC LIMIT 2`), sql)
		})
	}
}

func TestCompile_OrderByToManyKeepsWhereBeforeGroupBy(t *testing.T) {
	_, catalog := blog()
	q := compileFilters(t, ir.NewFilterMap(
		ir.Entry("title", "Go%"),
		ir.Entry("orderBy", ir.NewFilterMap(ir.Entry("comments_body", "asc"))),
	))

	sql, _, err := NewSQLCompiler(DialectSQLite, catalog).Compile(q)
	require.NoError(t, err)
	assert.Contains(t, sql, `WHERE "article"."title" LIKE ?1 GROUP BY "article"."id" ORDER BY "order_key" ASC`)
}

func TestCompile_RejectsBadIdentifiers(t *testing.T) {
	_, catalog := blog()
	q := compileFilters(t, nil)
	q.OrderBy = &queryir.OrderBy{Field: ir.FieldPath{Relation: "article", Field: "views DESC; --"}, Direction: queryir.Asc}

	_, _, err := NewSQLCompiler(DialectSQLite, catalog).Compile(q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQL identifier")
}

func TestCompile_RejectsInvalidQuery(t *testing.T) {
	_, catalog := blog()
	q := compileFilters(t, ir.NewFilterMap(ir.Entry("title", "x")))
	q.Params = nil

	_, _, err := NewSQLCompiler(DialectSQLite, catalog).Compile(q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query")
}

func TestCompile_UnknownJoinTarget(t *testing.T) {
	article, _ := blog()
	q := compileFilters(t, nil)

	_, _, err := NewSQLCompiler(DialectSQLite, ir.NewCatalog(article)).Compile(q)
	assert.ErrorContains(t, err, "unknown target Author")
}

func TestCompileEquality(t *testing.T) {
	article, catalog := blog()
	c := NewSQLCompiler(DialectSQLite, catalog)

	sql, args, err := c.CompileEquality(article, map[string]any{"views": 3, "title": "Go", "author_id": nil})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "article".* FROM "articles" AS "article"`+
			` WHERE "article"."author_id" IS NULL AND "article"."title" = ?1 AND "article"."views" = ?2`+
			` ORDER BY "article"."id" ASC`,
		sql)
	assert.Equal(t, []any{"Go", int64(3)}, args)

	sql, args, err = c.CompileEquality(article, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "article".* FROM "articles" AS "article" ORDER BY "article"."id" ASC`, sql)
	assert.Empty(t, args)
}

func TestCompileInsertUpdateDelete(t *testing.T) {
	article, catalog := blog()
	r := ir.Record{"title": "Go", "author_id": int64(2), "stray": "x"}

	sql, args, err := NewSQLCompiler(DialectSQLite, catalog).CompileInsert(article, r)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "articles" ("title", "author_id") VALUES (?1, ?2)`, sql)
	assert.Equal(t, []any{"Go", int64(2)}, args)

	sql, _, err = NewSQLCompiler(DialectPostgres, catalog).CompileInsert(article, r)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "articles" ("title", "author_id") VALUES ($1, $2) RETURNING "id"`, sql)

	sql, _, err = NewSQLCompiler(DialectSQLite, catalog).CompileInsert(article, ir.Record{})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "articles" DEFAULT VALUES`, sql)

	r.SetID(7)
	sql, args, err = NewSQLCompiler(DialectPostgres, catalog).CompileUpdate(article, r)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "articles" SET "title" = $1, "author_id" = $2 WHERE "id" = $3`, sql)
	assert.Equal(t, []any{"Go", int64(2), int64(7)}, args)

	_, _, err = NewSQLCompiler(DialectSQLite, catalog).CompileUpdate(article, ir.Record{"title": "x"})
	assert.Error(t, err)

	sql, args, err = NewSQLCompiler(DialectSQLite, catalog).CompileDelete(article, 7)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "articles" WHERE "id" = ?1`, sql)
	assert.Equal(t, []any{int64(7)}, args)
}

func TestCompileCreateTable(t *testing.T) {
	article, catalog := blog()

	for _, d := range []Dialect{DialectSQLite, DialectPostgres} {
		t.Run(string(d), func(t *testing.T) {
			sql, err := NewSQLCompiler(d, catalog).CompileCreateTable(article)
			require.NoError(t, err)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, "create_table_"+string(d), []byte(sql))
		})
	}
}

func TestCompile_TypesArgsByColumn(t *testing.T) {
	_, catalog := blog()
	q := compileFilters(t, ir.NewFilterMap(
		ir.Entry("views", "12"),
		ir.Entry("title", 42),
		ir.Entry("author_id", "|7"),
	))

	_, args, err := NewSQLCompiler(DialectPostgres, catalog).Compile(q)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(12), "42", int64(7)}, args)

	// The query itself is left untouched.
	assert.Equal(t, []any{"12", 42, "7"}, q.Params)
}

func TestCompile_BindsDecimalsAsExactText(t *testing.T) {
	product := ir.EntityDescriptor{Name: "Product", Fields: []ir.Field{{Name: "price", Type: ir.TypeDecimal}}}
	catalog := ir.NewCatalog(product)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"string", "4.1", "4.1"},
		{"trailing zero", "4.10", "4.10"},
		{"beyond float precision", "12345678901234567.89", "12345678901234567.89"},
		{"number", 4.1, "4.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := planner.Compile(planner.BuildBaseQuery(product), product, catalog,
				ir.NewFilterMap(ir.Entry("price", tt.in)))
			require.NoError(t, err)

			sql, args, err := NewSQLCompiler(DialectPostgres, catalog).Compile(q)
			require.NoError(t, err)
			assert.Contains(t, sql, `WHERE "product"."price" = $1`)
			assert.Equal(t, []any{tt.want}, args)
		})
	}
}

func TestCompile_KeepsUnconvertibleArgs(t *testing.T) {
	_, catalog := blog()
	q := compileFilters(t, ir.NewFilterMap(ir.Entry("views", "many")))

	_, args, err := NewSQLCompiler(DialectSQLite, catalog).Compile(q)
	require.NoError(t, err)
	assert.Equal(t, []any{"many"}, args)
}

func TestCompileAddColumn(t *testing.T) {
	article, catalog := blog()

	sql, err := NewSQLCompiler(DialectSQLite, catalog).CompileAddColumn(article, "published")
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "articles" ADD COLUMN "published" DATETIME`, sql)

	sql, err = NewSQLCompiler(DialectPostgres, catalog).CompileAddColumn(article, "author_id")
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "articles" ADD COLUMN IF NOT EXISTS "author_id" BIGINT`, sql)

	_, err = NewSQLCompiler(DialectSQLite, catalog).CompileAddColumn(article, "bad col")
	assert.Error(t, err)
}
