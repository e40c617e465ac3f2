package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/manager"
)

func TestTable_PersistAssignsID(t *testing.T) {
	s := createTestStore(t)
	tbl := testTable(t, s, "Author")
	ctx := t.Context()

	r := ir.Record{"name": "Ann"}
	require.NoError(t, tbl.Persist(ctx, r))

	id, ok := r.ID()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
}

func TestTable_ReadsOwnUncommittedWrites(t *testing.T) {
	s := createTestStore(t)
	tbl := testTable(t, s, "Author")
	ctx := t.Context()

	r := ir.Record{"name": "Ann"}
	require.NoError(t, tbl.Persist(ctx, r))
	id, _ := r.ID()

	got, found, err := tbl.FindByID(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Ann", got["name"])

	require.NoError(t, s.Rollback())

	_, found, err = tbl.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, found, "rollback discards staged writes")
}

func TestTable_RollbackDiscardsStagedWrites(t *testing.T) {
	s := createTestStore(t)
	tbl := testTable(t, s, "Author")
	ctx := t.Context()

	require.NoError(t, tbl.Persist(ctx, ir.Record{"name": "Ann"}))
	require.NoError(t, tbl.Rollback(ctx))
	require.NoError(t, tbl.Rollback(ctx), "nothing left to roll back")

	require.NoError(t, tbl.Persist(ctx, ir.Record{"name": "Bob"}))
	require.NoError(t, tbl.Commit(ctx))

	all, err := tbl.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Bob", all[0]["name"])
}

func TestTable_CommitIsDurable(t *testing.T) {
	s := createTestStore(t)
	tbl := testTable(t, s, "Author")
	ctx := t.Context()

	r := ir.Record{"name": "Ann"}
	require.NoError(t, tbl.Persist(ctx, r))
	require.NoError(t, tbl.Commit(ctx))
	require.NoError(t, s.Rollback(), "nothing left to roll back")

	all, err := tbl.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Ann", all[0]["name"])
}

func TestTable_CommitWithoutWritesIsNoop(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, testTable(t, s, "Author").Commit(t.Context()))
}

func TestTable_RoundTripsTypes(t *testing.T) {
	s := createTestStore(t)
	tbl := testTable(t, s, "Article")
	ctx := t.Context()

	published := time.Date(2015, 6, 1, 10, 30, 0, 0, time.UTC)
	r := ir.Record{
		"title":     "Hello",
		"views":     int64(10),
		"rating":    4.5,
		"published": published,
		"draft":     true,
		"author_id": nil,
	}
	require.NoError(t, tbl.Persist(ctx, r))
	require.NoError(t, tbl.Commit(ctx))
	id, _ := r.ID()

	got, found, err := tbl.FindByID(ctx, id)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, id, got["id"])
	assert.Equal(t, "Hello", got["title"])
	assert.Equal(t, int64(10), got["views"])
	assert.Equal(t, 4.5, got["rating"])
	assert.Equal(t, true, got["draft"])
	assert.Nil(t, got["author_id"])
	ts, ok := got["published"].(time.Time)
	require.True(t, ok, "published decodes as time.Time, got %T", got["published"])
	assert.True(t, published.Equal(ts))
}

func TestTable_UpdateAndRemove(t *testing.T) {
	s := createTestStore(t)
	tbl := testTable(t, s, "Author")
	ctx := t.Context()

	r := ir.Record{"name": "Ann"}
	require.NoError(t, tbl.Persist(ctx, r))
	r["name"] = "Anne"
	require.NoError(t, tbl.Persist(ctx, r))
	require.NoError(t, tbl.Commit(ctx))

	all, err := tbl.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Anne", all[0]["name"])

	require.NoError(t, tbl.Remove(ctx, r))
	require.NoError(t, tbl.Commit(ctx))

	all, err = tbl.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTable_RemoveWithoutID(t *testing.T) {
	s := createTestStore(t)
	err := testTable(t, s, "Author").Remove(t.Context(), ir.Record{"name": "x"})
	assert.Error(t, err)
}

func TestTable_FindByEquality(t *testing.T) {
	s := createTestStore(t)
	tbl := testTable(t, s, "Article")
	ctx := t.Context()

	for _, title := range []string{"a", "b", "a"} {
		require.NoError(t, tbl.Persist(ctx, ir.Record{"title": title}))
	}
	require.NoError(t, tbl.Commit(ctx))

	rows, err := tbl.FindByEquality(ctx, map[string]any{"title": "a"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, int64(3), rows[1]["id"])

	rows, err = tbl.FindByEquality(ctx, map[string]any{"views": nil})
	require.NoError(t, err)
	assert.Len(t, rows, 3, "nil matches NULL")
}

// seedBlog creates two authors, three articles and three comments through
// managers, the way callers do.
func seedBlog(t *testing.T, s *Store) (articles, authors *manager.Manager[ir.Record]) {
	t.Helper()
	ctx := t.Context()
	articles = testManager(t, s, "Article")
	authors = testManager(t, s, "Author")
	comments := testManager(t, s, "Comment")

	ann, err := authors.Create(ctx, map[string]any{"name": "Ann"})
	require.NoError(t, err)
	bob, err := authors.Create(ctx, map[string]any{"name": "Bob"})
	require.NoError(t, err)
	annID, _ := ann.ID()
	bobID, _ := bob.ID()

	seed := []map[string]any{
		{"title": "Go tips", "views": "10", "published": "2015-06-01", "draft": "false", "author_id": annID},
		{"title": "Rust notes", "views": 30, "published": "2015-08-15", "draft": true, "author_id": bobID},
		{"title": "Go generics", "views": 20, "published": "2015-07-01", "draft": false, "author_id": bobID},
	}
	for _, data := range seed {
		_, err := articles.Create(ctx, data)
		require.NoError(t, err)
	}

	for _, c := range []map[string]any{
		{"body": "great", "score": 5, "article_id": 1},
		{"body": "meh", "score": 2, "article_id": 1},
		{"body": "nice", "score": 4, "article_id": 3},
	} {
		_, err := comments.Create(ctx, c)
		require.NoError(t, err)
	}
	return articles, authors
}

func titles(rows []ir.Record) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["title"].(string))
	}
	return out
}

func TestReadByRecursively_SQLite(t *testing.T) {
	s := createTestStore(t)
	articles, _ := seedBlog(t, s)

	tests := []struct {
		name    string
		filters *ir.FilterMap
		want    []string
	}{
		{
			name:    "no filters",
			filters: nil,
			want:    []string{"Go tips", "Rust notes", "Go generics"},
		},
		{
			name:    "like on root",
			filters: ir.NewFilterMap(ir.Entry("title", "Go%")),
			want:    []string{"Go tips", "Go generics"},
		},
		{
			name:    "integer equality from string",
			filters: ir.NewFilterMap(ir.Entry("views", "20")),
			want:    []string{"Go generics"},
		},
		{
			name:    "boolean equality",
			filters: ir.NewFilterMap(ir.Entry("draft", "true")),
			want:    []string{"Rust notes"},
		},
		{
			name:    "like on relation",
			filters: ir.NewFilterMap(ir.Entry("author_name", "Bob")),
			want:    []string{"Rust notes", "Go generics"},
		},
		{
			name: "or prefix",
			filters: ir.NewFilterMap(
				ir.Entry("title", "Rust%"),
				ir.Entry("author_name", "|Ann"),
			),
			want: []string{"Go tips", "Rust notes"},
		},
		{
			name: "closed date range",
			filters: ir.NewFilterMap(ir.Entry("published", ir.NewFilterMap(
				ir.Entry("startDate", "2015-06-15"),
				ir.Entry("endDate", "2015-08-01"),
			))),
			want: []string{"Go generics"},
		},
		{
			name:    "open date range",
			filters: ir.NewFilterMap(ir.Entry("published", ir.NewFilterMap(ir.Entry("startDate", "2015-07-01")))),
			want:    []string{"Rust notes", "Go generics"},
		},
		{
			name: "order and limit",
			filters: ir.NewFilterMap(
				ir.Entry("limit", "2"),
				ir.Entry("orderBy", ir.NewFilterMap(ir.Entry("views", "DESC"))),
			),
			want: []string{"Rust notes", "Go generics"},
		},
		{
			name:    "order by relation column",
			filters: ir.NewFilterMap(ir.Entry("orderBy", ir.NewFilterMap(ir.Entry("author_name", "DESC")))),
			want:    []string{"Rust notes", "Go generics", "Go tips"},
		},
		{
			name: "or clause followed by and",
			filters: ir.NewFilterMap(
				ir.Entry("title", "Rust%"),
				ir.Entry("author_name", "|Ann"),
				ir.Entry("views", 10),
			),
			want: []string{"Go tips"},
		},
		{
			name:    "order by to-many column ascending",
			filters: ir.NewFilterMap(ir.Entry("orderBy", ir.NewFilterMap(ir.Entry("comments_body", "ASC")))),
			want:    []string{"Rust notes", "Go tips", "Go generics"},
		},
		{
			name:    "order by to-many column descending",
			filters: ir.NewFilterMap(ir.Entry("orderBy", ir.NewFilterMap(ir.Entry("comments_score", "DESC")))),
			want:    []string{"Go tips", "Go generics", "Rust notes"},
		},
		{
			name: "order by to-many column with limit",
			filters: ir.NewFilterMap(
				ir.Entry("limit", 2),
				ir.Entry("orderBy", ir.NewFilterMap(ir.Entry("comments_score", "ASC"))),
			),
			want: []string{"Rust notes", "Go tips"},
		},
		{
			name:    "to-many join does not duplicate roots",
			filters: ir.NewFilterMap(ir.Entry("comments_body", "%")),
			want:    []string{"Go tips", "Go generics"},
		},
		{
			name:    "to-many integer filter",
			filters: ir.NewFilterMap(ir.Entry("comments_score", 4)),
			want:    []string{"Go generics"},
		},
		{
			name:    "no match is empty",
			filters: ir.NewFilterMap(ir.Entry("title", "Haskell")),
			want:    []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := articles.ReadByRecursively(t.Context(), tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(rows))
		})
	}
}

func TestReadByRecursively_SQLiteErrors(t *testing.T) {
	s := createTestStore(t)
	articles, _ := seedBlog(t, s)

	_, err := articles.ReadByRecursively(t.Context(), ir.NewFilterMap(ir.Entry("nope", "x")))
	assert.ErrorIs(t, err, manager.ErrUnknownField)

	_, err = articles.ReadByRecursively(t.Context(), ir.NewFilterMap(ir.Entry("published", "2015")))
	assert.ErrorIs(t, err, manager.ErrInvalidDateRange)
}

func TestManager_CRUDOnSQLite(t *testing.T) {
	s := createTestStore(t)
	_, authors := seedBlog(t, s)
	ctx := t.Context()

	got, err := authors.Read(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got["name"])

	updated, err := authors.Update(ctx, 2, map[string]any{"name": "Robert"})
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated["name"])

	byName, err := authors.ReadBy(ctx, map[string]any{"name": "Robert"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, int64(2), byName[0]["id"])

	id, err := authors.Delete(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = authors.Read(ctx, 1)
	assert.True(t, manager.IsNotFound(err))

	all, err := authors.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentReads_SQLite(t *testing.T) {
	s := createTestStore(t)
	articles, _ := seedBlog(t, s)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := articles.ReadByRecursively(t.Context(), ir.NewFilterMap(ir.Entry("title", "Go%")))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
