package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/manager"
)

func blogCatalog() ir.Catalog {
	article := ir.EntityDescriptor{
		Name:  "Article",
		Table: "articles",
		Fields: []ir.Field{
			{Name: "title", Type: ir.TypeString},
			{Name: "views", Type: ir.TypeInteger},
			{Name: "rating", Type: ir.TypeFloat},
			{Name: "published", Type: ir.TypeDatetime},
			{Name: "draft", Type: ir.TypeBoolean},
		},
		Relations: []ir.Relation{
			{Name: "author", Target: "Author", Kind: ir.RelationOne},
			{Name: "comments", Target: "Comment", Kind: ir.RelationMany, MappedBy: "article"},
		},
	}
	author := ir.EntityDescriptor{
		Name:   "Author",
		Table:  "authors",
		Fields: []ir.Field{{Name: "name", Type: ir.TypeString}},
	}
	comment := ir.EntityDescriptor{
		Name: "Comment",
		Fields: []ir.Field{
			{Name: "body", Type: ir.TypeText},
			{Name: "score", Type: ir.TypeInteger},
		},
		Relations: []ir.Relation{
			{Name: "article", Target: "Article", Kind: ir.RelationOne},
		},
	}
	return ir.NewCatalog(article, author, comment)
}

// createTestStore opens a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return openAt(t, filepath.Join(t.TempDir(), "test.db"), blogCatalog())
}

func openAt(t *testing.T, path string, catalog ir.Catalog) *Store {
	t.Helper()
	s, err := Open(path, catalog)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTable(t *testing.T, s *Store, entity string) *Table {
	t.Helper()
	tbl, err := s.Table(entity)
	require.NoError(t, err)
	return tbl
}

func testManager(t *testing.T, s *Store, entity string) *manager.Manager[ir.Record] {
	t.Helper()
	tbl := testTable(t, s, entity)
	m, err := manager.New[ir.Record](context.Background(), tbl, manager.NewRecordBinder(tbl.desc))
	require.NoError(t, err)
	return m
}
