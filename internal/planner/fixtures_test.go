package planner

import (
	"github.com/roach88/recman/internal/ir"
)

// stdClass mirrors the descriptor used by the reference filter scenario:
// seven typed fields and no relations.
func stdClass() ir.EntityDescriptor {
	return ir.EntityDescriptor{
		Name: `\stdClass`,
		Fields: []ir.Field{
			{Name: "testInteger", Type: ir.TypeInteger},
			{Name: "testFloat", Type: ir.TypeFloat},
			{Name: "testString", Type: ir.TypeString},
			{Name: "testDecimal", Type: ir.TypeDecimal},
			{Name: "datetimeTest", Type: ir.TypeDatetime},
			{Name: "datetimeTest2", Type: ir.TypeDatetime},
			{Name: "datetimeTest3", Type: ir.TypeDatetime},
		},
	}
}

func blogCatalog() (ir.EntityDescriptor, ir.Catalog) {
	article := ir.EntityDescriptor{
		Name:  "Article",
		Table: "articles",
		Fields: []ir.Field{
			{Name: "title", Type: ir.TypeString},
			{Name: "views", Type: ir.TypeInteger},
			{Name: "rating", Type: ir.TypeFloat},
			{Name: "published", Type: ir.TypeDatetime},
			{Name: "draft", Type: ir.TypeBoolean},
			{Name: "body", Type: "markdown"},
		},
		Relations: []ir.Relation{
			{Name: "author", Target: "Author", Kind: ir.RelationOne},
			{Name: "comments", Target: "Comment", Kind: ir.RelationMany, MappedBy: "article"},
			{Name: "editor", Target: "Ghost", Kind: ir.RelationOne},
		},
	}
	author := ir.EntityDescriptor{
		Name: "Author",
		Fields: []ir.Field{
			{Name: "name", Type: ir.TypeString},
			{Name: "born", Type: ir.TypeDatetime},
		},
	}
	comment := ir.EntityDescriptor{
		Name: "Comment",
		Fields: []ir.Field{
			{Name: "body", Type: ir.TypeText},
			{Name: "score", Type: ir.TypeInteger},
		},
	}
	return article, ir.NewCatalog(article, author, comment)
}
