package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/recman/internal/ir"
)

var columnTypes = map[Dialect]map[ir.PrimitiveType]string{
	DialectSQLite: {
		ir.TypeInteger:  "INTEGER",
		ir.TypeFloat:    "REAL",
		ir.TypeDecimal:  "NUMERIC",
		ir.TypeDatetime: "DATETIME",
		ir.TypeBoolean:  "BOOLEAN",
		ir.TypeString:   "TEXT",
		ir.TypeText:     "TEXT",
	},
	DialectPostgres: {
		ir.TypeInteger:  "BIGINT",
		ir.TypeFloat:    "DOUBLE PRECISION",
		ir.TypeDecimal:  "NUMERIC",
		ir.TypeDatetime: "TIMESTAMPTZ",
		ir.TypeBoolean:  "BOOLEAN",
		ir.TypeString:   "TEXT",
		ir.TypeText:     "TEXT",
	},
}

// ColumnType returns the column type for t. Undeclared types store as TEXT.
func (d Dialect) ColumnType(t ir.PrimitiveType) string {
	if ct, ok := columnTypes[d][t]; ok {
		return ct
	}
	return "TEXT"
}

func (d Dialect) primaryKey() string {
	if d == DialectPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// CompileCreateTable renders an idempotent CREATE TABLE for desc: the id
// primary key, one column per field, and a <relation>_id column per to-one
// relation. To-many relations keep their key on the target table.
func (c *SQLCompiler) CompileCreateTable(desc ir.EntityDescriptor) (string, error) {
	qt := &quoter{}

	cols := []string{qt.ident(ir.IDField) + " " + c.Dialect.primaryKey()}
	for _, f := range desc.Fields {
		cols = append(cols, qt.ident(f.Name)+" "+c.Dialect.ColumnType(f.Type))
	}
	for _, r := range desc.Relations {
		if r.Kind == ir.RelationOne {
			cols = append(cols, qt.ident(r.ForeignKey())+" "+c.Dialect.ColumnType(ir.TypeInteger))
		}
	}

	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", qt.ident(desc.TableName()), strings.Join(cols, ",\n\t"))
	if qt.err != nil {
		return "", fmt.Errorf("compile %s table: %w", desc.Name, qt.err)
	}
	return sql, nil
}

// CompileAddColumn renders an ALTER TABLE adding one stored column of desc.
// Postgres statements are guarded with IF NOT EXISTS; SQLite callers check
// the existing columns first.
func (c *SQLCompiler) CompileAddColumn(desc ir.EntityDescriptor, col string) (string, error) {
	qt := &quoter{}
	guard := ""
	if c.Dialect == DialectPostgres {
		guard = "IF NOT EXISTS "
	}
	sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s%s %s",
		qt.ident(desc.TableName()), guard, qt.ident(col), c.Dialect.ColumnType(columnType(desc, col)))
	if qt.err != nil {
		return "", fmt.Errorf("compile %s column: %w", desc.Name, qt.err)
	}
	return sql, nil
}
