package querysql

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/queryir"
)

// OrderKeyColumn is the extra result column carrying a relation-side sort key.
// Scanners ignore columns that are not declared on the entity.
const OrderKeyColumn = "order_key"

// SQLCompiler renders compiled queries and record statements as SQL.
//
// CRITICAL: every SELECT ends with the root id as a tiebreaker, so results
// are deterministic even when the caller orders by a non-unique column.
// CRITICAL: values are never interpolated; only validated identifiers and
// the integer limit appear in the SQL text.
type SQLCompiler struct {
	Dialect Dialect

	// Catalog resolves relation targets to their tables.
	Catalog ir.Catalog
}

// NewSQLCompiler creates a compiler for dialect d.
func NewSQLCompiler(d Dialect, catalog ir.Catalog) *SQLCompiler {
	return &SQLCompiler{Dialect: d, Catalog: catalog}
}

// Compile converts a compiled query to (sql, args). args holds q.Params,
// typed for their columns: the i-th placeholder of the query renders as the
// (i+1)-th numbered parameter.
//
//	SELECT DISTINCT "article".* FROM "articles" AS "article"
//	LEFT JOIN "author" AS "author" ON "author"."id" = "article"."author_id"
//	WHERE "author"."name" LIKE ?1 ORDER BY "article"."id" ASC
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.IsValid {
		return "", nil, fmt.Errorf("compile %s: invalid query: %s", q.Entity, strings.Join(res.Problems, "; "))
	}

	qt := &quoter{}
	var b strings.Builder

	// A to-many sort column has one value per child row, so the root rows
	// are grouped and sorted by the smallest (ASC) or largest (DESC) of them.
	// Everything else stays one row per root under DISTINCT.
	var orderKey string
	grouped := false
	if ob := q.OrderBy; ob != nil {
		orderKey = qt.column(ob.Field.Relation, ob.Field.Field)
		if j, ok := joinFor(q, ob.Field.Relation); ok && j.Relation.Kind == ir.RelationMany {
			grouped = true
			orderKey = c.aggregate(q, *ob, orderKey)
		}
	}

	if grouped {
		b.WriteString("SELECT ")
	} else {
		b.WriteString("SELECT DISTINCT ")
	}
	b.WriteString(qt.ident(q.Alias))
	b.WriteString(".*")
	if q.OrderBy != nil && q.OrderBy.Field.Relation != q.Alias {
		fmt.Fprintf(&b, ", %s AS %s", orderKey, qt.ident(OrderKeyColumn))
	}
	fmt.Fprintf(&b, " FROM %s AS %s", qt.ident(q.Table), qt.ident(q.Alias))

	for _, j := range q.Joins {
		target, ok := c.Catalog.Lookup(j.Relation.Target)
		if !ok {
			return "", nil, fmt.Errorf("compile %s: relation %s: unknown target %s", q.Entity, j.Alias, j.Relation.Target)
		}
		fmt.Fprintf(&b, " LEFT JOIN %s AS %s ON %s", qt.ident(target.TableName()), qt.ident(j.Alias), c.joinCondition(qt, q.Alias, j))
	}

	if len(q.Clauses) > 0 {
		cond, err := q.Condition(func(p queryir.Predicate) (string, error) {
			return c.compilePredicate(qt, p)
		})
		if err != nil {
			return "", nil, fmt.Errorf("compile %s: %w", q.Entity, err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(cond)
	}

	if grouped {
		b.WriteString(" GROUP BY ")
		b.WriteString(qt.column(q.Alias, ir.IDField))
	}

	b.WriteString(" ORDER BY ")
	if q.OrderBy != nil {
		if grouped {
			orderKey = qt.ident(OrderKeyColumn)
		}
		fmt.Fprintf(&b, "%s %s, ", orderKey, q.OrderBy.Direction)
	}
	b.WriteString(stableOrderKey(qt, q.Alias))

	if q.MaxResults != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*q.MaxResults))
	}

	if qt.err != nil {
		return "", nil, fmt.Errorf("compile %s: %w", q.Entity, qt.err)
	}

	return b.String(), c.bindArgs(q), nil
}

// bindArgs converts each param to the Go type of the column it is compared
// against, so drivers see int64 for an integer column rather than the
// string a filter carried. LIKE patterns stay strings. A value that does not
// convert is bound unchanged and simply fails to match.
func (c *SQLCompiler) bindArgs(q queryir.Query) []any {
	args := append([]any(nil), q.Params...)
	for _, cl := range q.Clauses {
		var (
			field ir.FieldPath
			like  bool
		)
		switch p := cl.Predicate.(type) {
		case queryir.Comparison:
			field, like = p.Field, p.Op == queryir.OpLike
		case *queryir.Comparison:
			field, like = p.Field, p.Op == queryir.OpLike
		case queryir.Range:
			field = p.Field
		case *queryir.Range:
			field = p.Field
		}

		t := ir.TypeString
		if !like {
			if f, ok := c.fieldAt(q, field); ok {
				t = f.Type
			}
		}
		for _, i := range cl.Predicate.Placeholders() {
			if i < 0 || i >= len(args) {
				continue
			}
			if v, err := ir.Coerce(t, args[i]); err == nil {
				args[i] = v
			}
		}
	}
	return args
}

// joinFor returns the join whose alias is rel.
func joinFor(q queryir.Query, rel string) (queryir.Join, bool) {
	for _, j := range q.Joins {
		if j.Alias == rel {
			return j, true
		}
	}
	return queryir.Join{}, false
}

// aggregate wraps col in the per-root reduction matching ob's direction.
// PostgreSQL has no MIN/MAX over booleans; BOOL_AND and BOOL_OR order the same way.
func (c *SQLCompiler) aggregate(q queryir.Query, ob queryir.OrderBy, col string) string {
	desc := ob.Direction == queryir.Desc
	if c.Dialect == DialectPostgres {
		if f, ok := c.fieldAt(q, ob.Field); ok && f.Type == ir.TypeBoolean {
			if desc {
				return "BOOL_OR(" + col + ")"
			}
			return "BOOL_AND(" + col + ")"
		}
	}
	if desc {
		return "MAX(" + col + ")"
	}
	return "MIN(" + col + ")"
}

// fieldAt resolves a qualified path against the root entity or a joined relation.
func (c *SQLCompiler) fieldAt(q queryir.Query, path ir.FieldPath) (ir.Field, bool) {
	entity := q.Entity
	if path.Relation != q.Alias {
		entity = ""
		for _, j := range q.Joins {
			if j.Alias == path.Relation {
				entity = j.Relation.Target
				break
			}
		}
	}
	desc, ok := c.Catalog.Lookup(entity)
	if !ok {
		return ir.Field{}, false
	}
	return desc.Field(path.Field)
}

// joinCondition links a relation alias back to the root.
//
//	one:  rel.id = root.<rel>_id
//	many: rel.<mapped_by>_id = root.id
func (c *SQLCompiler) joinCondition(qt *quoter, root string, j queryir.Join) string {
	if j.Relation.Kind == ir.RelationMany {
		return qt.column(j.Alias, j.Relation.ForeignKey()) + " = " + qt.column(root, ir.IDField)
	}
	return qt.column(j.Alias, ir.IDField) + " = " + qt.column(root, j.Relation.ForeignKey())
}

func (c *SQLCompiler) compilePredicate(qt *quoter, p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case queryir.Comparison:
		return fmt.Sprintf("%s %s %s", qt.column(pred.Field.Relation, pred.Field.Field), pred.Op, c.Dialect.Placeholder(pred.Index)), nil
	case *queryir.Comparison:
		return c.compilePredicate(qt, *pred)
	case queryir.Range:
		col := qt.column(pred.Field.Relation, pred.Field.Field)
		return fmt.Sprintf("(%s >= %s AND %s <= %s)", col, c.Dialect.Placeholder(pred.Start), col, c.Dialect.Placeholder(pred.End)), nil
	case *queryir.Range:
		return c.compilePredicate(qt, *pred)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// columnType returns the primitive type stored in col. Foreign keys are integers.
func columnType(desc ir.EntityDescriptor, col string) ir.PrimitiveType {
	if f, ok := desc.Field(col); ok {
		return f.Type
	}
	for _, r := range desc.Relations {
		if r.Kind == ir.RelationOne && r.ForeignKey() == col {
			return ir.TypeInteger
		}
	}
	return ir.TypeString
}

// stableOrderKey is the mandatory tiebreaker appended to every ORDER BY.
func stableOrderKey(qt *quoter, alias string) string {
	return qt.column(alias, ir.IDField) + " ASC"
}

// CompileEquality renders a flat equality lookup on desc's own table.
// Keys are sorted for deterministic output; a nil value matches NULL.
// An empty criteria map selects every row.
func (c *SQLCompiler) CompileEquality(desc ir.EntityDescriptor, criteria map[string]any) (string, []any, error) {
	qt := &quoter{}
	alias := desc.Alias()

	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s.* FROM %s AS %s", qt.ident(alias), qt.ident(desc.TableName()), qt.ident(alias))

	args := make([]any, 0, len(keys))
	for i, k := range keys {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		if criteria[k] == nil {
			fmt.Fprintf(&b, "%s IS NULL", qt.column(alias, k))
			continue
		}
		fmt.Fprintf(&b, "%s = %s", qt.column(alias, k), c.Dialect.Placeholder(len(args)))
		v := criteria[k]
		if typed, err := ir.Coerce(columnType(desc, k), v); err == nil {
			v = typed
		}
		args = append(args, v)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(stableOrderKey(qt, alias))

	if qt.err != nil {
		return "", nil, fmt.Errorf("compile %s lookup: %w", desc.Name, qt.err)
	}
	return b.String(), args, nil
}

// CompileInsert renders an INSERT of every stored column present in r,
// except id. Postgres statements return the generated id.
func (c *SQLCompiler) CompileInsert(desc ir.EntityDescriptor, r ir.Record) (string, []any, error) {
	qt := &quoter{}

	var cols, marks []string
	var args []any
	for _, col := range desc.Columns() {
		v, ok := r[col]
		if col == ir.IDField || !ok {
			continue
		}
		cols = append(cols, qt.ident(col))
		marks = append(marks, c.Dialect.Placeholder(len(args)))
		args = append(args, v)
	}

	var sql string
	if len(cols) == 0 {
		sql = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", qt.ident(desc.TableName()))
	} else {
		sql = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt.ident(desc.TableName()), strings.Join(cols, ", "), strings.Join(marks, ", "))
	}
	if c.Dialect == DialectPostgres {
		sql += " RETURNING " + qt.ident(ir.IDField)
	}

	if qt.err != nil {
		return "", nil, fmt.Errorf("compile %s insert: %w", desc.Name, qt.err)
	}
	return sql, args, nil
}

// CompileUpdate renders an UPDATE of every stored column present in r, by id.
func (c *SQLCompiler) CompileUpdate(desc ir.EntityDescriptor, r ir.Record) (string, []any, error) {
	id, ok := r.ID()
	if !ok {
		return "", nil, fmt.Errorf("compile %s update: record has no id", desc.Name)
	}
	qt := &quoter{}

	var sets []string
	var args []any
	for _, col := range desc.Columns() {
		v, ok := r[col]
		if col == ir.IDField || !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", qt.ident(col), c.Dialect.Placeholder(len(args))))
		args = append(args, v)
	}
	if len(sets) == 0 {
		sets = append(sets, fmt.Sprintf("%s = %s", qt.ident(ir.IDField), qt.ident(ir.IDField)))
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		qt.ident(desc.TableName()), strings.Join(sets, ", "), qt.ident(ir.IDField), c.Dialect.Placeholder(len(args)))
	args = append(args, id)

	if qt.err != nil {
		return "", nil, fmt.Errorf("compile %s update: %w", desc.Name, qt.err)
	}
	return sql, args, nil
}

// CompileDelete renders a DELETE by id.
func (c *SQLCompiler) CompileDelete(desc ir.EntityDescriptor, id int64) (string, []any, error) {
	table, err := QuoteIdent(desc.TableName())
	if err != nil {
		return "", nil, fmt.Errorf("compile %s delete: %w", desc.Name, err)
	}
	return fmt.Sprintf(`DELETE FROM %s WHERE "id" = %s`, table, c.Dialect.Placeholder(0)), []any{id}, nil
}
