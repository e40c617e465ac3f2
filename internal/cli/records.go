package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/manager"
)

// RecordsResult is the JSON payload of record commands.
type RecordsResult struct {
	Entity  string      `json:"entity"`
	Count   int         `json:"count"`
	Records []ir.Record `json:"records"`
}

// DeleteResult is the JSON payload of the delete command.
type DeleteResult struct {
	Entity string `json:"entity"`
	ID     int64  `json:"id"`
}

// recordCommand builds a record command. run receives the positional args
// after the entity name.
func recordCommand(rootOpts *RootOptions, use, short, long string, nargs int,
	run func(ctx context.Context, m *manager.Manager[ir.Record], args []string) ([]ir.Record, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(nargs + 1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			return withManager(rootOpts, cmd, formatter, args[0], func(ctx context.Context, m *manager.Manager[ir.Record]) error {
				records, err := run(ctx, m, args[1:])
				if err != nil {
					return formatter.Fail(cmd.Name()+" failed", err)
				}
				return outputRecords(formatter, m.Descriptor(), records)
			})
		},
	}
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return recordCommand(rootOpts,
		"create <entity> <data-json>",
		"Create a record",
		`Create a record from a JSON object. Keys that are not fields or
<relation>_id columns of the entity are ignored; id is never taken from
input.`,
		1,
		func(ctx context.Context, m *manager.Manager[ir.Record], args []string) ([]ir.Record, error) {
			data, err := parseData(args[0])
			if err != nil {
				return nil, err
			}
			r, err := m.Create(ctx, data)
			if err != nil {
				return nil, err
			}
			return []ir.Record{r}, nil
		})
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	return recordCommand(rootOpts,
		"read <entity> <id>",
		"Read a record by id",
		"Read one record by primary key. Exits 1 when the id does not exist.",
		1,
		func(ctx context.Context, m *manager.Manager[ir.Record], args []string) ([]ir.Record, error) {
			id, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			r, err := m.Read(ctx, id)
			if err != nil {
				return nil, err
			}
			return []ir.Record{r}, nil
		})
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return recordCommand(rootOpts,
		"list <entity>",
		"List every record",
		"List every record of the entity in id order.",
		0,
		func(ctx context.Context, m *manager.Manager[ir.Record], _ []string) ([]ir.Record, error) {
			return m.ReadAll(ctx)
		})
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	return recordCommand(rootOpts,
		"find <entity> <criteria-json>",
		"Find records by exact column values",
		`Find records whose columns equal the given values. Keys must be stored
columns; a null value matches NULL. No joins and no LIKE.`,
		1,
		func(ctx context.Context, m *manager.Manager[ir.Record], args []string) ([]ir.Record, error) {
			criteria, err := parseData(args[0])
			if err != nil {
				return nil, err
			}
			return m.ReadBy(ctx, criteria)
		})
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return recordCommand(rootOpts,
		"query <entity> <filter-json>",
		"Query records with a filter map",
		`Compile a filter map to a join-aware query and run it.

Keys are fields (title), relation fields (author_name or author.name) or
the directives limit and orderBy. A string value starting with "|" is
OR-combined with the filters before it. Datetime fields take
{"startDate": ..., "endDate": ...}.

Example:
  recman query Article '{"published": {"startDate": "2015-05-30"}, "orderBy": {"views": "DESC"}}'`,
		1,
		func(ctx context.Context, m *manager.Manager[ir.Record], args []string) ([]ir.Record, error) {
			filters, err := ir.ParseFilterJSON([]byte(args[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid filter: %w", err)
			}
			return m.ReadByRecursively(ctx, filters)
		})
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return recordCommand(rootOpts,
		"update <entity> <id> <data-json>",
		"Update a record",
		"Bind the JSON object onto an existing record and save it. Exits 1 when the id does not exist.",
		2,
		func(ctx context.Context, m *manager.Manager[ir.Record], args []string) ([]ir.Record, error) {
			id, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			data, err := parseData(args[1])
			if err != nil {
				return nil, err
			}
			r, err := m.Update(ctx, id, data)
			if err != nil {
				return nil, err
			}
			return []ir.Record{r}, nil
		})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <entity> <id>",
		Short:         "Delete a record",
		Long:          "Delete one record by primary key. Exits 1 when the id does not exist.",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			id, err := parseID(args[1])
			if err != nil {
				return formatter.Fail("delete failed", err)
			}
			return withManager(rootOpts, cmd, formatter, args[0], func(ctx context.Context, m *manager.Manager[ir.Record]) error {
				deleted, err := m.Delete(ctx, id)
				if err != nil {
					return formatter.Fail("delete failed", err)
				}
				if formatter.Format == "json" {
					return formatter.Success(DeleteResult{Entity: m.Descriptor().Name, ID: deleted})
				}
				fmt.Fprintf(formatter.Writer, "✓ Deleted %s %d\n", m.Descriptor().Name, deleted)
				return nil
			})
		},
	}
}

// parseData decodes a JSON object. Numbers stay json.Number so the binder
// converts them by field type without float rounding.
func parseData(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("invalid JSON object: expected an object")
	}
	return data, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

func outputRecords(formatter *OutputFormatter, desc ir.EntityDescriptor, records []ir.Record) error {
	if records == nil {
		records = []ir.Record{}
	}
	if formatter.Format == "json" {
		return formatter.Success(RecordsResult{Entity: desc.Name, Count: len(records), Records: records})
	}

	w := formatter.Writer
	if len(records) == 0 {
		fmt.Fprintf(w, "No %s records.\n", desc.Name)
		return nil
	}
	for _, r := range records {
		fmt.Fprintln(w, formatRecord(desc, r))
	}
	fmt.Fprintf(w, "(%d %s record(s))\n", len(records), desc.Name)
	return nil
}

// formatRecord renders a record on one line in column order. Columns the
// entity does not declare follow, sorted.
func formatRecord(desc ir.EntityDescriptor, r ir.Record) string {
	id, _ := r.ID()
	seen := map[string]bool{ir.IDField: true}

	var parts []string
	for _, col := range desc.Columns() {
		seen[col] = true
		if col == ir.IDField {
			continue
		}
		if v, ok := r[col]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", col, formatValue(v)))
		}
	}

	var extra []string
	for k := range r {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(r[k])))
	}

	return fmt.Sprintf("[%d] %s", id, strings.Join(parts, " "))
}

// formatValue formats a single value for display.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
