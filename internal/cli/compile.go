package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recman/internal/config"
	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/manager"
	"github.com/roach88/recman/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect string // sqlite | postgres, defaults to the configured backend
}

// CompilationResult is a compiled filter in both renderings.
type CompilationResult struct {
	Entity     string `json:"entity"`
	DQL        string `json:"dql"`
	Dialect    string `json:"dialect"`
	SQL        string `json:"sql"`
	Params     []any  `json:"params"` // as supplied, in placeholder order
	Args       []any  `json:"args"`   // typed for their columns, as bound
	MaxResults *int   `json:"max_results,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <entity> <filter-json>",
		Short: "Compile a filter map to a query",
		Long: `Compile a filter map against an entity schema and print the object
query, the SQL for the chosen dialect and the bound parameters.

Nothing is executed and no database is opened. Key order in the filter
JSON is significant: it fixes placeholder numbering and OR grouping.

Example:
  recman compile Article '{"title": "Go%", "author_name": "|Ann", "limit": 10}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres)")

	return cmd
}

func runCompile(opts *CompileOptions, entity, filterJSON string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dialect, err := opts.dialect()
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid dialect", err)
	}

	catalog, err := LoadCatalog(opts.SchemaDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	desc, ok := catalog.Lookup(entity)
	if !ok {
		_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("unknown entity %q", entity), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown entity %q", entity))
	}

	filters, err := ir.ParseFilterJSON([]byte(filterJSON))
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	q, err := manager.Compile(desc, catalog, filters)
	if err != nil {
		return formatter.Fail("compile failed", err)
	}
	formatter.VerboseLog("Compiled %d clause(s) against %s", len(q.Clauses), desc.Name)

	sql, args, err := querysql.NewSQLCompiler(dialect, catalog).Compile(q)
	if err != nil {
		return formatter.Fail("render failed", err)
	}

	result := CompilationResult{
		Entity:     desc.Name,
		DQL:        q.DQL(),
		Dialect:    string(dialect),
		SQL:        sql,
		Params:     q.Params,
		Args:       args,
		MaxResults: q.MaxResults,
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputCompileText(formatter, result)
}

// dialect returns the --dialect flag, falling back to the backend's dialect.
func (o *CompileOptions) dialect() (querysql.Dialect, error) {
	if o.Dialect != "" {
		return querysql.ParseDialect(o.Dialect)
	}
	if o.Config != nil && o.Config.Backend == config.BackendPostgres {
		return querysql.DialectPostgres, nil
	}
	return querysql.DialectSQLite, nil
}

func outputCompileText(formatter *OutputFormatter, r CompilationResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "DQL:    %s\n", r.DQL)
	fmt.Fprintf(w, "SQL:    %s\n", r.SQL)
	for i, p := range r.Args {
		fmt.Fprintf(w, "  ?%d = %s\n", i, formatValue(p))
	}
	if r.MaxResults != nil {
		fmt.Fprintf(w, "Limit:  %d\n", *r.MaxResults)
	}
	return nil
}

// outputLoadError reports a schema that could not be loaded.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
	} else {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	}
	return WrapExitError(ExitCommandError, "failed to load schema", err)
}
