package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recman/internal/config"
	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/manager"
	"github.com/roach88/recman/internal/pgstore"
	"github.com/roach88/recman/internal/store"
)

// session is an open backend plus the catalog it was opened with.
type session struct {
	catalog ir.Catalog
	table   func(entity string) (manager.Port[ir.Record], error)
	close   func()
}

// openSession loads the schema and opens the configured backend, creating
// missing tables and columns.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	catalog, err := LoadCatalog(opts.SchemaDir)
	if err != nil {
		return nil, err
	}

	backend := config.BackendSQLite
	if opts.Config != nil {
		backend = opts.Config.Backend
	}

	switch backend {
	case config.BackendPostgres:
		st, err := pgstore.Open(ctx, opts.Config.Database.DSN, catalog)
		if err != nil {
			return nil, err
		}
		return &session{
			catalog: catalog,
			table: func(entity string) (manager.Port[ir.Record], error) {
				t, err := st.Table(entity)
				if err != nil {
					return nil, err
				}
				return t, nil
			},
			close: st.Close,
		}, nil

	default:
		st, err := store.Open(opts.DBPath, catalog)
		if err != nil {
			return nil, err
		}
		return &session{
			catalog: catalog,
			table: func(entity string) (manager.Port[ir.Record], error) {
				t, err := st.Table(entity)
				if err != nil {
					return nil, err
				}
				return t, nil
			},
			close: func() { st.Close() },
		}, nil
	}
}

// withManager opens a session, builds the manager for entity and runs fn.
// Setup failures are reported through formatter as command errors.
func withManager(opts *RootOptions, cmd *cobra.Command, formatter *OutputFormatter, entity string,
	fn func(ctx context.Context, m *manager.Manager[ir.Record]) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := openSession(ctx, opts)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputLoadError(formatter, err)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer sess.close()

	port, err := sess.table(entity)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("unknown entity %q", entity), nil)
		return WrapExitError(ExitCommandError, "unknown entity", err)
	}

	logger := opts.Logger
	var mopts []manager.Option
	if logger != nil {
		mopts = append(mopts, manager.WithLogger(logger))
	}
	desc, _ := sess.catalog.Lookup(entity)
	m, err := manager.New[ir.Record](ctx, port, manager.NewRecordBinder(desc), mopts...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to create manager", err)
	}

	return fn(ctx, m)
}
