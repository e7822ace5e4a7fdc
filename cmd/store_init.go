package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hartis-org/cvi-workflow/internal/store"
)

// initStore opens the run-history store. Run history lives in SQLite; the
// postgres settings feed only the db load export.
func initStore() (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "cvi.db"
		}
		return store.NewSQLite(dsn)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// withStore opens the store, applies migrations, and runs fn against it,
// closing the store once fn returns. Commands that touch run history only
// for the duration of one invocation go through here.
func withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := initStore()
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate store")
	}
	return fn(st)
}
