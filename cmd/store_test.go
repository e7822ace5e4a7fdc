package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartis-org/cvi-workflow/internal/config"
	"github.com/hartis-org/cvi-workflow/internal/model"
	"github.com/hartis-org/cvi-workflow/internal/store"
)

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "history.db"),
	}}

	st, err := initStore()
	require.NoError(t, err)
	require.NotNil(t, st)
	t.Cleanup(func() { _ = st.Close() })
}

func TestInitStore_DefaultDSN(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite"}}

	st, err := initStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// An empty database_url lands in ./cvi.db.
	assert.FileExists(t, filepath.Join(dir, "cvi.db"))
}

func TestInitStore_RejectsOtherDrivers(t *testing.T) {
	// Run history is SQLite only; postgres is the db load export target,
	// not a store driver.
	for _, driver := range []string{"postgres", "mysql", ""} {
		cfg = &config.Config{Store: config.StoreConfig{Driver: driver}}

		st, err := initStore()
		assert.Nil(t, st, "driver %q", driver)
		assert.ErrorContains(t, err, "unsupported store driver")
	}
}

func TestWithStore(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "history.db"),
	}}

	// CreateRun succeeding proves withStore ran the migration before fn.
	var created *model.Run
	err := withStore(context.Background(), func(st store.Store) error {
		run, err := st.CreateRun(context.Background(), "Miami Beach, United States", model.RunParams{})
		if err != nil {
			return err
		}
		created = run
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)
}

func TestWithStore_OpenFailure(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "redis"}}

	err := withStore(context.Background(), func(store.Store) error {
		t.Fatal("fn must not run when the store cannot open")
		return nil
	})
	assert.ErrorContains(t, err, "unsupported store driver")
}
