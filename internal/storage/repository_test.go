package storage_test

import (
	"path/filepath"
	"testing"

	"budget/internal/storage"
	"budget/internal/storage/storagetest"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestSQLiteRepository(t *testing.T) {
	suite.Run(t, &storagetest.Suite{New: func() storage.Store {
		repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
		require.NoError(t, err)
		return repo
	}})
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "budget.db")

	first, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
