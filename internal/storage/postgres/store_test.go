package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"budget/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	url := os.Getenv("BUDGET_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BUDGET_TEST_DATABASE_URL not set")
	}

	storagetest.Run(t, func(t *testing.T) storagetest.Backend {
		ctx := context.Background()
		s, err := Open(ctx, url)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE expense_events, expenses, categories RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
