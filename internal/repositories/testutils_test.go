package repositories_test

import (
	"context"
	"io"
	"testing"

	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/sqlite"
	"github.com/normicyte/normicyte/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// newTestDB creates a new in-memory database seeded with the schema and the
// built-in fixtures.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	dbs, err := sqlite.NewDatabase(context.Background(), ":memory:", logger)
	require.NoError(t, err, "open test database")

	t.Cleanup(func() {
		if err := dbs.Close(); err != nil {
			t.Fatal(err)
		}
	})

	return dbs
}

// insertTestUser registers a player so that foreign keys on progress and
// profile rows are satisfied.
func insertTestUser(t *testing.T, dbs *sqlite.Database) []byte {
	t.Helper()
	user, err := models.NewUser()
	require.NoError(t, err, "create user")
	_, err = dbs.ReadWrite.Exec(`INSERT INTO users (id, display_name) VALUES (?, ?)`, user.ID, user.DisplayName)
	require.NoError(t, err, "insert user")
	return user.ID
}
