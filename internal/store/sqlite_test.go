package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contacts-app/internal/config"
	"gitlab.com/dirk.krummacker/contacts-app/internal/model"
)

// openSQLiteStore creates a migrated in-memory database. With seed set to false the seed
// contacts are rolled back again, leaving an empty table.
func openSQLiteStore(t *testing.T, seed bool) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, config.Database{Driver: config.DriverSQLite})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db, "up"))
	if !seed {
		require.NoError(t, Migrate(ctx, db, "down"))
	}
	s, err := New(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// names returns "first last" for every contact.
func names(t *testing.T, s *Store, query string) []string {
	t.Helper()
	contacts, err := s.List(context.Background(), query)
	require.NoError(t, err)
	result := make([]string, 0, len(contacts))
	for _, c := range contacts {
		result = append(result, c.First+" "+c.Last)
	}
	return result
}

// TestSQLiteSeedOrder expects the seed contacts ordered by last name.
func TestSQLiteSeedOrder(t *testing.T) {
	s := openSQLiteStore(t, true)
	assert.Equal(t, []string{
		"Christopher Chedeau",
		"Ryan Florence",
		"Michael Jackson",
		"Shruti Kapoor",
		"Brooks Lybrand",
		"Cameron Matheson",
		"Oscar Newman",
		"Glenn Reyes",
	}, names(t, s, ""))
}

// TestSQLiteSearch expects a case-insensitive substring match on first or last name.
func TestSQLiteSearch(t *testing.T) {
	s := openSQLiteStore(t, true)
	assert.Equal(t, []string{"Ryan Florence", "Glenn Reyes"}, names(t, s, "RE"))
	assert.Equal(t, []string{"Cameron Matheson"}, names(t, s, "math"))
	assert.Empty(t, names(t, s, "zz"))
	assert.Empty(t, names(t, s, "%"))
}

// TestSQLiteSearchUnicode expects case folding beyond ASCII, which SQLite's own LOWER lacks.
func TestSQLiteSearchUnicode(t *testing.T) {
	s := openSQLiteStore(t, false)
	ctx := context.Background()
	created, err := s.Create(ctx)
	require.NoError(t, err)
	first, last := "Élan", "Núñez"
	_, err = s.Update(ctx, created.ID, model.Update{First: &first, Last: &last})
	require.NoError(t, err)

	assert.Equal(t, []string{"Élan Núñez"}, names(t, s, "é"))
	assert.Equal(t, []string{"Élan Núñez"}, names(t, s, "ÉLAN"))
	assert.Equal(t, []string{"Élan Núñez"}, names(t, s, "ÑEZ"))
	assert.Empty(t, names(t, s, "ö"))
}

// TestSQLiteLifecycle walks a contact through create, edit, favorite and delete.
func TestSQLiteLifecycle(t *testing.T) {
	s := openSQLiteStore(t, false)
	ctx := context.Background()

	created, err := s.Create(ctx)
	require.NoError(t, err)

	fetched, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "", fetched.First)
	assert.Equal(t, "", fetched.Last)
	assert.False(t, fetched.Favorite)
	assert.Equal(t, created.CreatedAt.Unix(), fetched.CreatedAt.Unix())

	first, last, twitter := "Ada", "Lovelace", "@ada"
	_, err = s.Update(ctx, created.ID, model.Update{Twitter: &twitter})
	require.NoError(t, err)
	updated, err := s.Update(ctx, created.ID, model.Update{First: &first, Last: &last})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.First)
	assert.Equal(t, "Lovelace", updated.Last)
	assert.Equal(t, "@ada", updated.Twitter)

	favorite := true
	_, err = s.Update(ctx, created.ID, model.Update{Favorite: &favorite})
	require.NoError(t, err)
	// writing the same value again must not look like a missing contact
	_, err = s.Update(ctx, created.ID, model.Update{Favorite: &favorite})
	require.NoError(t, err)
	fetched, err = s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Favorite)

	require.NoError(t, s.Delete(ctx, created.ID))
	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, created.ID), ErrNotFound)
}
