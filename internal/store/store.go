// Package store persists contacts in a SQL database. MySQL is the production database; Postgres
// (pgx) and SQLite are supported as well, the latter mostly for local runs and tests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contacts-app/internal/config"
	"gitlab.com/dirk.krummacker/contacts-app/internal/model"
	pkgmodel "gitlab.com/dirk.krummacker/contacts-app/pkg/model"
)

var (
	// ErrNotFound is returned if no contact has the requested id.
	ErrNotFound = errors.New("contact not found")

	// ErrNoChanges is returned by Update if the update does not contain any value.
	ErrNoChanges = errors.New("no values to be updated")
)

// columns is the column list of all selects. It matches the db tags of model.Contact.
const columns = "id, first_name, last_name, twitter, avatar, notes, favorite, created_at"

// newID and now are replaced in tests.
var (
	newID = uuid.NewString
	now   = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
)

// Store is the contact store. It is safe for concurrent use, but it does not protect against
// lost updates: two concurrent edits of the same contact both succeed and the last one wins.
type Store struct {
	db *sqlx.DB

	// lower is the SQL function that folds names to lower case for searching.
	lower string

	// insert is a prepared statement for creating a contact.
	insert *sqlx.NamedStmt

	// selectWhereID is a prepared statement for selecting the contact with a given id.
	selectWhereID *sqlx.Stmt

	// deleteWhereID is a prepared statement for deleting the contact with a given id.
	deleteWhereID *sqlx.Stmt
}

// New prepares all statements on the given database. The database can be a real database for
// production use or a mock database within unit tests.
func New(ctx context.Context, db *sqlx.DB) (*Store, error) {
	s := &Store{db: db, lower: "LOWER"}
	if db.DriverName() == config.DriverSQLite {
		s.lower = unicodeLower
	}
	var err error

	// Prepared statements offer a significant speed increase if executed many times.
	s.insert, err = db.PrepareNamedContext(ctx, `
		INSERT INTO contacts (`+columns+`)
		VALUES (:id, :first_name, :last_name, :twitter, :avatar, :notes, :favorite, :created_at)
	`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.selectWhereID, err = db.PreparexContext(ctx, db.Rebind(`
		SELECT `+columns+` FROM contacts WHERE id = ?
	`))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.deleteWhereID, err = db.PreparexContext(ctx, db.Rebind(`
		DELETE FROM contacts WHERE id = ?
	`))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// Close releases the prepared statements. It does not close the database.
func (s *Store) Close() error {
	return errors.Join(s.insert.Close(), s.selectWhereID.Close(), s.deleteWhereID.Close())
}

// List returns the contacts sorted by last name and creation time. If query is not empty, only
// contacts whose first or last name contains the query are returned. The comparison ignores
// case.
func (s *Store) List(ctx context.Context, query string) ([]pkgmodel.Contact, error) {
	contacts := []pkgmodel.Contact{}
	var err error
	if query == "" {
		err = s.db.SelectContext(ctx, &contacts, `
			SELECT `+columns+`
			FROM contacts
			ORDER BY last_name, created_at`)
	} else {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		err = s.db.SelectContext(ctx, &contacts, s.db.Rebind(`
			SELECT `+columns+`
			FROM contacts
			WHERE `+s.lower+`(first_name) LIKE ? ESCAPE '!'
				OR `+s.lower+`(last_name) LIKE ? ESCAPE '!'
			ORDER BY last_name, created_at`), pattern, pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return contacts, nil
}

// escapeLike escapes the wildcard characters of a LIKE pattern with '!'.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// Get returns the contact with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*pkgmodel.Contact, error) {
	var contact pkgmodel.Contact
	err := s.selectWhereID.GetContext(ctx, &contact, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &contact, nil
}

// Create inserts a new contact without any values and returns it.
func (s *Store) Create(ctx context.Context) (*pkgmodel.Contact, error) {
	contact := pkgmodel.Contact{
		ID:        newID(),
		CreatedAt: now(),
	}
	if _, err := s.insert.ExecContext(ctx, &contact); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &contact, nil
}

// Update overwrites the values specified in the update (and only those) and returns the new
// version of the contact.
func (s *Store) Update(ctx context.Context, id string, update model.Update) (*pkgmodel.Contact, error) {
	var args []interface{}
	var set []string
	if update.First != nil {
		args = append(args, *update.First)
		set = append(set, "first_name=?")
	}
	if update.Last != nil {
		args = append(args, *update.Last)
		set = append(set, "last_name=?")
	}
	if update.Twitter != nil {
		args = append(args, *update.Twitter)
		set = append(set, "twitter=?")
	}
	if update.Avatar != nil {
		args = append(args, *update.Avatar)
		set = append(set, "avatar=?")
	}
	if update.Notes != nil {
		args = append(args, *update.Notes)
		set = append(set, "notes=?")
	}
	if update.Favorite != nil {
		args = append(args, *update.Favorite)
		set = append(set, "favorite=?")
	}

	// It only makes sense to continue if we have at least one value to update.
	if len(args) == 0 {
		return nil, ErrNoChanges
	}

	query := "UPDATE contacts SET " + strings.Join(set, ", ") + " WHERE id=?"
	args = append(args, id)
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes the contact with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.deleteWhereID.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
