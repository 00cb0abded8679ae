package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contacts-app/internal/graphql"
	"gitlab.com/dirk.krummacker/contacts-app/internal/store"
	pkgmodel "gitlab.com/dirk.krummacker/contacts-app/pkg/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	acceptJSON = "application/json"
	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

var contactColumns = []string{
	"id", "first_name", "last_name", "twitter", "avatar", "notes", "favorite", "created_at",
}

var created = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// fakeBooks is a book source with fixed results.
type fakeBooks struct {
	books []pkgmodel.Book
	err   error
}

func (f fakeBooks) Books(context.Context) ([]pkgmodel.Book, error) {
	return f.books, f.err
}

// createMockObjects builds a mock database handle and a mock object for defining our expected SQL
// calls.
func createMockObjects(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// expectPreparedStatements instructs the mock object to expect that several statements are being
// prepared.
func expectPreparedStatements(mock sqlmock.Sqlmock) {
	mock.ExpectPrepare("INSERT INTO contacts")
	mock.ExpectPrepare("SELECT (.+) FROM contacts WHERE id = \\?")
	mock.ExpectPrepare("DELETE FROM contacts WHERE id = \\?")
}

// expectSingleRowSelect instructs the mock object to expect that a select statement for a single
// contact will be executed.
func expectSingleRowSelect(mock sqlmock.Sqlmock, contact pkgmodel.Contact) {
	rows := mock.NewRows(contactColumns).AddRow(contact.ID, contact.First, contact.Last,
		contact.Twitter, contact.Avatar, contact.Notes, contact.Favorite, created)
	mock.ExpectQuery("SELECT (.+) FROM contacts WHERE id = \\?").
		WithArgs(contact.ID).
		WillReturnRows(rows)
}

// expectListSelect instructs the mock object to expect the select statement of the root loader
// without a search query.
func expectListSelect(mock sqlmock.Sqlmock, contacts ...pkgmodel.Contact) {
	rows := mock.NewRows(contactColumns)
	for _, c := range contacts {
		rows.AddRow(c.ID, c.First, c.Last, c.Twitter, c.Avatar, c.Notes, c.Favorite, created)
	}
	mock.ExpectQuery("SELECT (.+) FROM contacts\\s+ORDER BY last_name, created_at").
		WillReturnRows(rows)
}

// initializeContactsService sets up the contacts service with the mock database and returns a
// handle to the gin engine against which requests can be executed.
func initializeContactsService(t *testing.T, db *sql.DB, books BookSource, logger *zap.Logger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.ReleaseMode)
	contacts, err := store.New(context.Background(), sqlx.NewDb(db, "mysql"))
	require.NoError(t, err)
	if books == nil {
		books = fakeBooks{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := New(contacts, books, logger)
	require.NoError(t, err)
	return s.SetupHttpRouter(false)
}

// runTest executes the HTTP request with the specified arguments and returns the response. A
// non-nil form is sent url-encoded.
func runTest(router *gin.Engine, method, target string, form url.Values, accept string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	body := strings.NewReader("")
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	request, _ := http.NewRequest(method, target, body)
	if form != nil {
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if accept != "" {
		request.Header.Set("Accept", accept)
	}
	router.ServeHTTP(recorder, request)
	return recorder
}

func assertExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

var (
	ada     = pkgmodel.Contact{ID: "ada", First: "Ada", Last: "Lovelace", Twitter: "@ada", Notes: "first programmer"}
	grace   = pkgmodel.Contact{ID: "grace", First: "Grace", Last: "Hopper", Favorite: true}
	unnamed = pkgmodel.Contact{ID: "0b0c7c0e-5d1e-4f0a-9c39-1a6c0f5b1e2d"}
)

// TestListJSON executes the root loader for a JSON client. It expects all contacts and a null
// search query.
func TestListJSON(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectListSelect(mock, grace, ada)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/", nil, acceptJSON)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Nil(t, body["q"])
	contacts := body["contacts"].([]interface{})
	require.Len(t, contacts, 2)
	assert.Equal(t, "grace", contacts[0].(map[string]interface{})["id"])
	assert.Equal(t, true, contacts[0].(map[string]interface{})["favorite"])
	assert.Equal(t, "Lovelace", contacts[1].(map[string]interface{})["last"])
	assertExpectations(t, mock)
}

// TestListSearchJSON expects that the search query is passed to the store and echoed back.
func TestListSearchJSON(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectQuery("WHERE LOWER\\(first_name\\) LIKE \\?").
		WithArgs("%ad%", "%ad%").
		WillReturnRows(mock.NewRows(contactColumns).
			AddRow("ada", "Ada", "Lovelace", "", "", "", false, created))
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/?q=Ad", nil, acceptJSON)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var list pkgmodel.ContactList
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &list))
	require.NotNil(t, list.Q)
	assert.Equal(t, "Ad", *list.Q)
	require.Len(t, list.Contacts, 1)
	assert.Equal(t, "Ada", list.Contacts[0].First)
	assertExpectations(t, mock)
}

// TestListEmptySearchJSON expects that an empty search is different from no search.
func TestListEmptySearchJSON(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectListSelect(mock)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/?q=", nil, acceptJSON)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"contacts": [], "q": ""}`, recorder.Body.String())
	assertExpectations(t, mock)
}

// TestListHTML renders the index page with the sidebar.
func TestListHTML(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectListSelect(mock, grace, ada, unnamed)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/", nil, acceptHTML)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Type"), "text/html")
	html := recorder.Body.String()
	assert.Contains(t, html, `id="index-page"`)
	assert.Contains(t, html, `href="/contacts/grace"`)
	assert.Contains(t, html, "Grace Hopper <span>★</span>")
	assert.Contains(t, html, "Ada Lovelace")
	assert.Contains(t, html, "<i>No Name</i>")
	assert.NotContains(t, html, "data-searched")
	assertExpectations(t, mock)
}

func TestListEmptyHTML(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectQuery("WHERE LOWER\\(first_name\\) LIKE \\?").
		WithArgs("%zz%", "%zz%").
		WillReturnRows(mock.NewRows(contactColumns))
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/?q=zz", nil, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	html := recorder.Body.String()
	assert.Contains(t, html, "<i>No contacts</i>")
	assert.Contains(t, html, `value="zz" data-searched`)
	assertExpectations(t, mock)
}

// TestCreate executes the root action. It expects an empty contact to be inserted and a
// redirect to its edit form.
func TestCreate(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectExec("INSERT INTO contacts").
		WithArgs(sqlmock.AnyArg(), "", "", "", "", "", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "POST", "/", url.Values{}, "")
	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	location := recorder.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/contacts/"), location)
	assert.True(t, strings.HasSuffix(location, "/edit"), location)
	id := strings.TrimSuffix(strings.TrimPrefix(location, "/contacts/"), "/edit")
	assert.Regexp(t, validID, id)
	assertExpectations(t, mock)
}

// TestGetJSON executes the detail loader for a JSON client.
func TestGetJSON(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectSingleRowSelect(mock, ada)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/contacts/ada", nil, acceptJSON)
	assert.Equal(t, http.StatusOK, recorder.Code)
	var detail pkgmodel.ContactDetail
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &detail))
	assert.Equal(t, "ada", detail.Contact.ID)
	assert.Equal(t, "Ada", detail.Contact.First)
	assert.Equal(t, "@ada", detail.Contact.Twitter)
	assert.Equal(t, created, detail.Contact.CreatedAt)
	assertExpectations(t, mock)
}

// TestGetHTML renders the detail page. The sidebar highlights the contact.
func TestGetHTML(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectSingleRowSelect(mock, ada)
	expectListSelect(mock, grace, ada)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/contacts/ada", nil, acceptHTML)
	assert.Equal(t, http.StatusOK, recorder.Code)
	html := recorder.Body.String()
	assert.Contains(t, html, "<title>Ada Lovelace | Contacts</title>")
	assert.Contains(t, html, `href="/contacts/ada" class="active"`)
	assert.Contains(t, html, `href="https://twitter.com/@ada"`)
	assert.Contains(t, html, "<p>first programmer</p>")
	assert.Contains(t, html, `<button name="favorite" value="true" aria-label="Add to favorites">☆</button>`)
	assert.Contains(t, html, `action="/contacts/ada/destroy"`)
	assertExpectations(t, mock)
}

// TestGetNotFound executes the detail loader for an id that does not exist. It expects 404 with
// the body "Not Found".
func TestGetNotFound(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectQuery("SELECT (.+) FROM contacts WHERE id = \\?").
		WithArgs("9999").
		WillReturnRows(mock.NewRows(contactColumns))
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/contacts/9999", nil, acceptHTML)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "Not Found", recorder.Body.String())
	assertExpectations(t, mock)
}

// TestGetInvalidID expects that malformed ids never reach the database.
func TestGetInvalidID(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	router := initializeContactsService(t, db, nil, nil)

	for _, target := range []string{
		"/contacts/not_an_id",
		"/contacts/" + strings.Repeat("a", 65),
		"/contacts/a%20b/edit",
	} {
		recorder := runTest(router, "GET", target, nil, acceptJSON)
		assert.Equal(t, http.StatusNotFound, recorder.Code, target)
		assert.Equal(t, "Not Found", recorder.Body.String(), target)
	}
	assertExpectations(t, mock)
}

// TestEditLoaderHTML renders the edit form filled with the current values.
func TestEditLoaderHTML(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectSingleRowSelect(mock, ada)
	expectListSelect(mock, ada)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/contacts/ada/edit", nil, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	html := recorder.Body.String()
	assert.Contains(t, html, `<form id="contact-form" method="post" action="/contacts/ada/edit">`)
	assert.Contains(t, html, `value="Ada" name="first"`)
	assert.Contains(t, html, `value="Lovelace" name="last"`)
	assert.Contains(t, html, `<textarea name="notes" rows="6">first programmer</textarea>`)
	assert.Contains(t, html, "data-back")
	assertExpectations(t, mock)
}

// TestFavoriteJSON executes the detail action for a JSON client. It expects the updated contact
// and no redirect.
func TestFavoriteJSON(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectExec("UPDATE contacts SET favorite=\\? WHERE id=\\?").
		WithArgs(true, "ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	favorite := ada
	favorite.Favorite = true
	expectSingleRowSelect(mock, favorite)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "POST", "/contacts/ada", url.Values{"favorite": {"true"}}, acceptJSON)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Header().Get("Location"))
	var detail pkgmodel.ContactDetail
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &detail))
	assert.True(t, detail.Contact.Favorite)
	assertExpectations(t, mock)
}

// TestFavoriteHTML expects browsers without scripting to be sent back to the detail page.
func TestFavoriteHTML(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectExec("UPDATE contacts SET favorite=\\? WHERE id=\\?").
		WithArgs(false, "grace").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSingleRowSelect(mock, grace)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "POST", "/contacts/grace", url.Values{"favorite": {"false"}}, acceptHTML)
	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Equal(t, "/contacts/grace", recorder.Header().Get("Location"))
	assertExpectations(t, mock)
}

// TestFavoriteInvalidForm expects 400 for everything but the literal strings "true" and "false".
func TestFavoriteInvalidForm(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	router := initializeContactsService(t, db, nil, nil)

	for _, form := range []url.Values{
		{},
		{"favorite": {"yes"}},
		{"favorite": {"TRUE"}},
		{"favorite": {"true"}, "first": {"Ada"}},
	} {
		recorder := runTest(router, "POST", "/contacts/ada", form, acceptJSON)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, form.Encode())
	}
	assertExpectations(t, mock)
}

// TestEdit executes the edit action with a partial form. Only the submitted fields are written.
func TestEdit(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectExec("UPDATE contacts SET first_name=\\?, last_name=\\? WHERE id=\\?").
		WithArgs("Ada", "Lovelace", "ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSingleRowSelect(mock, ada)
	router := initializeContactsService(t, db, nil, nil)

	form := url.Values{"first": {"Ada"}, "last": {"Lovelace"}}
	recorder := runTest(router, "POST", "/contacts/ada/edit", form, "")
	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Equal(t, "/contacts/ada", recorder.Header().Get("Location"))
	assertExpectations(t, mock)
}

// TestEditClearsField expects that an empty submitted value overwrites the stored one.
func TestEditClearsField(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectExec("UPDATE contacts SET notes=\\? WHERE id=\\?").
		WithArgs("", "ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSingleRowSelect(mock, ada)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "POST", "/contacts/ada/edit", url.Values{"notes": {""}}, "")
	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assertExpectations(t, mock)
}

// TestEditNoValues expects 400 if the form contains no field at all.
func TestEditNoValues(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "POST", "/contacts/ada/edit", url.Values{}, acceptJSON)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.JSONEq(t, `{"message": "no values to be updated"}`, recorder.Body.String())
	assertExpectations(t, mock)
}

// TestEditUnknownField expects that fields outside the form schema are rejected.
func TestEditUnknownField(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	router := initializeContactsService(t, db, nil, nil)

	form := url.Values{"first": {"Ada"}, "favorite": {"true"}}
	recorder := runTest(router, "POST", "/contacts/ada/edit", form, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "unknown field favorite", recorder.Body.String())
	assertExpectations(t, mock)
}

// TestEditTooLong expects that values exceeding the column width are rejected.
func TestEditTooLong(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	router := initializeContactsService(t, db, nil, nil)

	form := url.Values{"first": {strings.Repeat("x", 256)}}
	recorder := runTest(router, "POST", "/contacts/ada/edit", form, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assertExpectations(t, mock)
}

func TestEditNotFound(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectExec("UPDATE contacts SET first_name=\\? WHERE id=\\?").
		WithArgs("Ada", "9999").
		WillReturnResult(sqlmock.NewResult(0, 0))
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "POST", "/contacts/9999/edit", url.Values{"first": {"Ada"}}, "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "Not Found", recorder.Body.String())
	assertExpectations(t, mock)
}

// TestDestroy executes the destroy action and expects a redirect to the root.
func TestDestroy(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectExec("DELETE FROM contacts WHERE id = \\?").
		WithArgs("ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "POST", "/contacts/ada/destroy", url.Values{}, "")
	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Equal(t, "/", recorder.Header().Get("Location"))
	assertExpectations(t, mock)
}

func TestDestroyNotFound(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectExec("DELETE FROM contacts WHERE id = \\?").
		WithArgs("9999").
		WillReturnResult(sqlmock.NewResult(0, 0))
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "POST", "/contacts/9999/destroy", url.Values{}, "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assertExpectations(t, mock)
}

// TestStoreFailure expects a logged error and a plain 500 if the database fails.
func TestStoreFailure(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WillReturnError(errors.New("connection refused"))
	core, logs := observer.New(zapcore.InfoLevel)
	router := initializeContactsService(t, db, nil, zap.New(core))

	recorder := runTest(router, "GET", "/", nil, acceptJSON)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "Internal Server Error", recorder.Body.String())

	failures := logs.FilterMessage("request failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "db error: connection refused", failures[0].ContextMap()["error"])
	assertExpectations(t, mock)
}

// TestMethodNotAllowed expects that routes without an action do not accept posts.
func TestMethodNotAllowed(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "DELETE", "/contacts/ada", nil, "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assertExpectations(t, mock)
}

func TestThreejs(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectListSelect(mock, ada)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/threejs", nil, acceptHTML)
	assert.Equal(t, http.StatusOK, recorder.Code)
	html := recorder.Body.String()
	assert.Contains(t, html, `id="threejs"`)
	assert.Contains(t, html, "new THREE.BoxGeometry(2, 2, 2)")
	assert.Contains(t, html, "Ada Lovelace")
	assertExpectations(t, mock)
}

func TestGraphQL(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectListSelect(mock)
	books := fakeBooks{books: []pkgmodel.Book{{Title: "City of Glass", Author: "Paul Auster"}}}
	router := initializeContactsService(t, db, books, nil)

	recorder := runTest(router, "GET", "/graphql", nil, acceptHTML)
	assert.Equal(t, http.StatusOK, recorder.Code)
	html := recorder.Body.String()
	assert.Contains(t, html, "<div>City of Glass</div>")
	assert.Contains(t, html, "<div>Paul Auster</div>")
	assertExpectations(t, mock)
}

// TestGraphQLError expects the error message on the page instead of a failed request.
func TestGraphQLError(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectListSelect(mock)
	books := fakeBooks{err: errors.New("connection refused")}
	router := initializeContactsService(t, db, books, nil)

	recorder := runTest(router, "GET", "/graphql", nil, acceptHTML)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "<p>Error : connection refused</p>")

	recorder = runTest(router, "GET", "/graphql", nil, acceptJSON)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.JSONEq(t, `{"message": "connection refused"}`, recorder.Body.String())
	assertExpectations(t, mock)
}

// TestGraphQLReportedError expects 502 for JSON clients if the GraphQL server answered with
// errors.
func TestGraphQLReportedError(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	expectListSelect(mock)
	books := fakeBooks{err: graphql.Errors{{Message: `Cannot query field "books"`}}}
	router := initializeContactsService(t, db, books, nil)

	recorder := runTest(router, "GET", "/graphql", nil, acceptJSON)
	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	assert.JSONEq(t, `{"message": "Cannot query field \"books\""}`, recorder.Body.String())

	recorder = runTest(router, "GET", "/graphql", nil, acceptHTML)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Error : Cannot query field")
	assertExpectations(t, mock)
}

func TestStylesheet(t *testing.T) {
	db, mock := createMockObjects(t)
	expectPreparedStatements(mock)
	router := initializeContactsService(t, db, nil, nil)

	recorder := runTest(router, "GET", "/app.css", nil, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/css; charset=utf-8", recorder.Header().Get("Content-Type"))
	assert.Contains(t, recorder.Body.String(), "#sidebar")
	assertExpectations(t, mock)
}

func TestContactTitle(t *testing.T) {
	assert.Equal(t, "No Name", contactTitle(&pkgmodel.Contact{}))
	assert.Equal(t, "Ada", contactTitle(&pkgmodel.Contact{First: "Ada"}))
	assert.Equal(t, "Lovelace", contactTitle(&pkgmodel.Contact{Last: "Lovelace"}))
	assert.Equal(t, "Ada Lovelace", contactTitle(&ada))
}
