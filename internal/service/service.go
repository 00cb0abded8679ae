// Package service implements the HTTP routes of the contacts app. Every route has a loader
// (GET) and most have an action (POST). Loaders answer with JSON if the client asks for it and
// with a server-rendered page otherwise; actions answer with a redirect.
package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"gitlab.com/dirk.krummacker/contacts-app/internal/graphql"
	"gitlab.com/dirk.krummacker/contacts-app/internal/logging"
	"gitlab.com/dirk.krummacker/contacts-app/internal/model"
	"gitlab.com/dirk.krummacker/contacts-app/internal/store"
	pkgmodel "gitlab.com/dirk.krummacker/contacts-app/pkg/model"
	"go.uber.org/zap"
)

// validID matches the contact ids the store hands out: uuids and the slugs of the seed data.
var validID = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// ContactStore is the persistence the routes work on. It is implemented by store.Store.
type ContactStore interface {
	List(ctx context.Context, query string) ([]pkgmodel.Contact, error)
	Get(ctx context.Context, id string) (*pkgmodel.Contact, error)
	Create(ctx context.Context) (*pkgmodel.Contact, error)
	Update(ctx context.Context, id string, update model.Update) (*pkgmodel.Contact, error)
	Delete(ctx context.Context, id string) error
}

// BookSource provides the data of the GraphQL demo page. It is implemented by graphql.Client.
type BookSource interface {
	Books(ctx context.Context) ([]pkgmodel.Book, error)
}

// Service holds the dependencies of the route handlers.
type Service struct {
	store  ContactStore
	books  BookSource
	logger *zap.Logger
	views  *views
}

// New returns a service on top of the given store and book source.
func New(contacts ContactStore, books BookSource, logger *zap.Logger) (*Service, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	return &Service{store: contacts, books: books, logger: logger, views: v}, nil
}

// SetupHttpRouter initializes the router and registers all routes. With logRequests set to
// false no request log is written; errors and panics are logged regardless.
func (s *Service) SetupHttpRouter(logRequests bool) *gin.Engine {
	router := gin.New()
	if logRequests {
		router.Use(logging.Requests(s.logger))
	} else {
		s.logger.Info("Turning off HTTP request logging.")
	}
	router.Use(logging.Recovery(s.logger), logging.Errors(s.logger))

	router.GET("/", s.listContacts)
	router.POST("/", s.createContact)
	router.GET("/contacts/:id", s.findContactByID)
	router.POST("/contacts/:id", s.favoriteContactByID)
	router.GET("/contacts/:id/edit", s.editContactByID)
	router.POST("/contacts/:id/edit", s.updateContactByID)
	router.POST("/contacts/:id/destroy", s.deleteContactByID)
	router.GET("/threejs", s.threejs)
	router.GET("/graphql", s.graphqlBooks)
	router.GET("/app.css", s.views.serveStylesheet)
	return router
}

// listContacts is the root loader. It responds with all contacts or, if the URL parameter 'q' is
// present, with the contacts whose first or last name contains q.
//
// Example calls:
//
//	> curl --header "Accept: application/json" "http://localhost:8080/"
//	> curl --header "Accept: application/json" "http://localhost:8080/?q=ry"
func (s *Service) listContacts(c *gin.Context) {
	p, ok := s.loadRoot(c)
	if !ok {
		return
	}
	if wantsJSON(c) {
		c.IndentedJSON(http.StatusOK, p.Root)
		return
	}
	s.views.render(c, http.StatusOK, pageIndex, p)
}

// loadRoot runs the root loader, whose data every page shows in the sidebar.
func (s *Service) loadRoot(c *gin.Context) (page, bool) {
	var p page
	query, searched := c.GetQuery("q")
	contacts, err := s.store.List(c.Request.Context(), query)
	if err != nil {
		s.abortWithStoreError(c, err)
		return p, false
	}
	p.Root = pkgmodel.ContactList{Contacts: contacts}
	if searched {
		p.Root.Q = &query
	}
	p.Query, p.Searched = query, searched
	return p, true
}

// createContact is the root action. It inserts an empty contact and redirects to its edit form.
//
// Example call:
//
//	> curl http://localhost:8080/ --request "POST" --include
func (s *Service) createContact(c *gin.Context) {
	contact, err := s.store.Create(c.Request.Context())
	if err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/contacts/"+contact.ID+"/edit")
}

// findContactByID is the detail loader.
//
// Example call:
//
//	> curl --header "Accept: application/json" http://localhost:8080/contacts/ryan-florence
func (s *Service) findContactByID(c *gin.Context) {
	s.renderContact(c, pageContact)
}

// editContactByID is the edit form loader. It loads the same data as the detail loader.
func (s *Service) editContactByID(c *gin.Context) {
	s.renderContact(c, pageEdit)
}

func (s *Service) renderContact(c *gin.Context, name string) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	contact, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	if wantsJSON(c) {
		c.IndentedJSON(http.StatusOK, pkgmodel.ContactDetail{Contact: *contact})
		return
	}
	p, ok := s.loadRoot(c)
	if !ok {
		return
	}
	p.Title = contactTitle(contact)
	p.ActiveID = contact.ID
	p.Contact = contact
	s.views.render(c, http.StatusOK, name, p)
}

func contactTitle(contact *pkgmodel.Contact) string {
	if !contact.HasName() {
		return "No Name"
	}
	if contact.First == "" || contact.Last == "" {
		return contact.First + contact.Last
	}
	return contact.First + " " + contact.Last
}

// favoriteContactByID is the detail action. It sets the favorite flag to the submitted value,
// which must be "true" or "false". The action does not navigate: JSON clients get the updated
// contact, browsers without scripting are sent back to the detail page.
//
// Example call:
//
//	> curl http://localhost:8080/contacts/ryan-florence --request "POST" --header "Accept: application/json" --data "favorite=true"
func (s *Service) favoriteContactByID(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	var form model.FavoriteForm
	if !bindForm(c, &form, model.FavoriteFormFields) {
		return
	}
	contact, err := s.store.Update(c.Request.Context(), id, form.Update())
	if err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	if wantsJSON(c) {
		c.IndentedJSON(http.StatusOK, pkgmodel.ContactDetail{Contact: *contact})
		return
	}
	c.Redirect(http.StatusSeeOther, "/contacts/"+id)
}

// updateContactByID is the edit action. It overwrites the submitted fields (and only those) and
// redirects to the detail page.
//
// Example call:
//
//	> curl http://localhost:8080/contacts/ryan-florence/edit --request "POST" --include --data "first=Ryan&last=Florence"
func (s *Service) updateContactByID(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	var form model.EditForm
	if !bindForm(c, &form, model.EditFormFields) {
		return
	}
	if _, err := s.store.Update(c.Request.Context(), id, form.Update()); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/contacts/"+id)
}

// deleteContactByID is the destroy action. It deletes the contact and redirects to the root.
//
// Example call:
//
//	> curl http://localhost:8080/contacts/ryan-florence/destroy --request "POST" --include
func (s *Service) deleteContactByID(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// threejs renders the 3D demo page. JSON clients get the root loader data.
func (s *Service) threejs(c *gin.Context) {
	p, ok := s.loadRoot(c)
	if !ok {
		return
	}
	if wantsJSON(c) {
		c.IndentedJSON(http.StatusOK, p.Root)
		return
	}
	p.Title = "Three.js"
	s.views.render(c, http.StatusOK, pageThreejs, p)
}

// graphqlBooks renders the books of the GraphQL demo server. A failing GraphQL server is shown
// on the page instead of failing the request. JSON clients get 502 if the server reported
// errors and 503 if it could not be queried at all.
func (s *Service) graphqlBooks(c *gin.Context) {
	books, err := s.books.Books(c.Request.Context())
	if err != nil {
		s.logger.Warn("graphql query failed", zap.Error(err), zap.Bool("reported", graphql.IsGraphQLError(err)))
	}
	if wantsJSON(c) {
		if err != nil {
			status := http.StatusServiceUnavailable
			if graphql.IsGraphQLError(err) {
				status = http.StatusBadGateway
			}
			c.AbortWithStatusJSON(status, pkgmodel.Message{Message: err.Error()})
			return
		}
		c.IndentedJSON(http.StatusOK, pkgmodel.BookList{Books: books})
		return
	}
	p, ok := s.loadRoot(c)
	if !ok {
		return
	}
	p.Title = "GraphQL"
	p.Books = books
	if err != nil {
		p.Error = err.Error()
	}
	s.views.render(c, http.StatusOK, pageGraphQL, p)
}

// contactID returns the id route parameter. Ids the store can never have produced are answered
// with 404 right away. A missing parameter means the route is registered wrongly and panics.
func contactID(c *gin.Context) (string, bool) {
	id, ok := c.Params.Get("id")
	if !ok {
		panic("missing id route parameter")
	}
	if !validID.MatchString(id) {
		notFound(c)
		return "", false
	}
	return id, true
}

// bindForm binds the posted form into the schema. Fields the schema does not know are rejected,
// as are values that fail its validation.
func bindForm(c *gin.Context, form any, fields []string) bool {
	if err := c.Request.ParseForm(); err != nil {
		badRequest(c, "invalid form")
		return false
	}
	for key := range c.Request.PostForm {
		if !slices.Contains(fields, key) {
			badRequest(c, "unknown field "+key)
			return false
		}
	}
	if err := c.ShouldBindWith(form, binding.FormPost); err != nil {
		badRequest(c, "invalid form")
		return false
	}
	return true
}

// abortWithStoreError maps the store errors to responses. Unexpected errors are attached to the
// context and answered by the error middleware.
func (s *Service) abortWithStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		notFound(c)
	case errors.Is(err, store.ErrNoChanges):
		badRequest(c, err.Error())
	default:
		_ = c.Error(err)
		c.Abort()
	}
}

func notFound(c *gin.Context) {
	c.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
	c.Abort()
}

func badRequest(c *gin.Context, message string) {
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.Message{Message: message})
		return
	}
	c.String(http.StatusBadRequest, message)
	c.Abort()
}
