package service

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"gitlab.com/dirk.krummacker/contacts-app/pkg/model"
)

//go:embed templates/*.tmpl static/app.css
var assets embed.FS

// Names of the page templates. Each one defines the "outlet" block of the layout.
const (
	pageIndex   = "index"
	pageContact = "contact"
	pageEdit    = "edit"
	pageThreejs = "threejs"
	pageGraphQL = "graphql"
)

// page is the data every page template is executed with. Root feeds the sidebar, the other
// fields the outlet.
type page struct {
	Title    string
	Root     model.ContactList
	Query    string
	Searched bool
	ActiveID string
	Contact  *model.Contact
	Books    []model.Book
	Error    string
}

// views holds one template set per page, each a clone of the layout.
type views struct {
	pages      map[string]*template.Template
	stylesheet []byte
}

func loadViews() (*views, error) {
	layout, err := template.ParseFS(assets, "templates/layout.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	v := &views{pages: map[string]*template.Template{}}
	for _, name := range []string{pageIndex, pageContact, pageEdit, pageThreejs, pageGraphQL} {
		clone, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if v.pages[name], err = clone.ParseFS(assets, "templates/"+name+".tmpl"); err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
	}
	if v.stylesheet, err = assets.ReadFile("static/app.css"); err != nil {
		return nil, err
	}
	return v, nil
}

// render executes the layout of the named page.
func (v *views) render(c *gin.Context, status int, name string, data page) {
	c.Render(status, render.HTML{Template: v.pages[name], Name: "layout", Data: data})
}

// wantsJSON reports whether the client prefers JSON over HTML. Browsers and clients without an
// Accept header get HTML.
func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// serveStylesheet serves the embedded app.css.
func (v *views) serveStylesheet(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "text/css; charset=utf-8", v.stylesheet)
}
