// Package client talks to the contacts app over HTTP the way a script-enabled browser does: it
// asks for JSON, submits url-encoded forms and reports redirects instead of following them. It
// implements navigation.Router, so a navigation.Navigator can drive the app headlessly.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"gitlab.com/dirk.krummacker/contacts-app/internal/navigation"
	"gitlab.com/dirk.krummacker/contacts-app/pkg/model"
)

// ErrNotFound is returned if the app answered 404.
var ErrNotFound = errors.New("contact not found")

// StatusError is returned for all other unexpected status codes.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Client is a client for one contacts app instance.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the app at baseURL. If httpClient is nil, a client with a ten second
// timeout is used. The client never follows redirects.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	var hc http.Client
	if httpClient != nil {
		hc = *httpClient
	} else {
		hc.Timeout = 10 * time.Second
	}
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Client{base: base, http: &hc}, nil
}

// List returns all contacts.
func (c *Client) List(ctx context.Context) (model.ContactList, error) {
	var list model.ContactList
	err := c.get(ctx, "/", &list)
	return list, err
}

// Search returns the contacts whose first or last name contains q.
func (c *Client) Search(ctx context.Context, q string) (model.ContactList, error) {
	var list model.ContactList
	err := c.get(ctx, searchLocation(q), &list)
	return list, err
}

// Get returns the contact with the given id.
func (c *Client) Get(ctx context.Context, id string) (*model.Contact, error) {
	var detail model.ContactDetail
	if err := c.get(ctx, contactLocation(id), &detail); err != nil {
		return nil, err
	}
	return &detail.Contact, nil
}

// Create creates an empty contact and returns its id.
func (c *Client) Create(ctx context.Context) (string, error) {
	result, err := c.post(ctx, "/", url.Values{})
	if err != nil {
		return "", err
	}
	id, ok := strings.CutPrefix(result.Redirect, "/contacts/")
	if !ok {
		return "", fmt.Errorf("unexpected redirect to %q", result.Redirect)
	}
	return strings.TrimSuffix(id, "/edit"), nil
}

// Update overwrites the given fields of a contact. Valid field names are first, last, twitter,
// avatar and notes.
func (c *Client) Update(ctx context.Context, id string, fields url.Values) error {
	_, err := c.post(ctx, contactLocation(id)+"/edit", fields)
	return err
}

// SetFavorite sets the favorite flag of a contact and returns the updated contact.
func (c *Client) SetFavorite(ctx context.Context, id string, favorite bool) (*model.Contact, error) {
	result, err := c.post(ctx, contactLocation(id), FavoriteForm(favorite))
	if err != nil {
		return nil, err
	}
	detail, ok := result.Data.(model.ContactDetail)
	if !ok {
		return nil, errors.New("missing contact in response")
	}
	return &detail.Contact, nil
}

// Delete deletes a contact.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.post(ctx, contactLocation(id)+"/destroy", url.Values{})
	return err
}

// Books returns the books shown on the GraphQL demo page.
func (c *Client) Books(ctx context.Context) ([]model.Book, error) {
	var list model.BookList
	err := c.get(ctx, "/graphql", &list)
	return list.Books, err
}

// Load runs the loader of a location and returns its data: a model.ContactList for the root
// and the demo pages, a model.ContactDetail for contact pages and a model.BookList for the
// GraphQL page.
func (c *Client) Load(ctx context.Context, location string) (any, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(ref.Path, "/contacts/"):
		var detail model.ContactDetail
		err = c.get(ctx, location, &detail)
		return detail, err
	case ref.Path == "/graphql":
		var list model.BookList
		err = c.get(ctx, location, &list)
		return list, err
	default:
		var list model.ContactList
		err = c.get(ctx, location, &list)
		return list, err
	}
}

// Submit posts a form to a route action.
func (c *Client) Submit(ctx context.Context, submission navigation.Submission) (navigation.ActionResult, error) {
	return c.post(ctx, submission.Action, submission.Form)
}

// FavoriteForm returns the form of the favorite toggle.
func FavoriteForm(favorite bool) url.Values {
	return url.Values{"favorite": {strconv.FormatBool(favorite)}}
}

func searchLocation(q string) string {
	return "/?" + url.Values{"q": {q}}.Encode()
}

func contactLocation(id string) string {
	return "/contacts/" + url.PathEscape(id)
}

func (c *Client) resolve(location string) (*url.URL, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	target := *c.base
	target.Path = path.Join("/", c.base.Path, ref.Path)
	target.RawPath = ""
	target.RawQuery = ref.RawQuery
	return &target, nil
}

func (c *Client) get(ctx context.Context, location string, out any) error {
	target, err := c.resolve(location)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return statusError(res)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("could not unmarshal JSON: %w", err)
	}
	return nil
}

// post submits a form. Redirects end up in the result; a JSON body, as the favorite action
// sends one, is decoded into a model.ContactDetail.
func (c *Client) post(ctx context.Context, location string, form url.Values) (navigation.ActionResult, error) {
	var result navigation.ActionResult
	target, err := c.resolve(location)
	if err != nil {
		return result, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return result, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := c.http.Do(req)
	if err != nil {
		return result, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusSeeOther, http.StatusFound, http.StatusMovedPermanently:
		location, err := res.Location()
		if err != nil {
			return result, fmt.Errorf("redirect without location: %w", err)
		}
		result.Redirect = location.RequestURI()
		return result, nil
	case http.StatusOK:
		var detail model.ContactDetail
		if err := json.NewDecoder(res.Body).Decode(&detail); err != nil {
			return result, fmt.Errorf("could not unmarshal JSON: %w", err)
		}
		result.Data = detail
		return result, nil
	default:
		return result, statusError(res)
	}
}

func statusError(res *http.Response) error {
	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var message model.Message
	if json.Unmarshal(body, &message) == nil && message.Message != "" {
		return &StatusError{StatusCode: res.StatusCode, Message: message.Message}
	}
	return &StatusError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(body))}
}
