// Package graphql is a small GraphQL-over-HTTP client. It backs the books demo page and caches
// the book list for a while so that page views do not hit the GraphQL server every time.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"gitlab.com/dirk.krummacker/contacts-app/pkg/model"
	"golang.org/x/sync/singleflight"
)

// booksQuery selects all books of the demo server.
const booksQuery = `query GetBooks {
  books {
    title
    author
  }
}`

// sharedQueryTimeout bounds a request that is shared between callers and thus not bound to
// the context of any of them.
const sharedQueryTimeout = 10 * time.Second

// Error is an entry of the errors list of a GraphQL response.
type Error struct {
	Message string `json:"message"`
}

// Errors is returned by Query if the server answered with GraphQL errors.
type Errors []Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "graphql: unknown error"
	}
	if len(e) == 1 {
		return e[0].Message
	}
	return fmt.Sprintf("%s (and %d more errors)", e[0].Message, len(e)-1)
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// Client queries one GraphQL endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	ttl      time.Duration
	now      func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	books   []model.Book
	fetched time.Time
}

// New returns a client for the endpoint. A ttl of zero disables the book cache. If httpClient is
// nil, a client with a ten second timeout is used.
func New(endpoint string, ttl time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Query runs a GraphQL query and decodes the data member of the response into out.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("graphql: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("graphql: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql: %w", err)
	}
	defer resp.Body.Close()

	var result response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("graphql: unexpected status %s", resp.Status)
		}
		return fmt.Errorf("graphql: invalid response: %w", err)
	}
	if len(result.Errors) > 0 {
		return result.Errors
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql: unexpected status %s", resp.Status)
	}
	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("graphql: invalid data: %w", err)
	}
	return nil
}

// Books returns the books of the demo server. Concurrent calls on an empty or expired cache
// share one request. That request outlives callers that give up early, so the others still
// get its result.
func (c *Client) Books(ctx context.Context) ([]model.Book, error) {
	if books, ok := c.cached(); ok {
		return books, nil
	}
	ch := c.group.DoChan("books", func() (any, error) {
		if books, ok := c.cached(); ok {
			return books, nil
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedQueryTimeout)
		defer cancel()
		var data struct {
			Books []model.Book `json:"books"`
		}
		if err := c.Query(ctx, booksQuery, nil, &data); err != nil {
			return nil, err
		}
		if data.Books == nil {
			data.Books = []model.Book{}
		}
		c.mu.Lock()
		c.books, c.fetched = data.Books, c.now()
		c.mu.Unlock()
		return data.Books, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("graphql: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.Book), nil
	}
}

func (c *Client) cached() ([]model.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.books == nil || c.ttl <= 0 || c.now().Sub(c.fetched) >= c.ttl {
		return nil, false
	}
	return c.books, true
}

// IsGraphQLError reports whether err carries errors reported by the GraphQL server, as opposed
// to transport failures.
func IsGraphQLError(err error) bool {
	var e Errors
	return errors.As(err, &e)
}
