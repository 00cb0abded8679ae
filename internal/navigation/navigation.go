// Package navigation drives the routes of the contacts app the way a browser would: it keeps a
// history, runs loaders for navigations and actions for form submissions, and exposes the
// navigation state that views use for pending and optimistic rendering.
//
// Only the most recent request is ever committed. Every navigation or submission takes the next
// sequence number and its own cancellable context; starting a new one cancels the one in
// flight, and a result that arrives for an outdated sequence number is discarded with
// ErrSuperseded.
//
// Fetcher actions change data behind the current location. The navigator then reloads that
// location without leaving the idle state, or, if a request is in flight, makes that request
// load again if its loader may have read the data before the change.
package navigation

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"sync"
)

// State is the state of a navigation or a fetcher.
type State int

const (
	Idle State = iota
	Loading
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Submitting:
		return "submitting"
	}
	return "unknown"
}

var (
	// ErrSuperseded is returned for a request whose result was discarded because a newer one
	// was started.
	ErrSuperseded = errors.New("navigation superseded")

	// ErrNoHistory is returned by Go if there is no entry in that direction.
	ErrNoHistory = errors.New("no history entry")
)

// Submission is a form submitted to a route action.
type Submission struct {
	Action string
	Form   url.Values
}

// ActionResult is what a route action answered. Redirect is empty if the action did not
// redirect.
type ActionResult struct {
	Redirect string
	Data     any
}

// Router runs the loaders and actions of the routes.
type Router interface {
	Load(ctx context.Context, location string) (any, error)
	Submit(ctx context.Context, submission Submission) (ActionResult, error)
}

// Navigation is a snapshot of the navigation state. Location is the target of the pending
// navigation and FormData the pending submission payload; both are nil when idle.
type Navigation struct {
	State    State
	Location *url.URL
	FormData url.Values
}

// Searching reports whether the pending navigation carries a search query.
func (n Navigation) Searching() bool {
	return n.Location != nil && n.Location.Query().Has("q")
}

// DetailLoading reports whether the detail outlet shall be rendered as stale. Searches only
// mark the search field.
func (n Navigation) DetailLoading() bool {
	return n.State == Loading && !n.Searching()
}

// Match is a committed location together with the data its loader returned.
type Match struct {
	Location *url.URL
	Data     any
}

// Options modify a navigation.
type Options struct {
	// Replace overwrites the current history entry instead of pushing a new one.
	Replace bool
}

// Navigator owns the navigation state. It is safe for concurrent use.
type Navigator struct {
	router Router

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	nav    Navigation
	// revalidating is set while the request in flight is a revalidation.
	revalidating bool
	// stale is set when data changed after the loader of the request in flight started.
	stale     bool
	current   Match
	history   History
	listeners []func(Navigation)
}

// New returns a navigator that has not visited any location yet.
func New(router Router) *Navigator {
	return &Navigator{router: router}
}

// Subscribe registers a function that is called with every new navigation state.
func (n *Navigator) Subscribe(fn func(Navigation)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

// Navigation returns the current navigation state.
func (n *Navigator) Navigation() Navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nav
}

// Current returns the committed location and its data.
func (n *Navigator) Current() Match {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// History returns a copy of the history entries and the cursor position.
func (n *Navigator) History() ([]string, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.history.Entries()
}

// Navigate loads the target location and commits it to the history.
func (n *Navigator) Navigate(ctx context.Context, to string, opts Options) error {
	target, err := n.resolve(to)
	if err != nil {
		return err
	}
	seq, reqCtx := n.begin(ctx, Navigation{State: Loading, Location: target})
	return n.load(ctx, reqCtx, seq, target, func() {
		if opts.Replace {
			n.history.Replace(target.String())
		} else {
			n.history.Push(target.String())
		}
	})
}

// Search navigates to the contact list filtered by q. Only the first search of a session adds
// a history entry, later ones replace it. Which one is the first is decided when the result is
// committed, so searches typed in quick succession add one entry at most.
func (n *Navigator) Search(ctx context.Context, q string) error {
	target := &url.URL{Path: "/", RawQuery: url.Values{"q": {q}}.Encode()}
	seq, reqCtx := n.begin(ctx, Navigation{State: Loading, Location: target})
	return n.load(ctx, reqCtx, seq, target, func() {
		if cur := n.current.Location; cur != nil && cur.Query().Has("q") {
			n.history.Replace(target.String())
		} else {
			n.history.Push(target.String())
		}
	})
}

// Go moves through the history by delta steps, e.g. -1 for the back button.
func (n *Navigator) Go(ctx context.Context, delta int) error {
	n.mu.Lock()
	to, ok := n.history.Peek(delta)
	n.mu.Unlock()
	if !ok {
		return ErrNoHistory
	}
	target, err := url.Parse(to)
	if err != nil {
		return err
	}
	seq, reqCtx := n.begin(ctx, Navigation{State: Loading, Location: target})
	return n.load(ctx, reqCtx, seq, target, func() {
		n.history.Go(delta)
	})
}

// Back goes one entry back in the history.
func (n *Navigator) Back(ctx context.Context) error {
	return n.Go(ctx, -1)
}

// Forward goes one entry forward in the history.
func (n *Navigator) Forward(ctx context.Context) error {
	return n.Go(ctx, 1)
}

// Submit sends a form to a route action. While the action runs the state is Submitting and the
// form is available as pending payload. Afterwards the redirect target, or the current location
// if the action did not redirect, is loaded again.
func (n *Navigator) Submit(ctx context.Context, submission Submission, opts Options) error {
	action, err := n.resolve(submission.Action)
	if err != nil {
		return err
	}
	submission.Action = action.String()
	seq, reqCtx := n.begin(ctx, Navigation{
		State:    Submitting,
		Location: action,
		FormData: cloneValues(submission.Form),
	})
	result, err := n.router.Submit(reqCtx, submission)
	if err != nil {
		if !n.finish(seq) {
			return ErrSuperseded
		}
		return errors.Join(err, n.settle(ctx))
	}

	target := n.Current().Location
	record := func() {}
	if result.Redirect != "" {
		if target, err = n.resolve(result.Redirect); err != nil {
			if n.finish(seq) {
				err = errors.Join(err, n.settle(ctx))
			}
			return err
		}
		record = func() {
			if opts.Replace {
				n.history.Replace(target.String())
			} else {
				n.history.Push(target.String())
			}
		}
	}
	if target == nil {
		if !n.finish(seq) {
			return ErrSuperseded
		}
		return n.settle(ctx)
	}
	if !n.transition(seq, Navigation{State: Loading, Location: target}) {
		return ErrSuperseded
	}
	return n.load(ctx, reqCtx, seq, target, record)
}

// Revalidate reloads the current location after its data was changed, without touching the
// history or the navigation state. If a request is in flight, that request loads again instead
// once its loader returns.
func (n *Navigator) Revalidate(ctx context.Context) error {
	n.mu.Lock()
	if n.cancel != nil {
		n.stale = true
		n.mu.Unlock()
		return nil
	}
	target := n.current.Location
	if target == nil {
		n.mu.Unlock()
		return nil
	}
	seq, reqCtx := n.start(ctx)
	n.revalidating = true
	n.mu.Unlock()
	return n.load(ctx, reqCtx, seq, target, func() {})
}

// settle runs a revalidation that was due for a request which ended without loading.
func (n *Navigator) settle(ctx context.Context) error {
	n.mu.Lock()
	stale := n.stale
	n.stale = false
	n.mu.Unlock()
	if !stale {
		return nil
	}
	if err := n.Revalidate(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}
	return nil
}

// load runs the loader on the request context reqCtx and commits its data unless the request
// was superseded. If the data changed while the loader ran, the loader runs again. A failed
// loader hands a due revalidation to ctx, the context of the caller.
func (n *Navigator) load(ctx, reqCtx context.Context, seq uint64, target *url.URL, record func()) error {
	for {
		n.mu.Lock()
		if seq != n.seq {
			n.mu.Unlock()
			return ErrSuperseded
		}
		n.stale = false
		n.mu.Unlock()

		data, err := n.router.Load(reqCtx, target.String())

		n.mu.Lock()
		if seq != n.seq {
			n.mu.Unlock()
			return ErrSuperseded
		}
		if err == nil && n.stale {
			n.mu.Unlock()
			continue
		}
		if err != nil {
			n.end()
			return errors.Join(err, n.settle(ctx))
		}
		record()
		n.current = Match{Location: target, Data: data}
		n.end()
		return nil
	}
}

// begin cancels the request in flight and starts a new one.
func (n *Navigator) begin(ctx context.Context, nav Navigation) (uint64, context.Context) {
	n.mu.Lock()
	seq, ctx := n.start(ctx)
	n.nav = nav
	listeners := n.listeners
	n.mu.Unlock()
	notify(listeners, nav)
	return seq, ctx
}

// start cancels the request in flight and takes the next sequence number. A revalidation that
// is cancelled leaves its reload due to the new request. The caller must hold n.mu.
func (n *Navigator) start(ctx context.Context) (uint64, context.Context) {
	if n.cancel != nil {
		n.cancel()
	}
	if n.revalidating {
		n.stale = true
		n.revalidating = false
	}
	n.seq++
	ctx, n.cancel = context.WithCancel(ctx)
	return n.seq, ctx
}

// transition changes the state of the request seq if it is still the latest one.
func (n *Navigator) transition(seq uint64, nav Navigation) bool {
	n.mu.Lock()
	if seq != n.seq {
		n.mu.Unlock()
		return false
	}
	n.nav = nav
	listeners := n.listeners
	n.mu.Unlock()
	notify(listeners, nav)
	return true
}

// finish ends the request seq without committing anything if it is still the latest one.
func (n *Navigator) finish(seq uint64) bool {
	n.mu.Lock()
	if seq != n.seq {
		n.mu.Unlock()
		return false
	}
	n.end()
	return true
}

// end returns to idle and unlocks n.mu, which the caller must hold. Listeners are only told
// about requests that left the idle state.
func (n *Navigator) end() {
	n.cancel()
	n.cancel = nil
	publish := !n.revalidating
	n.revalidating = false
	n.nav = Navigation{State: Idle}
	listeners := n.listeners
	n.mu.Unlock()
	if publish {
		notify(listeners, Navigation{State: Idle})
	}
}

func notify(listeners []func(Navigation), nav Navigation) {
	for _, fn := range listeners {
		fn(nav)
	}
}

// resolve interprets to relative to the current route: "edit" on /contacts/1 becomes
// /contacts/1/edit, an empty string or "." is the current route itself.
func (n *Navigator) resolve(to string) (*url.URL, error) {
	ref, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(ref.Path, "/") {
		return ref, nil
	}
	base := "/"
	if cur := n.Current().Location; cur != nil {
		base = cur.Path
	}
	ref.Path = path.Join(base, ref.Path)
	return ref, nil
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return url.Values{}
	}
	clone := make(url.Values, len(v))
	for key, values := range v {
		clone[key] = append([]string(nil), values...)
	}
	return clone
}
