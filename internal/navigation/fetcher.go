package navigation

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

// FetcherState is a snapshot of a fetcher. FormData is set from the moment a submission starts
// until the data it changed has been revalidated.
type FetcherState struct {
	State    State
	FormData url.Values
	Data     any
}

// Fetcher submits forms without navigating: the location and the history stay untouched. After
// the action finished, the navigator reloads the current location so that views see the
// confirmed data.
type Fetcher struct {
	router    Router
	navigator *Navigator

	mu        sync.Mutex
	seq       uint64
	cancel    context.CancelFunc
	state     FetcherState
	listeners []func(FetcherState)
}

// Fetcher returns a new fetcher bound to the navigator.
func (n *Navigator) Fetcher() *Fetcher {
	return &Fetcher{router: n.router, navigator: n}
}

// Subscribe registers a function that is called with every new fetcher state.
func (f *Fetcher) Subscribe(fn func(FetcherState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// State returns the current fetcher state.
func (f *Fetcher) State() FetcherState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit runs the action and returns its data. A newer submission on the same fetcher
// supersedes this one.
func (f *Fetcher) Submit(ctx context.Context, submission Submission) (any, error) {
	action, err := f.navigator.resolve(submission.Action)
	if err != nil {
		return nil, err
	}
	submission.Action = action.String()

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.seq++
	seq := f.seq
	ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()
	f.set(seq, FetcherState{State: Submitting, FormData: cloneValues(submission.Form), Data: f.State().Data})

	result, err := f.router.Submit(ctx, submission)
	if err != nil {
		if !f.done(seq, nil, false) {
			return nil, ErrSuperseded
		}
		return nil, err
	}
	if !f.set(seq, FetcherState{State: Loading, FormData: cloneValues(submission.Form), Data: result.Data}) {
		return nil, ErrSuperseded
	}
	if err := f.navigator.Revalidate(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		f.done(seq, result.Data, true)
		return result.Data, err
	}
	if !f.done(seq, result.Data, true) {
		return nil, ErrSuperseded
	}
	return result.Data, nil
}

// set changes the state of submission seq if it is still the latest one.
func (f *Fetcher) set(seq uint64, state FetcherState) bool {
	f.mu.Lock()
	if seq != f.seq {
		f.mu.Unlock()
		return false
	}
	f.state = state
	listeners := f.listeners
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
	return true
}

// done returns the fetcher to idle. The data is kept unless replace is set.
func (f *Fetcher) done(seq uint64, data any, replace bool) bool {
	f.mu.Lock()
	if seq != f.seq {
		f.mu.Unlock()
		return false
	}
	f.cancel()
	f.cancel = nil
	state := FetcherState{State: Idle, Data: f.state.Data}
	if replace {
		state.Data = data
	}
	f.state = state
	listeners := f.listeners
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
	return true
}

// DisplayFavorite derives the favorite flag a view shows: while a favorite submission is
// pending, the submitted value wins over the last confirmed one.
func DisplayFavorite(confirmed bool, pending url.Values) bool {
	if pending != nil && pending.Has("favorite") {
		return pending.Get("favorite") == "true"
	}
	return confirmed
}
