// Package controller is the façade the UI drives: it owns the filter state of
// one browsing session, keeps the address bar in step with it and keeps facet
// counts fresh.
package controller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"catalogfacets/internal/facets"
	"catalogfacets/internal/query"
	"catalogfacets/internal/urlcodec"
)

// Counter recomputes facet counts for a state.
type Counter interface {
	Count(ctx context.Context, state query.State) *facets.Result
}

// Snapshot is the derived, read-only view of a controller.
type Snapshot struct {
	State            query.State `json:"state"`
	URL              string      `json:"url"`
	Generation       uint64      `json:"generation"`
	CountsGeneration uint64      `json:"counts_generation"`
	View             facets.View `json:"view"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithViewConfig sets display preferences.
func WithViewConfig(cfg facets.ViewConfig) Option {
	return func(c *Controller) { c.viewConfig = cfg }
}

// WithCountTimeout bounds each recount.
func WithCountTimeout(d time.Duration) Option {
	return func(c *Controller) { c.countTimeout = d }
}

// Controller serialises mutations behind a mutex. Every successful mutation
// bumps the generation and starts an asynchronous recount tagged with it; a
// recount result is applied only while its generation is still current.
type Controller struct {
	mu         sync.Mutex
	state      query.State
	url        string
	generation uint64
	result     *facets.Result
	resultGen  uint64
	settled    chan struct{}

	syncer       *urlcodec.Syncer
	location     urlcodec.Location
	counter      Counter
	catalog      facets.Catalog
	logger       *zap.Logger
	viewConfig   facets.ViewConfig
	countTimeout time.Duration

	nextID       int
	subscribers  map[int]func(query.State)
	countWatches map[int]func(uint64, *facets.Result)
}

// New creates a controller whose state is decoded from location's current
// URL and starts the first recount.
func New(location urlcodec.Location, counter Counter, catalog facets.Catalog, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		location:     location,
		syncer:       urlcodec.NewSyncer(location, logger),
		counter:      counter,
		catalog:      catalog,
		logger:       logger,
		countTimeout: 10 * time.Second,
		settled:      make(chan struct{}),
		subscribers:  map[int]func(query.State){},
		countWatches: map[int]func(uint64, *facets.Result){},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	c.state = c.syncer.Read()
	c.url = location.Current()
	c.recountLocked()
	c.mu.Unlock()
	return c
}

// Subscribe registers fn to be called synchronously after every successful
// mutation with the new state. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(query.State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// OnCounts registers fn to be called whenever a fresh count result is applied.
func (c *Controller) OnCounts(fn func(generation uint64, result *facets.Result)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.countWatches[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.countWatches, id)
		c.mu.Unlock()
	}
}

// Toggle flips value in a set-valued facet. Facets that are not set-valued
// are left as they are.
func (c *Controller) Toggle(f query.Facet, value string) error {
	return c.mutate(func(s *query.State) error { return s.Toggle(f, value) })
}

// ToggleKey is Toggle addressed by the facet key a UI callback carries.
func (c *Controller) ToggleKey(key, value string) error {
	return c.mutate(func(s *query.State) error { return s.ToggleKey(key, value) })
}

// SetRange sets the price range; a nil bound clears it.
func (c *Controller) SetRange(minPrice, maxPrice *float64) error {
	return c.mutate(func(s *query.State) error { return s.SetRange(minPrice, maxPrice) })
}

// SetAttribute replaces the filter for one attribute taxonomy.
func (c *Controller) SetAttribute(attribute string, slugs []string, op query.Operator) error {
	return c.mutate(func(s *query.State) error { return s.SetAttribute(attribute, slugs, op) })
}

// SetSearch replaces the search text.
func (c *Controller) SetSearch(text string) error {
	return c.mutate(func(s *query.State) error {
		s.SetSearch(text)
		return nil
	})
}

// SetSort replaces the sort order.
func (c *Controller) SetSort(order string) error {
	return c.mutate(func(s *query.State) error { return s.SetSort(order) })
}

// ClearAll drops every filter but keeps the sort order.
func (c *Controller) ClearAll() error {
	return c.mutate(func(s *query.State) error {
		s.ClearAll()
		return nil
	})
}

// Navigate rehydrates the state from the location after back/forward
// navigation moved it. The location is not rewritten.
func (c *Controller) Navigate() {
	c.mu.Lock()
	c.state = c.syncer.Read()
	c.url = c.location.Current()
	state := c.state.Clone()
	c.recountLocked()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.notify(subs, state)
}

func (c *Controller) mutate(apply func(*query.State) error) error {
	c.mu.Lock()
	next := c.state.Clone()
	if err := apply(&next); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next

	url, replaced, err := c.syncer.Write(next)
	if err != nil {
		c.logger.Warn("failed to update location", zap.Error(err))
	}
	c.url = url
	if replaced {
		c.logger.Debug("filters changed", zap.String("url", url))
	}

	c.recountLocked()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.notify(subs, next.Clone())
	return nil
}

func (c *Controller) subscribersLocked() []func(query.State) {
	subs := make([]func(query.State), 0, len(c.subscribers))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.subscribers[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

func (c *Controller) notify(subs []func(query.State), state query.State) {
	for _, fn := range subs {
		fn(state.Clone())
	}
}

func (c *Controller) recountLocked() {
	if c.resultGen != c.generation {
		// superseded; release anyone waiting on it
		close(c.settled)
	}
	c.generation++
	c.settled = make(chan struct{})

	gen := c.generation
	state := c.state.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.countTimeout)
		defer cancel()
		c.apply(gen, c.counter.Count(ctx, state))
	}()
}

func (c *Controller) apply(gen uint64, result *facets.Result) {
	c.mu.Lock()
	if gen != c.generation {
		current := c.generation
		c.mu.Unlock()
		c.logger.Debug("discarding stale facet counts",
			zap.Uint64("generation", gen), zap.Uint64("current", current))
		return
	}
	c.result = result
	c.resultGen = gen
	close(c.settled)

	watches := make([]func(uint64, *facets.Result), 0, len(c.countWatches))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.countWatches[id]; ok {
			watches = append(watches, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range watches {
		fn(gen, result)
	}
}

// Wait blocks until the counts for the current generation have been applied.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		done := c.resultGen == c.generation
		settled := c.settled
		c.mu.Unlock()
		if done {
			return nil
		}
		select {
		case <-settled:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// State returns a copy of the current state.
func (c *Controller) State() query.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// URL returns the last URL written to or read from the location.
func (c *Controller) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Generation returns the current mutation generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// View projects the state and the latest applied counts. Counts from an
// older generation are shown until the current recount lands.
func (c *Controller) View() Snapshot {
	c.mu.Lock()
	state := c.state.Clone()
	snap := Snapshot{
		State:            state,
		URL:              c.url,
		Generation:       c.generation,
		CountsGeneration: c.resultGen,
	}
	result := c.result
	c.mu.Unlock()

	snap.View = facets.BuildView(c.catalog, state, result, c.viewConfig)
	return snap
}
