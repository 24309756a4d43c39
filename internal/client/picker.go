package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/devilmonastery/notedesk/internal/pkg/metrics"
)

// ErrSuperseded is returned by a picker when a newer query replaced the one
// being answered. The result was discarded and the caller should ignore it.
var ErrSuperseded = errors.New("superseded by a newer query")

// Option is one selectable entry of a picker
type Option struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// CategoryOption maps a category to a picker option
func CategoryOption(c Category) Option {
	return Option{Label: c.Name, Value: c.ID}
}

// TagOption maps a tag to a picker option
func TagOption(t Tag) Option {
	return Option{Label: t.Name, Value: t.ID}
}

// Lister is the part of Resource the pickers need
type Lister[T any] interface {
	List(ctx context.Context, page int, search string) (*Page[T], error)
}

// SearchPicker answers search-as-you-type queries against the first page of
// a collection. When queries overlap, only the most recently issued one
// updates the visible options.
type SearchPicker[T any] struct {
	source   Lister[T]
	toOption func(T) Option
	debounce time.Duration
	seq      Sequencer[[]Option]
}

// NewSearchPicker creates a picker over source. A positive debounce delays
// each query and drops it if a newer one arrives during the wait.
func NewSearchPicker[T any](source Lister[T], toOption func(T) Option, debounce time.Duration) *SearchPicker[T] {
	return &SearchPicker[T]{
		source:   source,
		toOption: toOption,
		debounce: debounce,
	}
}

// Search lists page 1 matching term. It returns ErrSuperseded when a newer
// Search was issued before this one completed.
func (p *SearchPicker[T]) Search(ctx context.Context, term string) ([]Option, error) {
	ticket := p.seq.Next()

	if p.debounce > 0 {
		timer := time.NewTimer(p.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if !p.seq.IsLatest(ticket) {
			return nil, ErrSuperseded
		}
	}

	page, err := p.source.List(ctx, 1, term)
	if err != nil {
		if !p.seq.IsLatest(ticket) {
			return nil, ErrSuperseded
		}
		return nil, err
	}

	options := make([]Option, 0, len(page.Results))
	for _, item := range page.Results {
		options = append(options, p.toOption(item))
	}

	if !p.seq.Commit(ticket, options) {
		metrics.StaleResponses.WithLabelValues("search").Inc()
		return nil, ErrSuperseded
	}
	return options, nil
}

// Options returns the options of the latest committed search
func (p *SearchPicker[T]) Options() []Option {
	return p.seq.Current()
}

// PagedPicker accumulates options across successive pages for one search
// term. Changing the term starts over from page 1.
type PagedPicker[T any] struct {
	source   Lister[T]
	toOption func(T) Option

	mu       sync.Mutex
	started  bool
	term     string
	gen      uint64 // bumped on every reset
	nextPage int
	hasMore  bool
	options  []Option
}

// NewPagedPicker creates an accumulating picker over source
func NewPagedPicker[T any](source Lister[T], toOption func(T) Option) *PagedPicker[T] {
	return &PagedPicker[T]{
		source:   source,
		toOption: toOption,
	}
}

// LoadMore fetches the next page for term and returns all options loaded so
// far. Once the server reports no further page it returns the accumulated
// options without a request.
func (p *PagedPicker[T]) LoadMore(ctx context.Context, term string) ([]Option, error) {
	p.mu.Lock()
	if !p.started || term != p.term {
		p.resetLocked(term)
	}
	if !p.hasMore {
		options := p.snapshotLocked()
		p.mu.Unlock()
		return options, nil
	}
	gen, page := p.gen, p.nextPage
	p.mu.Unlock()

	result, err := p.source.List(ctx, page, term)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || page != p.nextPage {
		metrics.StaleResponses.WithLabelValues("paged").Inc()
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	for _, item := range result.Results {
		p.options = append(p.options, p.toOption(item))
	}
	p.nextPage++
	p.hasMore = result.HasNext()
	return p.snapshotLocked(), nil
}

// HasMore reports whether another page can be loaded for the current term
func (p *PagedPicker[T]) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.started || p.hasMore
}

// Options returns the accumulated options
func (p *PagedPicker[T]) Options() []Option {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Reset discards accumulated options; in-flight loads are dropped
func (p *PagedPicker[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked(p.term)
	p.started = false
}

func (p *PagedPicker[T]) resetLocked(term string) {
	p.started = true
	p.term = term
	p.gen++
	p.nextPage = 1
	p.hasMore = true
	p.options = nil
}

func (p *PagedPicker[T]) snapshotLocked() []Option {
	out := make([]Option, len(p.options))
	copy(out, p.options)
	return out
}
