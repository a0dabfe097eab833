package urlcodec

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"catalogfacets/internal/query"
)

// Location is the address bar. Replace must swap the current history entry
// without reloading the page.
type Location interface {
	Current() string
	Replace(rawURL string) error
}

// SplitURL separates a URL into the part before '?', the raw query and the fragment (with '#').
func SplitURL(rawURL string) (base, rawQuery, fragment string) {
	rest := rawURL
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest, fragment = rest[:i], rest[i:]
	}
	base, rawQuery, _ = strings.Cut(rest, "?")
	return base, rawQuery, fragment
}

// JoinURL is the inverse of SplitURL; an empty query drops the '?'.
func JoinURL(base, rawQuery, fragment string) string {
	if rawQuery == "" {
		return base + fragment
	}
	return base + "?" + rawQuery + fragment
}

// Syncer keeps a Location in step with filter state.
type Syncer struct {
	location Location
	logger   *zap.Logger
}

// NewSyncer creates a syncer for location.
func NewSyncer(location Location, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{location: location, logger: logger}
}

// Read decodes the current location. Malformed parameters are logged and skipped.
func (s *Syncer) Read() query.State {
	_, rawQuery, _ := SplitURL(s.location.Current())
	return s.ReadQuery(rawQuery)
}

// ReadQuery decodes rawQuery the same way Read does.
func (s *Syncer) ReadQuery(rawQuery string) query.State {
	state, errs := DecodeQuery(rawQuery)
	for _, err := range errs {
		s.logger.Warn("ignoring malformed url parameter", zap.Error(err))
	}
	return state
}

// Write encodes state onto the current location. It returns the resulting URL
// and whether the location was replaced; an unchanged URL is not written.
func (s *Syncer) Write(state query.State) (string, bool, error) {
	current := s.location.Current()
	base, rawQuery, fragment := SplitURL(current)
	next := JoinURL(base, Encode(state, ParseParams(rawQuery)).String(), fragment)
	if next == current {
		return current, false, nil
	}
	if err := s.location.Replace(next); err != nil {
		return current, false, err
	}
	s.logger.Debug("location replaced", zap.String("url", next))
	return next, true, nil
}

// MemoryLocation is an in-process Location. Server-side sessions use it in
// place of a browser address bar.
type MemoryLocation struct {
	mu       sync.RWMutex
	current  string
	replaced int
}

// NewMemoryLocation starts at rawURL.
func NewMemoryLocation(rawURL string) *MemoryLocation {
	return &MemoryLocation{current: rawURL}
}

func (l *MemoryLocation) Current() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

func (l *MemoryLocation) Replace(rawURL string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = rawURL
	l.replaced++
	return nil
}

// Replacements counts Replace calls.
func (l *MemoryLocation) Replacements() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.replaced
}

// Navigate moves the location without counting as a replacement, the way
// back/forward navigation does.
func (l *MemoryLocation) Navigate(rawURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = rawURL
}
