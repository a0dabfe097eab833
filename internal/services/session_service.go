package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"catalogfacets/internal/caching"
	"catalogfacets/internal/controller"
	"catalogfacets/internal/query"
	"catalogfacets/internal/urlcodec"
)

var ErrSessionNotFound = errors.New("filter session not found")

// ControllerFactory builds a controller bound to location.
type ControllerFactory func(location urlcodec.Location) *controller.Controller

// SessionObserver is attached to every live session.
type SessionObserver interface {
	Attach(sessionID string, c *controller.Controller) (detach func())
}

// Session is one shopper's browsing context: an address bar and the
// controller that keeps it in step with the filters.
type Session struct {
	ID         string
	Location   *urlcodec.MemoryLocation
	Controller *controller.Controller
	CreatedAt  time.Time

	lastSeen time.Time
	detach   []func()
	dirty    chan struct{}
	done     chan struct{}
}

type SessionService interface {
	Create(ctx context.Context, rawURL string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Navigate(ctx context.Context, id, rawURL string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Sweep(ctx context.Context, idle time.Duration) int
	Len() int
}

type sessionService struct {
	factory   ControllerFactory
	cache     caching.CacheService
	ttl       time.Duration
	observers []SessionObserver
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	restores singleflight.Group
}

// NewSessionService keeps sessions in memory. When cache is not nil each
// session's URL is persisted so it can be restored after a restart.
func NewSessionService(factory ControllerFactory, cache caching.CacheService, ttl time.Duration, logger *zap.Logger, observers ...SessionObserver) SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sessionService{
		factory:   factory,
		cache:     cache,
		ttl:       ttl,
		observers: observers,
		logger:    logger,
		sessions:  map[string]*Session{},
	}
}

func (s *sessionService) Create(ctx context.Context, rawURL string) (*Session, error) {
	if rawURL == "" {
		rawURL = "/"
	}
	session := s.open(uuid.NewString(), rawURL)
	s.persist(ctx, session)
	return session, nil
}

// open registers a session for id. If another caller registered id first,
// the new session is discarded and the existing one returned.
func (s *sessionService) open(id, rawURL string) *Session {
	location := urlcodec.NewMemoryLocation(rawURL)
	session := &Session{
		ID:         id,
		Location:   location,
		Controller: s.factory(location),
		CreatedAt:  time.Now(),
		lastSeen:   time.Now(),
		dirty:      make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	if s.cache != nil {
		go s.writeBehind(session)
		session.detach = append(session.detach, session.Controller.Subscribe(func(query.State) {
			select {
			case session.dirty <- struct{}{}:
			default:
			}
		}))
	}
	for _, o := range s.observers {
		session.detach = append(session.detach, o.Attach(id, session.Controller))
	}

	s.mu.Lock()
	existing, ok := s.sessions[id]
	if !ok {
		s.sessions[id] = session
	}
	s.mu.Unlock()
	if ok {
		session.close()
		return existing
	}
	return session
}

// writeBehind persists the session's URL off the mutation path. Pending
// changes coalesce; each write reads the URL current at write time.
func (s *sessionService) writeBehind(session *Session) {
	for {
		select {
		case <-session.dirty:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			s.persist(ctx, session)
			cancel()
		case <-session.done:
			return
		}
	}
}

func (s *sessionService) persist(ctx context.Context, session *Session) {
	if s.cache == nil {
		return
	}
	record := caching.SessionRecord{ID: session.ID, URL: session.Location.Current(), UpdatedAt: time.Now().UTC()}
	if err := s.cache.SetSession(ctx, record, s.ttl); err != nil {
		s.logger.Warn("failed to persist session", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (s *sessionService) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if ok {
		session.lastSeen = time.Now()
	}
	s.mu.Unlock()
	if ok {
		return session, nil
	}

	if s.cache == nil {
		return nil, ErrSessionNotFound
	}
	restored, err, _ := s.restores.Do(id, func() (interface{}, error) {
		s.mu.Lock()
		session, ok := s.sessions[id]
		s.mu.Unlock()
		if ok {
			return session, nil
		}

		record, err := s.cache.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, ErrSessionNotFound
		}
		s.logger.Info("restoring filter session", zap.String("session_id", id))
		return s.open(id, record.URL), nil
	})
	if err != nil {
		return nil, err
	}
	return restored.(*Session), nil
}

func (s *sessionService) Navigate(ctx context.Context, id, rawURL string) (*Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Location.Navigate(rawURL)
	session.Controller.Navigate()
	return session, nil
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		session.close()
	}
	persisted := false
	if s.cache != nil {
		deleted, err := s.cache.DeleteSession(ctx, id)
		if err != nil {
			return err
		}
		persisted = deleted
	}
	if !ok && !persisted {
		return ErrSessionNotFound
	}
	return nil
}

// Sweep drops sessions idle for longer than idle. Persisted copies are kept
// and expire on their own.
func (s *sessionService) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	var expired []*Session

	s.mu.Lock()
	for id, session := range s.sessions {
		if session.lastSeen.Before(cutoff) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		session.close()
	}
	if len(expired) > 0 {
		s.logger.Info("swept idle filter sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

func (s *sessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (session *Session) close() {
	for _, detach := range session.detach {
		detach()
	}
	close(session.done)
}
