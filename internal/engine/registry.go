package engine

import (
	"crypto/rand"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// codeCharset deliberately omits 0/O and 1/I so codes stay easy to read
// out loud and type on a phone
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RegistryConfig tunes session lifecycle behavior
type RegistryConfig struct {
	CodeLength      int
	MaxCodeAttempts int
	EvictionGrace   time.Duration // how long ended sessions stay queryable
	IdleTimeout     time.Duration // presenterless sessions end after this
	DisconnectGrace time.Duration // how long dropped participants are kept
	SweepInterval   time.Duration
}

// DefaultRegistryConfig returns the production defaults
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		CodeLength:      4,
		MaxCodeAttempts: 10,
		EvictionGrace:   5 * time.Minute,
		IdleTimeout:     10 * time.Minute,
		DisconnectGrace: 60 * time.Second,
		SweepInterval:   15 * time.Second,
	}
}

// RegistryObserver receives lifecycle notifications produced by the
// background sweep, so expirations reach connected clients
type RegistryObserver interface {
	ParticipantCountChanged(session *Session, count int)
	SessionExpired(session *Session)
}

// Registry owns the code → session mapping and is the only component that
// creates or destroys sessions. It is constructed at process start and
// shut down explicitly; eviction runs as a background sweep, not GC.
type Registry struct {
	cfg      RegistryConfig
	observer RegistryObserver

	mu       sync.RWMutex
	sessions map[string]*Session // keyed by code
	byID     map[string]*Session

	done chan struct{}
	once sync.Once
}

// NewRegistry creates an empty registry. Call Run in a goroutine to start
// the eviction sweep and Close on shutdown.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		byID:     make(map[string]*Session),
		done:     make(chan struct{}),
	}
}

// SetObserver wires the component notified about swept sessions
func (r *Registry) SetObserver(observer RegistryObserver) {
	r.observer = observer
}

// CreateSession allocates a fresh session with a code unique among the
// currently active sessions. Code generation retries a bounded number of
// times before giving up with RegistryExhausted.
func (r *Registry) CreateSession(presentationID, title, presenterConnID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < r.cfg.MaxCodeAttempts; attempt++ {
		code, err := randomCode(r.cfg.CodeLength)
		if err != nil {
			return nil, err
		}
		if _, taken := r.sessions[code]; taken {
			continue
		}

		session := NewSession(uuid.NewString(), code, presentationID, title, presenterConnID)
		r.sessions[code] = session
		r.byID[session.ID] = session
		log.Printf("Session created: code=%s, presentation=%s", code, presentationID)
		return session, nil
	}
	return nil, ErrRegistryExhausted
}

// GetSession looks up a session by its join code
func (r *Registry) GetSession(code string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// GetSessionByID looks up a session by its opaque ID
func (r *Registry) GetSessionByID(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// AttachPresenter binds a presenter connection to an existing session
func (r *Registry) AttachPresenter(code, connectionID string) (*Session, error) {
	session, err := r.GetSession(code)
	if err != nil {
		return nil, err
	}
	if err := session.AttachPresenter(connectionID); err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession marks a session ended. The session stays queryable for late
// result reads until the eviction grace passes; the sweep removes it.
func (r *Registry) EndSession(code string) (*Session, error) {
	session, err := r.GetSession(code)
	if err != nil {
		return nil, err
	}
	if already := session.End(); !already {
		log.Printf("Session ended: code=%s", code)
	}
	return session, nil
}

// Run drives the background sweep until Close is called
func (r *Registry) Run() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.done:
			return
		}
	}
}

// Close stops the background sweep. Idempotent.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.done) })
}

// sweep evicts ended sessions past their grace period, expires idle
// presenterless sessions, and drops participants whose disconnect grace
// window ran out
func (r *Registry) sweep() {
	now := time.Now()

	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	for _, session := range candidates {
		if endedAt := session.EndedAt(); endedAt != nil {
			if now.Sub(*endedAt) > r.cfg.EvictionGrace {
				r.evict(session)
			}
			continue
		}

		if removed, count := session.SweepDisconnected(r.cfg.DisconnectGrace); removed > 0 {
			log.Printf("Swept %d stale participants: code=%s", removed, session.Code)
			if r.observer != nil {
				r.observer.ParticipantCountChanged(session, count)
			}
		}

		if idleSince, idle := session.IdleSince(); idle && now.Sub(idleSince) > r.cfg.IdleTimeout {
			session.End()
			log.Printf("Session expired after idle timeout: code=%s", session.Code)
			if r.observer != nil {
				r.observer.SessionExpired(session)
			}
		}
	}
}

func (r *Registry) evict(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, session.Code)
	delete(r.byID, session.ID)
	log.Printf("Session evicted: code=%s", session.Code)
}

// randomCode draws a fixed-length code from the unambiguous charset
func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", ErrRegistryExhausted
	}
	for i, b := range buf {
		buf[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(buf), nil
}
