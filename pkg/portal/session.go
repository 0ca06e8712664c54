/**
 * @description
 * Session holds the bearer token and identity of the signed-in user. Every
 * change to it bumps a generation counter; a response can only act on the
 * session of the generation it was sent under, so a late success never
 * reinstalls a token after a teardown.
 */
package portal

import (
	"net/http"
	"sync"

	"github.com/finsecure/portal-core/pkg/domain"
)

// Session is safe for concurrent use. The zero value is an empty session.
type Session struct {
	mu         sync.Mutex
	generation uint64
	token      string
	identity   *domain.Identity
	onTeardown func()
}

func NewSession() *Session {
	return &Session{}
}

// OnTeardown registers the hook run after a 401 or Logout clears a live
// session. Typically a redirect to the login page.
func (s *Session) OnTeardown(fn func()) {
	s.mu.Lock()
	s.onTeardown = fn
	s.mu.Unlock()
}

// Generation returns the current generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Identity returns a copy of the signed-in identity.
func (s *Session) Identity() (*domain.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil, false
	}
	id := *s.identity
	return &id, true
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Attach sets the bearer header when a token is held and returns the
// generation the request was sent under.
func (s *Session) Attach(req *http.Request) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return s.generation
}

// install stores a freshly issued token. It refuses when the session moved on
// since generation was observed.
func (s *Session) install(generation uint64, token string, identity domain.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return false
	}
	s.generation++
	s.token = token
	s.identity = &identity
	return true
}

// Observe reports the status of a response sent under generation. A 401 for
// the current generation tears the session down. A 401 for an older
// generation belongs to a session that is already gone.
func (s *Session) Observe(generation uint64, status int) {
	if status != http.StatusUnauthorized {
		return
	}
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
}

// Logout clears the session. Calling it twice is harmless.
func (s *Session) Logout() {
	s.mu.Lock()
	s.teardownLocked()
}

// teardownLocked clears state, releases the lock and then runs the hook if a
// session existed.
func (s *Session) teardownLocked() {
	existed := s.token != "" || s.identity != nil
	if existed {
		s.generation++
	}
	s.token = ""
	s.identity = nil
	hook := s.onTeardown
	s.mu.Unlock()

	if existed && hook != nil {
		hook()
	}
}
