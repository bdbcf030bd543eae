package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"docchat-be/pkg/store"
)

// SessionRegistry holds live sessions keyed by id. Entries expire after the
// idle timeout unless refreshed by Touch; eviction closes the session and
// releases its index, so an abandoned session cannot pin memory forever.
type SessionRegistry struct {
	cache       *cache.Cache
	idleTimeout time.Duration
}

// NewSessionRegistry creates a registry whose entries live for idleTimeout.
// onClose runs for every session the registry closes by eviction, after the
// session's resources are released.
func NewSessionRegistry(idleTimeout time.Duration, onClose func(*store.Session)) *SessionRegistry {
	c := cache.New(idleTimeout, idleTimeout/2)
	c.OnEvicted(func(_ string, value interface{}) {
		sess, ok := value.(*store.Session)
		if !ok {
			return
		}
		// Close reports false when the session was already closed through
		// the normal teardown path; only genuine evictions notify.
		if sess.Close() && onClose != nil {
			onClose(sess)
		}
	})
	return &SessionRegistry{
		cache:       c,
		idleTimeout: idleTimeout,
	}
}

func (r *SessionRegistry) Save(sess *store.Session) {
	r.cache.Set(sess.ID, sess, cache.DefaultExpiration)
}

func (r *SessionRegistry) Get(sessionID string) (*store.Session, error) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, store.ErrSessionNotFound
	}
	return x.(*store.Session), nil
}

// Touch restarts the idle clock for a session, typically on each question.
func (r *SessionRegistry) Touch(sessionID string) {
	if x, found := r.cache.Get(sessionID); found {
		r.cache.Set(sessionID, x, cache.DefaultExpiration)
	}
}

// Delete removes a session. The eviction callback still runs, but a session
// the caller already closed produces no duplicate notification.
func (r *SessionRegistry) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// Count reports the number of registered sessions. Expired entries are
// included until the janitor sweeps them.
func (r *SessionRegistry) Count() int {
	return r.cache.ItemCount()
}
