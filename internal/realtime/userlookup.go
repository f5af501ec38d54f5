package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
)

// UserDirectory resolves author ids to display metadata for event enrichment.
// Implementations must tolerate unknown ids by returning ErrUserNotFound;
// the caller substitutes a placeholder and delivery continues either way.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (*domain.User, error)
}

func placeholderUser(userID string) *domain.User {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return &domain.User{ID: userID, DisplayName: "member-" + short}
}

type cacheEntry struct {
	user    *domain.User
	expires time.Time
}

// cachedDirectory wraps a UserDirectory with a TTL cache so every insert
// event does not cost a lookup round trip. Not-found results are cached too
// (as placeholders): a flood of messages from an unresolvable author must
// not turn into a lookup flood.
type cachedDirectory struct {
	inner UserDirectory
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newCachedDirectory(inner UserDirectory, ttl time.Duration) *cachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &cachedDirectory{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// resolve never fails: lookup errors degrade to a placeholder, which is not
// cached so a transient failure heals on the next event.
func (d *cachedDirectory) resolve(ctx context.Context, userID string) *domain.User {
	d.mu.Lock()
	if e, ok := d.entries[userID]; ok && time.Now().Before(e.expires) {
		d.mu.Unlock()
		return e.user
	}
	d.mu.Unlock()

	u, err := d.inner.Lookup(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			// transient failure: degrade without caching so it heals
			return placeholderUser(userID)
		}
		u = placeholderUser(userID)
	}

	d.mu.Lock()
	d.entries[userID] = cacheEntry{user: u, expires: time.Now().Add(d.ttl)}
	d.mu.Unlock()
	return u
}
