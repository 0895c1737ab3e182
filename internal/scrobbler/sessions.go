package scrobbler

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/boxd/pkg/letterboxd"
)

// DefaultSessionTTL is how long a saved session is trusted before the next
// scrobble signs in afresh.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionCache persists letterboxd sessions between runs so scrobbles can
// skip the sign-in flow. One JSON file per account under dir; cookies are
// credentials, so files are created owner-only.
type SessionCache struct {
	mu  sync.Mutex
	dir string
	ttl time.Duration
	log zerolog.Logger
}

// cachedSession is the on-disk representation of a saved session.
type cachedSession struct {
	Username string              `json:"username"`
	SavedAt  time.Time           `json:"saved_at"`
	Session  *letterboxd.Session `json:"session"`
}

// NewSessionCache creates a cache rooted at dir. A ttl of 0 disables
// expiry.
func NewSessionCache(dir string, ttl time.Duration, logger zerolog.Logger) *SessionCache {
	return &SessionCache{
		dir: dir,
		ttl: ttl,
		log: logger.With().Str("component", "sessions").Logger(),
	}
}

// Load returns the saved session for username, or nil when there is none,
// it has expired, or the file cannot be parsed. A bad cache entry is
// removed and the caller falls through to a fresh sign-in.
func (c *SessionCache) Load(username string) *letterboxd.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.path(username)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("username", username).Msg("reading saved session")
		}
		return nil
	}

	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		c.log.Warn().Err(err).Str("username", username).Msg("discarding unreadable saved session")
		_ = os.Remove(path)
		return nil
	}
	if cached.Session == nil || len(cached.Session.Cookies) == 0 {
		_ = os.Remove(path)
		return nil
	}
	if c.ttl > 0 && time.Since(cached.SavedAt) > c.ttl {
		c.log.Debug().Str("username", username).Time("saved_at", cached.SavedAt).Msg("saved session expired")
		_ = os.Remove(path)
		return nil
	}
	return cached.Session
}

// Store saves the session for username, atomically via temp file and
// rename so a crash never leaves a truncated cache entry.
func (c *SessionCache) Store(username string, session *letterboxd.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(cachedSession{
		Username: username,
		SavedAt:  time.Now(),
		Session:  session,
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return err
	}

	path := c.path(username)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Invalidate removes the saved session for username, if any.
func (c *SessionCache) Invalidate(username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path(username))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *SessionCache) path(username string) string {
	name := url.PathEscape(strings.ToLower(username))
	return filepath.Join(c.dir, name+".json")
}
