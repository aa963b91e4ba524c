package cache

import (
	"strings"
	"time"
)

// DefaultTTL is the maximum age of an entry for the content-hash predicate.
const DefaultTTL = 7 * 24 * time.Hour

// now is swapped in tests.
var now = time.Now

// ShouldUseCache reports whether key can be skipped because its freshly
// computed hash equals the stored one and the entry is not older than ttl.
func ShouldUseCache(c Cache, key, hash string, ttl time.Duration, force bool) bool {
	if force {
		return false
	}
	entry, ok := c[key]
	if !ok || entry.Hash != hash {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return now().Sub(entry.LastUpdated) <= ttl
}

// ShouldSkipByRemoteHash reports whether the stored remote hash equals the
// one just observed. Age is ignored: the remote hash identifies a version.
func ShouldSkipByRemoteHash(c Cache, key, remoteHash string, force bool) bool {
	if force || remoteHash == "" {
		return false
	}
	entry, ok := c[key]
	return ok && entry.RemoteHash == remoteHash
}

// ShouldSkipByLastModified reports whether the reported last-modified date
// is not newer than the stored one. Without a reported date the existence
// of an entry is enough to skip.
func ShouldSkipByLastModified(c Cache, key, lastModified string, force bool) bool {
	if force {
		return false
	}
	entry, ok := c[key]
	if !ok {
		return false
	}
	if lastModified == "" {
		return true
	}
	if entry.LastModified == "" {
		return false
	}
	return !newer(lastModified, entry.LastModified)
}

// UpdateOption sets an optional field of an updated entry.
type UpdateOption func(*Entry)

// WithRemoteHash records the upstream version id.
func WithRemoteHash(h string) UpdateOption {
	return func(e *Entry) {
		e.RemoteHash = h
	}
}

// WithLastModified records the upstream last-modified date.
func WithLastModified(lm string) UpdateOption {
	return func(e *Entry) {
		e.LastModified = lm
	}
}

// Update replaces the entry for key. LastUpdated is always set to now.
func Update(c Cache, key, hash string, opts ...UpdateOption) {
	e := Entry{Hash: hash, LastUpdated: now().UTC()}
	for _, opt := range opts {
		opt(&e)
	}
	c[key] = e
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
	time.RFC1123,
	time.RFC1123Z,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// newer reports whether a is strictly later than b. Dates that cannot be
// parsed fall back to string comparison.
func newer(a, b string) bool {
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	if okA && okB {
		return ta.After(tb)
	}
	return strings.TrimSpace(a) > strings.TrimSpace(b)
}
