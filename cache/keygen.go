package cache

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"strings"
)

// etagSuffix is appended to a payload key to derive its validator key
const etagSuffix = "_etag"

// Key identifies one cached resource, e.g. "anime_42" or
// "news_all_all_1_".
type Key string

// KeyFor builds a key from a resource name and the query values that
// distinguish it. Every discriminator is kept, empty ones included, and
// escaped so that an underscore inside a value cannot pass for a
// separator: distinct queries never share a key.
func KeyFor(resource string, discriminators ...string) Key {
	if len(discriminators) == 0 {
		return Key(resource)
	}
	parts := make([]string, len(discriminators))
	for i, d := range discriminators {
		parts[i] = escapeDiscriminator(d)
	}
	return Key(resource + "_" + strings.Join(parts, "_"))
}

func escapeDiscriminator(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "_", "%5F")
}

// Sub derives a key for a resource nested under k, e.g. anime_42 ->
// anime_42_characters.
func (k Key) Sub(name string) Key {
	return Key(string(k) + "_" + name)
}

// ETag returns the key the validator token for k is stored under
func (k Key) ETag() string {
	return string(k) + etagSuffix
}

func (k Key) String() string {
	return string(k)
}

// sanitizeFilename makes a key safe for use as a filename. Distinct keys
// give distinct names.
func sanitizeFilename(key string) string {
	name := url.QueryEscape(key)
	// For very long keys, use hash to avoid filesystem limits. An escaped
	// key never holds "%h", so hashed names cannot clash with plain ones.
	if len(name) > 200 {
		hash := md5.Sum([]byte(key))
		return fmt.Sprintf("%%h%x", hash)
	}
	return name
}
