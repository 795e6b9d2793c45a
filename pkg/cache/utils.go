package cache

import "strings"

// Key joins parts into a namespaced cache key, e.g. Key("movers", "global").
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
