package notify

import (
	"regexp"
	"strings"
)

// Delimiter separates topic segments.
const Delimiter = "."

// DefaultNamespace scopes dispatch channels on the hub.
const DefaultNamespace = "intercom_event"

// Namespace builds and recognizes channel names under a fixed prefix so
// dispatch notifications do not collide with other users of the hub.
type Namespace struct {
	prefix string
}

// NewNamespace returns a Namespace for value. An empty value falls back to
// DefaultNamespace.
func NewNamespace(value string) Namespace {
	value = strings.TrimSuffix(strings.TrimSpace(value), Delimiter)
	if value == "" {
		value = DefaultNamespace
	}
	return Namespace{prefix: value + Delimiter}
}

// Build returns the namespaced form of suffix, or the bare prefix when no
// suffix is given.
func (n Namespace) Build(suffix ...string) string {
	return n.bare() + strings.Join(suffix, "")
}

// Matcher returns a pattern matching strings produced by Build with the same
// suffix. With no suffix it matches every namespaced string.
func (n Namespace) Matcher(suffix ...string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(n.Build(suffix...)))
}

// Trim strips the prefix from a namespaced channel name.
func (n Namespace) Trim(channel string) (string, bool) {
	if !strings.HasPrefix(channel, n.bare()) {
		return channel, false
	}
	return strings.TrimPrefix(channel, n.bare()), true
}

func (n Namespace) bare() string {
	if n.prefix == "" {
		return DefaultNamespace + Delimiter
	}
	return n.prefix
}

func (n Namespace) String() string {
	return n.bare()
}
