package subscription

import (
	"fmt"
	"strings"
)

// Kind identifies how a Pattern compares against a topic.
type Kind int

const (
	KindExact Kind = iota
	KindNamespace
	KindAll
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindNamespace:
		return "namespace"
	case KindAll:
		return "all"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Pattern selects the topics a subscription receives.
// The kind is fixed at construction; Value is never rewritten.
type Pattern struct {
	Kind  Kind
	Value string
}

// Exact matches only the identical topic string.
func Exact(topic string) Pattern {
	return Pattern{Kind: KindExact, Value: topic}
}

// Namespace matches every topic that starts with prefix. The comparison is a
// literal string prefix; callers append the "." delimiter themselves when
// they want segment semantics ("conversation." vs "conversation").
func Namespace(prefix string) Pattern {
	return Pattern{Kind: KindNamespace, Value: prefix}
}

// All matches every topic.
func All() Pattern {
	return Pattern{Kind: KindAll}
}

// Matches reports whether topic is selected by p.
func (p Pattern) Matches(topic string) bool {
	switch p.Kind {
	case KindAll:
		return true
	case KindNamespace:
		return strings.HasPrefix(topic, p.Value)
	case KindExact:
		return topic == p.Value
	}
	return false
}

func (p Pattern) String() string {
	if p.Kind == KindAll {
		return "all"
	}
	return p.Kind.String() + ":" + p.Value
}
