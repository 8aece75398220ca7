package domain

import (
	"sort"
	"strconv"
	"strings"
)

type EntityDomain string

const (
	DomainContent EntityDomain = "content"
	DomainStory   EntityDomain = "story"
	DomainTask    EntityDomain = "task"
	DomainProfile EntityDomain = "profile"
)

type Operation string

const (
	OperationList     Operation = "list"
	OperationDetail   Operation = "detail"
	OperationComments Operation = "comments"
	OperationAttempts Operation = "attempts"
)

// CacheKey identifies one fetchable entity or query result. Two keys with the
// same domain, operation and parameter set are equal regardless of the order
// parameters were supplied in.
type CacheKey struct {
	Domain    EntityDomain
	Operation Operation
	Params    map[string]string
}

func NewCacheKey(domain EntityDomain, op Operation, params ...string) CacheKey {
	key := CacheKey{Domain: domain, Operation: op}
	if len(params) == 0 {
		return key
	}

	key.Params = make(map[string]string, len(params)/2)
	for i := 0; i+1 < len(params); i += 2 {
		if params[i+1] == "" {
			continue
		}
		key.Params[params[i]] = params[i+1]
	}
	return key
}

func (k CacheKey) Param(name string) string {
	return k.Params[name]
}

func (k CacheKey) With(name, value string) CacheKey {
	params := make(map[string]string, len(k.Params)+1)
	for n, v := range k.Params {
		params[n] = v
	}
	if value == "" {
		delete(params, name)
	} else {
		params[name] = value
	}
	return CacheKey{Domain: k.Domain, Operation: k.Operation, Params: params}
}

// String returns the canonical form used as the cache table index.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(string(k.Domain))
	b.WriteByte('/')
	b.WriteString(string(k.Operation))

	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(k.Params[name]))
	}

	return b.String()
}

func (k CacheKey) IsZero() bool {
	return k.Domain == "" && k.Operation == "" && len(k.Params) == 0
}

func (k CacheKey) Equal(other CacheKey) bool {
	return k.String() == other.String()
}

// KeyPattern selects cache keys. An empty Domain or Operation matches any
// value and params absent from the pattern act as wildcards. An Exact
// pattern matches only the key with exactly the same parameter set.
type KeyPattern struct {
	Domain    EntityDomain
	Operation Operation
	Params    map[string]string
	Exact     bool
}

func ExactPattern(key CacheKey) KeyPattern {
	return KeyPattern{Domain: key.Domain, Operation: key.Operation, Params: key.Params, Exact: true}
}

func DomainPattern(domain EntityDomain, op Operation) KeyPattern {
	return KeyPattern{Domain: domain, Operation: op}
}

func (p KeyPattern) Matches(key CacheKey) bool {
	if p.Exact {
		return p.Domain == key.Domain && p.Operation == key.Operation && sameParams(p.Params, key.Params)
	}
	if p.Domain != "" && p.Domain != key.Domain {
		return false
	}
	if p.Operation != "" && p.Operation != key.Operation {
		return false
	}
	for name, value := range p.Params {
		if key.Params[name] != value {
			return false
		}
	}
	return true
}

func sameParams(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for name, value := range a {
		if other, ok := b[name]; !ok || other != value {
			return false
		}
	}
	return true
}

func (p KeyPattern) String() string {
	op := string(p.Operation)
	if op == "" {
		op = "*"
	}
	domain := string(p.Domain)
	if domain == "" {
		domain = "*"
	}
	key := CacheKey{Domain: EntityDomain(domain), Operation: Operation(op), Params: p.Params}
	return key.String()
}
