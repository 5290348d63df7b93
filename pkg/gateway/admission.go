package gateway

import (
	"net/http"
	"net/url"
	"strings"
)

// Decision is the result of an admission check for one connection attempt.
// It is computed per attempt and never stored.
type Decision struct {
	Allow  bool
	Reason string // Human-readable deny reason, empty on allow.
}

// Policy decides whether a connection attempt may proceed, based on the
// declared origin and HTTP verb. Decide is a pure function of its inputs;
// rejecting the handshake is the caller's job.
type Policy struct {
	allowAny bool
	origins  map[string]struct{}
	methods  map[string]struct{}
}

// NewPolicy builds a Policy from the configured allow-lists.
// Origins are normalized to scheme://host so list entries and request
// headers compare consistently regardless of case or trailing slashes.
func NewPolicy(allowAny bool, origins, methods []string) *Policy {
	p := &Policy{
		allowAny: allowAny,
		origins:  make(map[string]struct{}, len(origins)),
		methods:  make(map[string]struct{}, len(methods)),
	}
	for _, o := range origins {
		if norm, ok := normalizeOrigin(o); ok {
			p.origins[norm] = struct{}{}
		}
	}
	for _, m := range methods {
		p.methods[strings.ToUpper(m)] = struct{}{}
	}
	return p
}

// Decide checks one connection attempt. An empty origin means a
// non-browser or same-origin client and is admitted; browsers always send
// the header on cross-origin requests, which is what the list guards.
func (p *Policy) Decide(origin, method string) Decision {
	if _, ok := p.methods[strings.ToUpper(method)]; !ok {
		return Decision{Reason: "method " + method + " not allowed"}
	}

	if origin == "" || p.allowAny {
		return Decision{Allow: true}
	}

	norm, ok := normalizeOrigin(origin)
	if !ok {
		return Decision{Reason: "malformed origin " + origin}
	}
	if _, ok := p.origins[norm]; !ok {
		return Decision{Reason: "origin " + origin + " not in allow-list"}
	}
	return Decision{Allow: true}
}

// CheckOrigin adapts the policy for the websocket upgrader.
func (p *Policy) CheckOrigin(r *http.Request) bool {
	return p.Decide(r.Header.Get("Origin"), r.Method).Allow
}

// normalizeOrigin reduces an origin string to lowercase scheme://host.
func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
