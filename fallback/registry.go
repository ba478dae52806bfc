// Package fallback supplies placeholder payloads for endpoints when the backend cannot be reached.
//
// It is an offline convenience, not a cache: payloads are static and never reflect server state.
package fallback

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Factory builds the placeholder payload for an endpoint path.
type Factory func(path string) interface{}

// Envelope is returned for endpoints no factory matches.
type Envelope struct {
	Message   string `json:"message"`
	Endpoint  string `json:"endpoint"`
	Timestamp string `json:"timestamp"`
}

type entry struct {
	pattern *regexp.Regexp
	factory Factory
}

// Registry maps endpoint patterns to payload factories. The first registered match wins.
type Registry struct {
	entries []entry
	now     func() time.Time
}

// NewRegistry returns an empty registry. now stamps the generic envelope; nil means time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{now: now}
}

// Register adds a factory for endpoints whose path matches pattern.
func (r *Registry) Register(pattern string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("nil factory for pattern %q", pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid fallback pattern %q: %w", pattern, err)
	}
	r.entries = append(r.entries, entry{pattern: re, factory: factory})
	return nil
}

// MustRegister is Register for patterns known at compile time.
func (r *Registry) MustRegister(pattern string, factory Factory) {
	if err := r.Register(pattern, factory); err != nil {
		panic(err)
	}
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int { return len(r.entries) }

// Resolve returns the placeholder payload for endpoint.
// Patterns are matched against the path only; the query string is ignored.
func (r *Registry) Resolve(endpoint string) interface{} {
	path := endpointPath(endpoint)
	for _, e := range r.entries {
		if e.pattern.MatchString(path) {
			return e.factory(path)
		}
	}
	return Envelope{
		Message:   "mock data",
		Endpoint:  endpoint,
		Timestamp: r.now().UTC().Format(time.RFC3339),
	}
}

// JSON is Resolve encoded as JSON.
func (r *Registry) JSON(endpoint string) (json.RawMessage, error) {
	body, err := json.Marshal(r.Resolve(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to encode fallback payload for %s: %w", endpoint, err)
	}
	return body, nil
}

func endpointPath(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		if u.Path != "" {
			return u.Path
		}
	}
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
