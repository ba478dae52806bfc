package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	MinWorkers = 1
	MaxWorkers = 20
)

var methods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func ValidateWorkerCount(workers int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d, got %d", MinWorkers, MaxWorkers, workers)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateMethod accepts the HTTP methods the API uses, in any case, and returns the canonical form.
func ValidateMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if !methods[m] {
		return "", fmt.Errorf("invalid method: %s (must be one of: GET, POST, PUT, PATCH, DELETE)", method)
	}
	return m, nil
}

// ValidateEndpoint accepts a path relative to the API base URL ("/jobs", "jobs?page=2")
// or an absolute http(s) URL.
func ValidateEndpoint(endpoint string) error {
	if err := ValidateNonEmptyString("endpoint", endpoint); err != nil {
		return err
	}
	if strings.ContainsAny(endpoint, " \t\r\n") {
		return fmt.Errorf("endpoint must not contain whitespace: %q", endpoint)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: unsupported scheme %s", endpoint, u.Scheme)
	}
	if u.Scheme != "" && u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	return nil
}

// ParseKeyValue splits "key=value". The value may be empty or contain '='.
func ParseKeyValue(pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", pair)
	}
	return strings.TrimSpace(key), value, nil
}
