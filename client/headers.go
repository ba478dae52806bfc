package client

import (
	"context"
	"fmt"
	"net/http"
)

// BuildHeaders returns the headers for a request carrying body.
//
// Authorization is set when token is non-empty. Content-Type is application/json unless
// excludeContentType is set or the body is multipart: multipart boundaries come from the body
// encoder when the request is sent.
func BuildHeaders(token string, excludeContentType bool, body Body) http.Header {
	h := make(http.Header)
	if token != "" {
		h.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	if !excludeContentType && (body == nil || !body.Multipart()) {
		h.Set("Content-Type", "application/json")
	}
	return h
}

// Headers is BuildHeaders with the access token currently held by the client's store.
func (c *Client) Headers(ctx context.Context, excludeContentType bool, body Body) (http.Header, error) {
	token, err := c.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	return BuildHeaders(token, excludeContentType, body), nil
}
