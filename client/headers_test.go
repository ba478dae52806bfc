package client_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/habedi/portal/auth"
	"github.com/habedi/portal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHeaders(t *testing.T) {
	multipart := &client.MultipartBody{Fields: map[string]string{"a": "b"}}
	tests := []struct {
		name        string
		token       string
		exclude     bool
		body        client.Body
		wantAuth    string
		wantContent string
	}{
		{"token and json", "A", false, client.JSONBody(map[string]int{"x": 1}), "Bearer A", "application/json"},
		{"no body", "A", false, nil, "Bearer A", "application/json"},
		{"no token", "", false, nil, "", "application/json"},
		{"excluded", "A", true, nil, "Bearer A", ""},
		{"multipart", "A", false, multipart, "Bearer A", ""},
		{"multipart and excluded", "A", true, multipart, "Bearer A", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := client.BuildHeaders(tt.token, tt.exclude, tt.body)
			assert.Equal(t, tt.wantAuth, h.Get("Authorization"))
			assert.Equal(t, tt.wantContent, h.Get("Content-Type"))
			if tt.token == "" {
				_, ok := h["Authorization"]
				assert.False(t, ok)
			}
		})
	}
}

func TestHeaders_Idempotent(t *testing.T) {
	store := auth.NewMemoryStore(auth.Pair{AccessToken: "A", RefreshToken: "R"})
	c := client.New("http://example.invalid", store, nil)
	ctx := context.Background()

	for _, exclude := range []bool{false, true} {
		first, err := c.Headers(ctx, exclude, nil)
		require.NoError(t, err)
		second, err := c.Headers(ctx, exclude, nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}

	require.NoError(t, store.Set(ctx, auth.Pair{AccessToken: "B"}))
	h, err := c.Headers(ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, http.Header{"Authorization": {"Bearer B"}, "Content-Type": {"application/json"}}, h)
}

func TestMultipartBody_MissingFile(t *testing.T) {
	body := &client.MultipartBody{Files: []client.FilePart{client.FileFromPath("cv", "/does/not/exist.pdf")}}

	_, _, err := body.Open()

	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "cv"`)
}

func TestMultipartBody_OpenTwice(t *testing.T) {
	body := &client.MultipartBody{
		Fields: map[string]string{"b": "2", "a": "1"},
		Files: []client.FilePart{{
			Field:    "doc",
			FileName: "doc.txt",
			Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("hello")), nil },
		}},
	}

	for i := 0; i < 2; i++ {
		r, contentType, err := body.Open()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		form := string(data)
		assert.Less(t, strings.Index(form, `name="a"`), strings.Index(form, `name="b"`), "fields are written in key order")
		assert.Contains(t, form, `filename="doc.txt"`)
		assert.Contains(t, form, "hello")
	}
}
