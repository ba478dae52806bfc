package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
)

// Body is a request payload that can be encoded more than once, so a rejected request
// can be re-issued unchanged after a token refresh.
type Body interface {
	// Open returns a fresh reader over the encoded payload. contentType is non-empty only for
	// payloads that carry their own framing (multipart boundaries).
	Open() (r io.Reader, contentType string, err error)
	// Multipart reports whether the payload is multipart form data.
	Multipart() bool
}

type jsonBody struct{ v interface{} }

// JSONBody encodes v as JSON on every send.
func JSONBody(v interface{}) Body { return jsonBody{v: v} }

func (b jsonBody) Open() (io.Reader, string, error) {
	if raw, ok := b.v.(json.RawMessage); ok {
		return bytes.NewReader(raw), "", nil
	}
	data, err := json.Marshal(b.v)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode JSON body: %w", err)
	}
	return bytes.NewReader(data), "", nil
}

func (jsonBody) Multipart() bool { return false }

// FilePart is one file of a multipart upload. Open is called once per send.
type FilePart struct {
	Field    string
	FileName string
	Open     func() (io.ReadCloser, error)
}

// FileFromPath returns a part that reads the file at path.
func FileFromPath(field, path string) FilePart {
	return FilePart{
		Field:    field,
		FileName: filepath.Base(path),
		Open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// MultipartBody is multipart/form-data with plain fields followed by files.
type MultipartBody struct {
	Fields map[string]string
	Files  []FilePart
}

func (*MultipartBody) Multipart() bool { return true }

// Open streams the form through a pipe. Files are opened before Open returns so that
// a missing file is reported here rather than as a failed request.
func (b *MultipartBody) Open() (io.Reader, string, error) {
	readers := make([]io.ReadCloser, 0, len(b.Files))
	for _, f := range b.Files {
		if f.Open == nil {
			closeAll(readers)
			return nil, "", fmt.Errorf("file part %q has no source", f.Field)
		}
		rc, err := f.Open()
		if err != nil {
			closeAll(readers)
			return nil, "", fmt.Errorf("failed to open file for field %q: %w", f.Field, err)
		}
		readers = append(readers, rc)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer closeAll(readers)
		pw.CloseWithError(b.write(mw, readers))
	}()
	return pr, mw.FormDataContentType(), nil
}

func (b *MultipartBody) write(mw *multipart.Writer, readers []io.ReadCloser) error {
	keys := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, b.Fields[k]); err != nil {
			return err
		}
	}
	for i, f := range b.Files {
		part, err := mw.CreateFormFile(f.Field, f.FileName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, readers[i]); err != nil {
			return fmt.Errorf("failed to stream %s: %w", f.FileName, err)
		}
	}
	return mw.Close()
}

func closeAll(readers []io.ReadCloser) {
	for _, r := range readers {
		_ = r.Close()
	}
}

// asBody turns a convenience-method payload into a Body.
func asBody(v interface{}) Body {
	switch b := v.(type) {
	case nil:
		return nil
	case Body:
		return b
	default:
		return JSONBody(v)
	}
}
