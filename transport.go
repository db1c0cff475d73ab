package exvhp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
)

// Doer issues a single HTTP request. *http.Client satisfies it; callers may
// inject any implementation (custom transports, recording clients in tests).
// Cancellation of the request context aborts the in-flight call.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultUserAgent = "go-eXVHP/2.0 (+https://github.com/eXhumer/go-eXVHP)"

// transport is the shared shim every adapter sends requests through. It owns
// nothing beyond the injected Doer and the default User-Agent applied to
// requests that set none.
type transport struct {
	client    Doer
	userAgent string
}

func (t *transport) do(p Platform, op Operation, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Platform: p, Op: op, Err: err}
	}
	return resp, nil
}

// readBody drains and closes the response body.
func readBody(p Platform, op Operation, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Platform: p, Op: op, Err: err}
	}
	return body, nil
}

// snippet trims a response body down to something that fits in an error.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "empty response body"
	}
	return s
}

func mimeType(filename string) string {
	if mt := mime.TypeByExtension(filepath.Ext(filename)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// multipartPayload builds a multipart/form-data body with a single file part
// plus optional plain fields, carrying the file's guessed content type on the
// part the way browsers do.
func multipartPayload(fileField, filename string, content io.Reader, fields map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(fileField), quoteEscaper.Replace(filename)))
	hdr.Set("Content-Type", mimeType(filename))

	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, "", err
	}

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// newJSONRequest marshals v and builds a request with the JSON content type.
func newJSONRequest(ctx context.Context, method, url string, v any) (*http.Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
