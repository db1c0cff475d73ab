package exvhp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const streamffBaseURL = "https://streamff.com"

// Streamff hosts videos on streamff.com. Upload is two steps: ask the API to
// generate a link (which is the new video's id), then post the file against
// it. Processing is asynchronous; the video JSON carries a videoLink once it
// is playable, and Resolve before that fails with ErrNotReady. No delete
// endpoint.
type Streamff struct {
	t       *transport
	baseURL string // overridable in tests
}

func (sf *Streamff) base() string {
	if sf.baseURL != "" {
		return sf.baseURL
	}
	return streamffBaseURL
}

// NewStreamff builds a standalone Streamff adapter.
func NewStreamff(opts ...Option) *Streamff {
	o := newOptions(opts)
	return &Streamff{t: &transport{client: o.httpClient, userAgent: o.userAgent}}
}

func (*Streamff) Platform() Platform { return PlatformStreamff }

func (*Streamff) Supports(op Operation) bool {
	switch op {
	case OpUpload, OpStatus, OpResolve:
		return true
	}
	return false
}

func (sf *Streamff) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	id, err := sf.generateLink(ctx)
	if err != nil {
		return nil, err
	}

	body, contentType, err := multipartPayload("file", req.Filename, req.Content, nil)
	if err != nil {
		return nil, &UploadError{Platform: PlatformStreamff, Reason: fmt.Sprintf("encode payload: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		sf.base()+"/api/videos/upload/"+url.PathEscape(id), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := sf.t.do(PlatformStreamff, OpUpload, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformStreamff, OpUpload, resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{Platform: PlatformStreamff, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}
	return &UploadResult{Platform: PlatformStreamff, ID: id}, nil
}

func (sf *Streamff) generateLink(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		sf.base()+"/api/videos/generate-link", nil)
	if err != nil {
		return "", err
	}

	resp, err := sf.t.do(PlatformStreamff, OpUpload, httpReq)
	if err != nil {
		return "", err
	}
	raw, err := readBody(PlatformStreamff, OpUpload, resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{Platform: PlatformStreamff, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}

	// The endpoint answers with the bare id as text, sometimes quoted.
	id := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if id == "" {
		return "", &UploadError{Platform: PlatformStreamff, HTTPStatus: resp.StatusCode, Reason: "empty generate-link response"}
	}
	return id, nil
}

func (sf *Streamff) Status(ctx context.Context, id string) (*StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		sf.base()+"/api/videos/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := sf.t.do(PlatformStreamff, OpStatus, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformStreamff, OpStatus, resp)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &StatusError{Platform: PlatformStreamff, ID: id, HTTPStatus: resp.StatusCode, Reason: "video not found"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &TransportError{Platform: PlatformStreamff, Op: OpStatus,
			Err: fmt.Errorf("unexpected http status %d: %s", resp.StatusCode, snippet(raw))}
	}

	result := &StatusResult{Platform: PlatformStreamff, ID: id}
	if link := gjson.GetBytes(raw, "videoLink").String(); link != "" {
		result.State = StateReady
		result.URL = sf.base() + link
	} else {
		result.State = StatePending
	}
	return result, nil
}

func (sf *Streamff) Resolve(ctx context.Context, id string) (string, error) {
	st, err := sf.Status(ctx, id)
	if err != nil {
		return "", err
	}
	if st.State != StateReady {
		return "", &NotReadyError{Platform: PlatformStreamff, ID: id}
	}
	return st.URL, nil
}

func (*Streamff) Delete(ctx context.Context, id string) error {
	return &UnsupportedOperationError{Platform: PlatformStreamff, Op: OpDelete}
}
