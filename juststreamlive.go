package exvhp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	juststreamAPIURL  = "https://api.juststream.live"
	juststreamBaseURL = "https://juststream.live"
)

// JustStreamLive hosts videos on juststream.live. Processing is
// asynchronous; Resolve before readiness fails with ErrNotReady. The
// platform can also mirror a video it fetches itself from a URL, exposed as
// MirrorFromURL. No delete endpoint.
type JustStreamLive struct {
	t       *transport
	apiURL  string // overridable in tests
	baseURL string
}

func (jsl *JustStreamLive) api() string {
	if jsl.apiURL != "" {
		return jsl.apiURL
	}
	return juststreamAPIURL
}

func (jsl *JustStreamLive) base() string {
	if jsl.baseURL != "" {
		return jsl.baseURL
	}
	return juststreamBaseURL
}

// NewJustStreamLive builds a standalone JustStreamLive adapter.
func NewJustStreamLive(opts ...Option) *JustStreamLive {
	o := newOptions(opts)
	return &JustStreamLive{t: &transport{client: o.httpClient, userAgent: o.userAgent}}
}

func (*JustStreamLive) Platform() Platform { return PlatformJustStreamLive }

func (*JustStreamLive) Supports(op Operation) bool {
	switch op {
	case OpUpload, OpStatus, OpResolve:
		return true
	}
	return false
}

func (jsl *JustStreamLive) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	body, contentType, err := multipartPayload("file", req.Filename, req.Content, nil)
	if err != nil {
		return nil, &UploadError{Platform: PlatformJustStreamLive, Reason: fmt.Sprintf("encode payload: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, jsl.api()+"/videos/upload", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	return jsl.finishUpload(httpReq)
}

// MirrorFromURL asks juststream.live to fetch and re-host the video behind
// srcURL. The source must be a directly downloadable video.
func (jsl *JustStreamLive) MirrorFromURL(ctx context.Context, srcURL string) (*UploadResult, error) {
	form := url.Values{"url": {srcURL}}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		jsl.api()+"/videos/upload-from-url", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return jsl.finishUpload(httpReq)
}

func (jsl *JustStreamLive) finishUpload(httpReq *http.Request) (*UploadResult, error) {
	resp, err := jsl.t.do(PlatformJustStreamLive, OpUpload, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformJustStreamLive, OpUpload, resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{Platform: PlatformJustStreamLive, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}

	id := gjson.GetBytes(raw, "id").String()
	if id == "" {
		return nil, &UploadError{Platform: PlatformJustStreamLive, HTTPStatus: resp.StatusCode, Reason: "response missing video id"}
	}
	return &UploadResult{Platform: PlatformJustStreamLive, ID: id}, nil
}

func (jsl *JustStreamLive) Status(ctx context.Context, id string) (*StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		jsl.api()+"/videos/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := jsl.t.do(PlatformJustStreamLive, OpStatus, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformJustStreamLive, OpStatus, resp)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &StatusError{Platform: PlatformJustStreamLive, ID: id, HTTPStatus: resp.StatusCode, Reason: "video not found"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &TransportError{Platform: PlatformJustStreamLive, Op: OpStatus,
			Err: fmt.Errorf("unexpected http status %d: %s", resp.StatusCode, snippet(raw))}
	}

	result := &StatusResult{Platform: PlatformJustStreamLive, ID: id}

	switch strings.ToUpper(gjson.GetBytes(raw, "status").String()) {
	case "COMPLETED", "COMPLETE", "READY":
		result.State = StateReady
		result.URL = jsl.base() + "/" + id
	case "FAILED", "ERROR":
		result.State = StateFailed
	default:
		// UPLOADING, QUEUED, ENCODING.
		result.State = StatePending
	}
	return result, nil
}

func (jsl *JustStreamLive) Resolve(ctx context.Context, id string) (string, error) {
	st, err := jsl.Status(ctx, id)
	if err != nil {
		return "", err
	}
	if st.State != StateReady {
		return "", &NotReadyError{Platform: PlatformJustStreamLive, ID: id}
	}
	return st.URL, nil
}

func (*JustStreamLive) Delete(ctx context.Context, id string) error {
	return &UnsupportedOperationError{Platform: PlatformJustStreamLive, Op: OpDelete}
}
