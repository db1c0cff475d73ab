package exvhp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const streamjaBaseURL = "https://streamja.com"

// Streamja hosts videos on streamja.com. Upload reserves a short id first,
// then posts the file against it. Processing is asynchronous; the public
// video page carries a <source> tag once playable, and Resolve before that
// fails with ErrNotReady. No delete endpoint.
type Streamja struct {
	t       *transport
	baseURL string // overridable in tests
}

func (sj *Streamja) base() string {
	if sj.baseURL != "" {
		return sj.baseURL
	}
	return streamjaBaseURL
}

// NewStreamja builds a standalone Streamja adapter.
func NewStreamja(opts ...Option) *Streamja {
	o := newOptions(opts)
	return &Streamja{t: &transport{client: o.httpClient, userAgent: o.userAgent}}
}

func (*Streamja) Platform() Platform { return PlatformStreamja }

func (*Streamja) Supports(op Operation) bool {
	switch op {
	case OpUpload, OpStatus, OpResolve:
		return true
	}
	return false
}

func (sj *Streamja) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	id, err := sj.reserveShortID(ctx)
	if err != nil {
		return nil, err
	}

	body, contentType, err := multipartPayload("file", req.Filename, req.Content, nil)
	if err != nil {
		return nil, &UploadError{Platform: PlatformStreamja, Reason: fmt.Sprintf("encode payload: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		sj.base()+"/upload.php?shortId="+url.QueryEscape(id), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := sj.t.do(PlatformStreamja, OpUpload, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformStreamja, OpUpload, resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{Platform: PlatformStreamja, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}
	if e := gjson.GetBytes(raw, "error"); e.Exists() && e.String() != "" {
		return nil, &UploadError{Platform: PlatformStreamja, HTTPStatus: resp.StatusCode, Reason: e.String()}
	}

	return &UploadResult{Platform: PlatformStreamja, ID: id}, nil
}

func (sj *Streamja) reserveShortID(ctx context.Context) (string, error) {
	form := url.Values{"new": {"1"}}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		sj.base()+"/shortId.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := sj.t.do(PlatformStreamja, OpUpload, httpReq)
	if err != nil {
		return "", err
	}
	raw, err := readBody(PlatformStreamja, OpUpload, resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{Platform: PlatformStreamja, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}
	if e := gjson.GetBytes(raw, "error"); e.Exists() && e.String() != "" {
		return "", &UploadError{Platform: PlatformStreamja, HTTPStatus: resp.StatusCode, Reason: e.String()}
	}

	id := gjson.GetBytes(raw, "shortId").String()
	if id == "" {
		return "", &UploadError{Platform: PlatformStreamja, HTTPStatus: resp.StatusCode, Reason: "response missing shortId"}
	}
	return id, nil
}

func (sj *Streamja) Status(ctx context.Context, id string) (*StatusResult, error) {
	return sourceTagStatus(ctx, sj.t, PlatformStreamja, sj.base(), id)
}

func (sj *Streamja) Resolve(ctx context.Context, id string) (string, error) {
	st, err := sj.Status(ctx, id)
	if err != nil {
		return "", err
	}
	if st.State != StateReady {
		return "", &NotReadyError{Platform: PlatformStreamja, ID: id}
	}
	return st.URL, nil
}

func (*Streamja) Delete(ctx context.Context, id string) error {
	return &UnsupportedOperationError{Platform: PlatformStreamja, Op: OpDelete}
}
