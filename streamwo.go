package exvhp

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
)

const (
	streamwoBaseURL    = "https://streamwo.com"
	streamwoIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	streamwoIDLength   = 7
)

// Streamwo hosts videos on streamwo.com. The client picks the upload id
// itself (a random 7-character alphanumeric, the same scheme the site's own
// uploader uses) and posts the file against it. Processing is asynchronous;
// the public video page carries a <source> tag once playable, and Resolve
// before that fails with ErrNotReady. No delete endpoint.
type Streamwo struct {
	t       *transport
	baseURL string // overridable in tests
}

func (sw *Streamwo) base() string {
	if sw.baseURL != "" {
		return sw.baseURL
	}
	return streamwoBaseURL
}

// NewStreamwo builds a standalone Streamwo adapter.
func NewStreamwo(opts ...Option) *Streamwo {
	o := newOptions(opts)
	return &Streamwo{t: &transport{client: o.httpClient, userAgent: o.userAgent}}
}

func (*Streamwo) Platform() Platform { return PlatformStreamwo }

func (*Streamwo) Supports(op Operation) bool {
	switch op {
	case OpUpload, OpStatus, OpResolve:
		return true
	}
	return false
}

func streamwoUploadID() string {
	b := make([]byte, streamwoIDLength)
	for i := range b {
		b[i] = streamwoIDAlphabet[rand.Intn(len(streamwoIDAlphabet))]
	}
	return string(b)
}

func (sw *Streamwo) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	id := streamwoUploadID()

	body, contentType, err := multipartPayload("file", req.Filename, req.Content, nil)
	if err != nil {
		return nil, &UploadError{Platform: PlatformStreamwo, Reason: fmt.Sprintf("encode payload: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		sw.base()+"/index.php?action=upload&id="+url.QueryEscape(id), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := sw.t.do(PlatformStreamwo, OpUpload, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformStreamwo, OpUpload, resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{Platform: PlatformStreamwo, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}
	return &UploadResult{Platform: PlatformStreamwo, ID: id}, nil
}

func (sw *Streamwo) Status(ctx context.Context, id string) (*StatusResult, error) {
	return sourceTagStatus(ctx, sw.t, PlatformStreamwo, sw.base(), id)
}

func (sw *Streamwo) Resolve(ctx context.Context, id string) (string, error) {
	st, err := sw.Status(ctx, id)
	if err != nil {
		return "", err
	}
	if st.State != StateReady {
		return "", &NotReadyError{Platform: PlatformStreamwo, ID: id}
	}
	return st.URL, nil
}

func (*Streamwo) Delete(ctx context.Context, id string) error {
	return &UnsupportedOperationError{Platform: PlatformStreamwo, Op: OpDelete}
}
