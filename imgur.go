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
	imgurAPIURL = "https://api.imgur.com"

	// DefaultImgurClientID is the anonymous client id the imgur.com web
	// uploader ships with. Override via WithImgurClientID to use your own
	// registered application.
	DefaultImgurClientID = "546c25a59c58ad7"
)

// Imgur uploads videos anonymously through the imgur.com web API. Readiness
// is usually synchronous: the playback URL is part of the upload response.
// Imgur is the only supported platform with a delete endpoint; deletion takes
// the deletehash returned in UploadResult.DeleteKey, not the public id.
type Imgur struct {
	t        *transport
	clientID string
	apiURL   string // overridable in tests
}

// NewImgur builds a standalone Imgur adapter.
func NewImgur(opts ...Option) *Imgur {
	o := newOptions(opts)
	return &Imgur{
		t:        &transport{client: o.httpClient, userAgent: o.userAgent},
		clientID: o.imgurClientID,
	}
}

func (*Imgur) Platform() Platform { return PlatformImgur }

func (*Imgur) Supports(op Operation) bool {
	switch op {
	case OpUpload, OpStatus, OpResolve, OpDelete:
		return true
	}
	return false
}

func (im *Imgur) api() string {
	if im.apiURL != "" {
		return im.apiURL
	}
	return imgurAPIURL
}

func (im *Imgur) endpoint(path string) string {
	return fmt.Sprintf("%s%s?client_id=%s", im.api(), path, url.QueryEscape(im.clientID))
}

func (im *Imgur) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if !strings.HasSuffix(strings.ToLower(req.Filename), ".mp4") {
		return nil, &UploadError{Platform: PlatformImgur, Reason: "only .mp4 uploads are accepted"}
	}

	fields := map[string]string{
		"type": "file",
		"name": req.Filename,
	}
	if req.Title != "" {
		fields["title"] = req.Title
	}

	body, contentType, err := multipartPayload("video", req.Filename, req.Content, fields)
	if err != nil {
		return nil, &UploadError{Platform: PlatformImgur, Reason: fmt.Sprintf("encode payload: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, im.endpoint("/3/image"), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := im.t.do(PlatformImgur, OpUpload, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformImgur, OpUpload, resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !gjson.GetBytes(raw, "success").Bool() {
		reason := gjson.GetBytes(raw, "data.error").String()
		if reason == "" {
			reason = snippet(raw)
		}
		return nil, &UploadError{Platform: PlatformImgur, HTTPStatus: resp.StatusCode, Reason: reason}
	}

	id := gjson.GetBytes(raw, "data.id").String()
	if id == "" {
		return nil, &UploadError{Platform: PlatformImgur, HTTPStatus: resp.StatusCode, Reason: "response missing media id"}
	}

	return &UploadResult{
		Platform:  PlatformImgur,
		ID:        id,
		DeleteKey: gjson.GetBytes(raw, "data.deletehash").String(),
		URL:       gjson.GetBytes(raw, "data.link").String(),
	}, nil
}

func (im *Imgur) Status(ctx context.Context, id string) (*StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, im.endpoint("/3/image/"+url.PathEscape(id)), nil)
	if err != nil {
		return nil, err
	}

	resp, err := im.t.do(PlatformImgur, OpStatus, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformImgur, OpStatus, resp)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &StatusError{Platform: PlatformImgur, ID: id, HTTPStatus: resp.StatusCode, Reason: "media not found"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &TransportError{Platform: PlatformImgur, Op: OpStatus,
			Err: fmt.Errorf("unexpected http status %d: %s", resp.StatusCode, snippet(raw))}
	}

	result := &StatusResult{Platform: PlatformImgur, ID: id}
	link := gjson.GetBytes(raw, "data.link").String()

	switch gjson.GetBytes(raw, "data.processing.status").String() {
	case "completed", "":
		if link == "" {
			result.State = StatePending
			break
		}
		result.State = StateReady
		result.URL = link
	case "failed":
		result.State = StateFailed
	default:
		// "pending" and anything imgur adds later.
		result.State = StatePending
	}
	return result, nil
}

func (im *Imgur) Resolve(ctx context.Context, id string) (string, error) {
	st, err := im.Status(ctx, id)
	if err != nil {
		return "", err
	}
	if st.State != StateReady {
		return "", &NotReadyError{Platform: PlatformImgur, ID: id}
	}
	return st.URL, nil
}

// Delete removes the media behind deleteKey (the deletehash from upload).
// A 404 means the media is already gone and is treated as success.
func (im *Imgur) Delete(ctx context.Context, deleteKey string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, im.endpoint("/3/image/"+url.PathEscape(deleteKey)), nil)
	if err != nil {
		return err
	}

	resp, err := im.t.do(PlatformImgur, OpDelete, httpReq)
	if err != nil {
		return err
	}
	raw, err := readBody(PlatformImgur, OpDelete, resp)
	if err != nil {
		return err
	}

	if (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return &DeleteError{Platform: PlatformImgur, ID: deleteKey, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
}
