package exvhp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/tidwall/gjson"
)

const (
	streamableAPIURL  = "https://ajax.streamable.com"
	streamableBaseURL = "https://streamable.com"

	// Frontend build version the shortcode endpoint expects; tracks the
	// streamable.com web uploader.
	streamableFrontendVersion = "03db98af3545197e67cb96893d9e9d8729eee743"

	streamableUploadBucket = "streamables-upload"
	streamableUploadRegion = "us-east-1"
)

// streamableCredentials are the temporary AWS credentials the shortcode
// endpoint vends for one upload.
type streamableCredentials struct {
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
}

// s3Uploader performs the S3 leg of a Streamable upload. Split out so tests
// can stub the transfer.
type s3Uploader interface {
	upload(ctx context.Context, creds streamableCredentials, key string, body io.Reader) error
}

type awsS3Uploader struct{}

func (awsS3Uploader) upload(ctx context.Context, creds streamableCredentials, key string, body io.Reader) error {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(streamableUploadRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.accessKeyID, creds.secretAccessKey, creds.sessionToken)),
	)
	if err != nil {
		return err
	}

	bucket := streamableUploadBucket
	upl := manager.NewUploader(awss3.NewFromConfig(cfg))
	_, err = upl.Upload(ctx, &awss3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   body,
		ACL:    types.ObjectCannedACLPublicRead,
	})
	return err
}

// Streamable hosts videos on streamable.com. Upload is a four-step flow:
// reserve a shortcode (which vends temporary AWS credentials), register the
// file metadata, put the payload into Streamable's S3 intake bucket, then
// kick off transcoding. Processing is asynchronous; Resolve before readiness
// fails with ErrNotReady. No delete endpoint for anonymous uploads.
type Streamable struct {
	t       *transport
	s3      s3Uploader
	version string
	apiURL  string // overridable in tests
	baseURL string
}

func (s *Streamable) api() string {
	if s.apiURL != "" {
		return s.apiURL
	}
	return streamableAPIURL
}

func (s *Streamable) base() string {
	if s.baseURL != "" {
		return s.baseURL
	}
	return streamableBaseURL
}

// NewStreamable builds a standalone Streamable adapter.
func NewStreamable(opts ...Option) *Streamable {
	o := newOptions(opts)
	return &Streamable{
		t:       &transport{client: o.httpClient, userAgent: o.userAgent},
		s3:      awsS3Uploader{},
		version: o.streamableVer,
	}
}

func (*Streamable) Platform() Platform { return PlatformStreamable }

func (*Streamable) Supports(op Operation) bool {
	switch op {
	case OpUpload, OpStatus, OpResolve:
		return true
	}
	return false
}

func (s *Streamable) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req.Size <= 0 {
		return nil, &UploadError{Platform: PlatformStreamable, Reason: "payload size required"}
	}

	shortcode, creds, transcoderToken, err := s.reserveShortcode(ctx, req.Size)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = strings.TrimSuffix(req.Filename, path.Ext(req.Filename))
	}
	if err := s.updateMetadata(ctx, shortcode, req.Filename, req.Size, title); err != nil {
		return nil, err
	}

	if err := s.s3.upload(ctx, creds, "upload/"+shortcode, req.Content); err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Platform: PlatformStreamable, Op: OpUpload, Err: ctx.Err()}
		}
		return nil, &UploadError{Platform: PlatformStreamable, Reason: fmt.Sprintf("s3 transfer: %v", err)}
	}

	if err := s.startTranscode(ctx, shortcode, req.Size, transcoderToken); err != nil {
		return nil, err
	}

	return &UploadResult{Platform: PlatformStreamable, ID: shortcode}, nil
}

func (s *Streamable) reserveShortcode(ctx context.Context, size int64) (string, streamableCredentials, string, error) {
	var creds streamableCredentials

	u := fmt.Sprintf("%s/shortcode?version=%s&size=%d", s.api(), url.QueryEscape(s.version), size)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", creds, "", err
	}

	resp, err := s.t.do(PlatformStreamable, OpUpload, httpReq)
	if err != nil {
		return "", creds, "", err
	}
	raw, err := readBody(PlatformStreamable, OpUpload, resp)
	if err != nil {
		return "", creds, "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", creds, "", &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}

	shortcode := gjson.GetBytes(raw, "shortcode").String()
	creds = streamableCredentials{
		accessKeyID:     gjson.GetBytes(raw, "credentials.accessKeyId").String(),
		secretAccessKey: gjson.GetBytes(raw, "credentials.secretAccessKey").String(),
		sessionToken:    gjson.GetBytes(raw, "credentials.sessionToken").String(),
	}
	token := gjson.GetBytes(raw, "transcoder_options.token").String()

	if shortcode == "" || creds.accessKeyID == "" || token == "" {
		return "", creds, "", &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode,
			Reason: "shortcode response missing upload credentials"}
	}
	return shortcode, creds, token, nil
}

func (s *Streamable) updateMetadata(ctx context.Context, shortcode, filename string, size int64, title string) error {
	httpReq, err := newJSONRequest(ctx, http.MethodPut,
		s.api()+"/videos/"+url.PathEscape(shortcode)+"?purge=",
		map[string]any{
			"original_name": filename,
			"original_size": size,
			"title":         title,
			"upload_source": "web",
		})
	if err != nil {
		return err
	}

	resp, err := s.t.do(PlatformStreamable, OpUpload, httpReq)
	if err != nil {
		return err
	}
	raw, err := readBody(PlatformStreamable, OpUpload, resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}
	return nil
}

func (s *Streamable) startTranscode(ctx context.Context, shortcode string, size int64, token string) error {
	httpReq, err := newJSONRequest(ctx, http.MethodPost,
		s.api()+"/transcode/"+url.PathEscape(shortcode),
		map[string]any{
			"shortcode":     shortcode,
			"size":          size,
			"token":         token,
			"upload_source": "web",
			"url":           fmt.Sprintf("https://%s.s3.amazonaws.com/upload/%s", streamableUploadBucket, shortcode),
		})
	if err != nil {
		return err
	}

	resp, err := s.t.do(PlatformStreamable, OpUpload, httpReq)
	if err != nil {
		return err
	}
	raw, err := readBody(PlatformStreamable, OpUpload, resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}
	return nil
}

func (s *Streamable) Status(ctx context.Context, id string) (*StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.api()+"/videos/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.t.do(PlatformStreamable, OpStatus, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformStreamable, OpStatus, resp)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &StatusError{Platform: PlatformStreamable, ID: id, HTTPStatus: resp.StatusCode, Reason: "video not found"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &TransportError{Platform: PlatformStreamable, Op: OpStatus,
			Err: fmt.Errorf("unexpected http status %d: %s", resp.StatusCode, snippet(raw))}
	}

	result := &StatusResult{Platform: PlatformStreamable, ID: id}

	// 0 uploading, 1 processing, 2 ready, 3 failed.
	switch gjson.GetBytes(raw, "status").Int() {
	case 2:
		result.State = StateReady
		result.URL = gjson.GetBytes(raw, "files.mp4.url").String()
		if result.URL == "" {
			result.URL = s.base() + "/" + id
		}
	case 3:
		result.State = StateFailed
	default:
		result.State = StatePending
	}
	return result, nil
}

// Resolve scrapes the og:video:secure_url tag from the video's page, which
// streamable only publishes once transcoding finished.
func (s *Streamable) Resolve(ctx context.Context, id string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.base()+"/"+url.PathEscape(id), nil)
	if err != nil {
		return "", err
	}

	resp, err := s.t.do(PlatformStreamable, OpResolve, httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", &StatusError{Platform: PlatformStreamable, ID: id, HTTPStatus: resp.StatusCode, Reason: "video not found"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", &TransportError{Platform: PlatformStreamable, Op: OpResolve,
			Err: fmt.Errorf("unexpected http status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &TransportError{Platform: PlatformStreamable, Op: OpResolve, Err: err}
	}

	playbackURL, ok := doc.Find(`meta[property="og:video:secure_url"]`).First().Attr("content")
	if !ok || playbackURL == "" {
		return "", &NotReadyError{Platform: PlatformStreamable, ID: id}
	}
	return playbackURL, nil
}

func (*Streamable) Delete(ctx context.Context, id string) error {
	return &UnsupportedOperationError{Platform: PlatformStreamable, Op: OpDelete}
}

// Clip asks streamable to mirror the video behind srcURL into a new clip on
// the uploader's behalf: extract the downloadable stream, reserve a clip
// shortcode, then hand both to the transcoder.
func (s *Streamable) Clip(ctx context.Context, srcURL, title string) (*UploadResult, error) {
	streamURL, streamHeaders, err := s.extract(ctx, srcURL)
	if err != nil {
		return nil, err
	}

	shortcode, err := s.clipShortcode(ctx, srcURL, title)
	if err != nil {
		return nil, err
	}

	httpReq, err := newJSONRequest(ctx, http.MethodPost,
		s.api()+"/transcode/"+url.PathEscape(shortcode),
		map[string]any{
			"extractor":     clipExtractor(srcURL),
			"headers":       streamHeaders,
			"mute":          false,
			"shortcode":     shortcode,
			"thumb_offset":  nil,
			"title":         title,
			"upload_source": "clip",
			"url":           streamURL,
		})
	if err != nil {
		return nil, err
	}

	resp, err := s.t.do(PlatformStreamable, OpUpload, httpReq)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(PlatformStreamable, OpUpload, resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}
	return &UploadResult{Platform: PlatformStreamable, ID: shortcode}, nil
}

func (s *Streamable) extract(ctx context.Context, srcURL string) (string, json.RawMessage, error) {
	u := s.api() + "/extract?url=" + url.QueryEscape(srcURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", nil, err
	}

	resp, err := s.t.do(PlatformStreamable, OpUpload, httpReq)
	if err != nil {
		return "", nil, err
	}
	raw, err := readBody(PlatformStreamable, OpUpload, resp)
	if err != nil {
		return "", nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}
	if e := gjson.GetBytes(raw, "error"); e.Exists() && e.Type != gjson.Null {
		return "", nil, &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode, Reason: e.String()}
	}

	streamURL := gjson.GetBytes(raw, "url").String()
	if streamURL == "" {
		return "", nil, &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode,
			Reason: "extract response missing stream url"}
	}

	var headers json.RawMessage = []byte("{}")
	if h := gjson.GetBytes(raw, "headers"); h.Exists() {
		headers = json.RawMessage(h.Raw)
	}
	return streamURL, headers, nil
}

func (s *Streamable) clipShortcode(ctx context.Context, srcURL, title string) (string, error) {
	httpReq, err := newJSONRequest(ctx, http.MethodPost, s.api()+"/videos",
		map[string]any{
			"extract_id":    path.Base(srcURL),
			"extractor":     clipExtractor(srcURL),
			"source":        srcURL,
			"status":        1,
			"title":         title,
			"upload_source": "clip",
		})
	if err != nil {
		return "", err
	}

	resp, err := s.t.do(PlatformStreamable, OpUpload, httpReq)
	if err != nil {
		return "", err
	}
	raw, err := readBody(PlatformStreamable, OpUpload, resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode, Reason: snippet(raw)}
	}

	shortcode := gjson.GetBytes(raw, "shortcode").String()
	if shortcode == "" {
		return "", &UploadError{Platform: PlatformStreamable, HTTPStatus: resp.StatusCode,
			Reason: "clip response missing shortcode"}
	}
	return shortcode, nil
}

func clipExtractor(srcURL string) string {
	if u, err := url.Parse(srcURL); err == nil && strings.HasSuffix(u.Hostname(), "streamable.com") {
		return "streamable"
	}
	return "generic"
}
