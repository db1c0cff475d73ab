package exvhp

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/samber/lo"
)

type options struct {
	httpClient    Doer
	userAgent     string
	imgurClientID string
	streamableVer string
}

// Option configures a Client or a standalone adapter.
type Option func(*options)

// WithHTTPClient injects the HTTP transport every adapter sends requests
// through. Defaults to http.DefaultClient.
func WithHTTPClient(d Doer) Option {
	return func(o *options) { o.httpClient = d }
}

// WithUserAgent overrides the User-Agent applied to requests that set none.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithImgurClientID overrides the anonymous web client id used for Imgur
// requests.
func WithImgurClientID(id string) Option {
	return func(o *options) { o.imgurClientID = id }
}

// WithStreamableVersion overrides the frontend build version sent when
// reserving a Streamable upload shortcode.
func WithStreamableVersion(v string) Option {
	return func(o *options) { o.streamableVer = v }
}

func newOptions(opts []Option) options {
	o := options{
		httpClient:    http.DefaultClient,
		userAgent:     defaultUserAgent,
		imgurClientID: DefaultImgurClientID,
		streamableVer: streamableFrontendVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Client is the facade over all platform adapters. It holds no per-call
// state and is safe to share across goroutines. Errors returned by adapters
// are passed through unchanged; the client never retries.
type Client struct {
	hosts map[Platform]Host
	jsl   *JustStreamLive
}

// New builds a Client with one adapter per supported platform, all sharing
// one transport.
func New(opts ...Option) *Client {
	o := newOptions(opts)
	t := &transport{client: o.httpClient, userAgent: o.userAgent}

	jsl := &JustStreamLive{t: t}
	c := &Client{
		hosts: map[Platform]Host{
			PlatformImgur:          &Imgur{t: t, clientID: o.imgurClientID},
			PlatformJustStreamLive: jsl,
			PlatformStreamable:     &Streamable{t: t, s3: awsS3Uploader{}, version: o.streamableVer},
			PlatformStreamff:       &Streamff{t: t},
			PlatformStreamja:       &Streamja{t: t},
			PlatformStreamwo:       &Streamwo{t: t},
		},
		jsl: jsl,
	}
	return c
}

// Host returns the adapter for p, for platform-specific operations beyond
// the common four.
func (c *Client) Host(p Platform) (Host, error) {
	h, ok := c.hosts[p]
	if !ok {
		return nil, fmt.Errorf("unsupported platform %q", p)
	}
	return h, nil
}

// Platforms lists the supported platforms in stable order.
func (c *Client) Platforms() []Platform {
	ps := lo.Keys(c.hosts)
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

// Supports reports whether platform p implements op.
func (c *Client) Supports(p Platform, op Operation) (bool, error) {
	h, err := c.Host(p)
	if err != nil {
		return false, err
	}
	return h.Supports(op), nil
}

// Upload sends the payload to platform p.
func (c *Client) Upload(ctx context.Context, p Platform, req *UploadRequest) (*UploadResult, error) {
	h, err := c.Host(p)
	if err != nil {
		return nil, err
	}
	return h.Upload(ctx, req)
}

// Status re-queries platform p for the processing state of id.
func (c *Client) Status(ctx context.Context, p Platform, id string) (*StatusResult, error) {
	h, err := c.Host(p)
	if err != nil {
		return nil, err
	}
	return h.Status(ctx, id)
}

// Resolve returns the direct playback URL of id on platform p.
func (c *Client) Resolve(ctx context.Context, p Platform, id string) (string, error) {
	h, err := c.Host(p)
	if err != nil {
		return "", err
	}
	return h.Resolve(ctx, id)
}

// Delete removes id from platform p, if the platform supports deletion.
func (c *Client) Delete(ctx context.Context, p Platform, id string) error {
	h, err := c.Host(p)
	if err != nil {
		return err
	}
	return h.Delete(ctx, id)
}

// MirrorFromURL re-hosts the video behind url on JustStreamLive.
func (c *Client) MirrorFromURL(ctx context.Context, url string) (*UploadResult, error) {
	return c.jsl.MirrorFromURL(ctx, url)
}

// Mirror re-hosts a video already uploaded to platform p on JustStreamLive
// by resolving its playback URL first. The source video must be ready.
func (c *Client) Mirror(ctx context.Context, p Platform, id string) (*UploadResult, error) {
	playbackURL, err := c.Resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return c.jsl.MirrorFromURL(ctx, playbackURL)
}
