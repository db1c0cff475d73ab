package exvhp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// stubHost is a hand-written Host with function fields, so each test wires
// only the calls it cares about.
type stubHost struct {
	platform  Platform
	uploadFn  func(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	statusFn  func(ctx context.Context, id string) (*StatusResult, error)
	resolveFn func(ctx context.Context, id string) (string, error)
	deleteFn  func(ctx context.Context, id string) error
	supports  map[Operation]bool
}

func (s *stubHost) Platform() Platform { return s.platform }

func (s *stubHost) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	return s.uploadFn(ctx, req)
}

func (s *stubHost) Status(ctx context.Context, id string) (*StatusResult, error) {
	return s.statusFn(ctx, id)
}

func (s *stubHost) Resolve(ctx context.Context, id string) (string, error) {
	return s.resolveFn(ctx, id)
}

func (s *stubHost) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

func (s *stubHost) Supports(op Operation) bool { return s.supports[op] }

func TestClient_Platforms(t *testing.T) {
	c := New()

	got := c.Platforms()
	want := []Platform{
		PlatformImgur, PlatformJustStreamLive, PlatformStreamable,
		PlatformStreamff, PlatformStreamja, PlatformStreamwo,
	}

	if len(got) != len(want) {
		t.Fatalf("Platforms() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Platforms()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClient_UnknownPlatform(t *testing.T) {
	c := New()
	ctx := context.Background()

	if _, err := c.Upload(ctx, Platform("vimeo"), &UploadRequest{}); err == nil {
		t.Error("Upload on unknown platform succeeded")
	}
	if _, err := c.Status(ctx, Platform("vimeo"), "id"); err == nil {
		t.Error("Status on unknown platform succeeded")
	}
	if _, err := c.Supports(Platform("vimeo"), OpDelete); err == nil {
		t.Error("Supports on unknown platform succeeded")
	}
}

func TestClient_SupportsMatrix(t *testing.T) {
	c := New()

	tests := []struct {
		platform Platform
		op       Operation
		want     bool
	}{
		{PlatformImgur, OpDelete, true},
		{PlatformJustStreamLive, OpDelete, false},
		{PlatformStreamable, OpDelete, false},
		{PlatformStreamff, OpDelete, false},
		{PlatformStreamja, OpDelete, false},
		{PlatformStreamwo, OpDelete, false},
		{PlatformStreamable, OpUpload, true},
		{PlatformStreamwo, OpResolve, true},
	}

	for _, tt := range tests {
		got, err := c.Supports(tt.platform, tt.op)
		if err != nil {
			t.Fatalf("Supports(%s, %s): %v", tt.platform, tt.op, err)
		}
		if got != tt.want {
			t.Errorf("Supports(%s, %s) = %v, want %v", tt.platform, tt.op, got, tt.want)
		}
	}
}

func TestClient_DispatchesToSelectedAdapter(t *testing.T) {
	var uploaded, statused Platform

	hosts := map[Platform]Host{}
	for _, p := range []Platform{PlatformImgur, PlatformStreamja} {
		p := p
		hosts[p] = &stubHost{
			platform: p,
			uploadFn: func(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
				uploaded = p
				return &UploadResult{Platform: p, ID: "id-" + string(p)}, nil
			},
			statusFn: func(ctx context.Context, id string) (*StatusResult, error) {
				statused = p
				return &StatusResult{Platform: p, ID: id, State: StatePending}, nil
			},
		}
	}
	c := &Client{hosts: hosts}
	ctx := context.Background()

	res, err := c.Upload(ctx, PlatformStreamja, &UploadRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if uploaded != PlatformStreamja || res.ID != "id-streamja" {
		t.Errorf("upload dispatched to %q, result %+v", uploaded, res)
	}

	if _, err := c.Status(ctx, PlatformImgur, "abc"); err != nil {
		t.Fatal(err)
	}
	if statused != PlatformImgur {
		t.Errorf("status dispatched to %q", statused)
	}
}

func TestClient_PassesErrorsThroughUnchanged(t *testing.T) {
	want := &StatusError{Platform: PlatformStreamff, ID: "gone", Reason: "video not found"}
	c := &Client{hosts: map[Platform]Host{
		PlatformStreamff: &stubHost{
			platform: PlatformStreamff,
			statusFn: func(ctx context.Context, id string) (*StatusResult, error) {
				return nil, want
			},
		},
	}}

	_, err := c.Status(context.Background(), PlatformStreamff, "gone")
	if err != want {
		t.Errorf("facade altered the adapter error: got %v", err)
	}
}

func TestClient_ConcurrentStatusPollsAreConsistent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"videoLink":"/uploads/ff1234.mp4"}`)
	}))
	defer srv.Close()

	sf := newTestStreamff(srv)
	c := &Client{hosts: map[Platform]Host{PlatformStreamff: sf}}

	const callers = 16
	results := make([]*StatusResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Status(context.Background(), PlatformStreamff, "ff1234")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].State != results[0].State || results[i].URL != results[0].URL {
			t.Errorf("caller %d saw %+v, caller 0 saw %+v", i, results[i], results[0])
		}
	}
}

func TestClient_Mirror(t *testing.T) {
	// Source platform resolves to a playback URL; juststreamlive receives
	// a mirror request for exactly that URL.
	var mirrored string
	jslSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/upload-from-url" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		mirrored = r.PostForm.Get("url")
		fmt.Fprint(w, `{"id":"jslmir03"}`)
	}))
	defer jslSrv.Close()

	jsl := newTestJSL(jslSrv)
	c := &Client{
		hosts: map[Platform]Host{
			PlatformJustStreamLive: jsl,
			PlatformStreamwo: &stubHost{
				platform: PlatformStreamwo,
				resolveFn: func(ctx context.Context, id string) (string, error) {
					return "https://files.streamwo.com/" + id + ".mp4", nil
				},
			},
		},
		jsl: jsl,
	}

	res, err := c.Mirror(context.Background(), PlatformStreamwo, "abc1234")
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "jslmir03" {
		t.Errorf("ID = %q", res.ID)
	}
	if mirrored != "https://files.streamwo.com/abc1234.mp4" {
		t.Errorf("mirrored url = %q", mirrored)
	}
}

func TestClient_MirrorSourceNotReady(t *testing.T) {
	jsl := NewJustStreamLive()
	c := &Client{
		hosts: map[Platform]Host{
			PlatformJustStreamLive: jsl,
			PlatformStreamja: &stubHost{
				platform: PlatformStreamja,
				resolveFn: func(ctx context.Context, id string) (string, error) {
					return "", &NotReadyError{Platform: PlatformStreamja, ID: id}
				},
			},
		},
		jsl: jsl,
	}

	_, err := c.Mirror(context.Background(), PlatformStreamja, "ja5678")
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestClient_OptionsReachAdapters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "custom-agent/3.0" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.URL.Query().Get("client_id"); got != "myclientid" {
			t.Errorf("client_id = %q", got)
		}
		fmt.Fprint(w, `{"data":{"id":"AbCd123","deletehash":"d","link":"https://i.imgur.com/AbCd123.mp4"},"success":true}`)
	}))
	defer srv.Close()

	c := New(
		WithHTTPClient(srv.Client()),
		WithUserAgent("custom-agent/3.0"),
		WithImgurClientID("myclientid"),
	)
	// Point the imgur adapter at the test server.
	c.hosts[PlatformImgur].(*Imgur).apiURL = srv.URL

	_, err := c.Upload(context.Background(), PlatformImgur, &UploadRequest{
		Content:  bytes.NewReader([]byte("video data")),
		Filename: "clip.mp4",
	})
	if err != nil {
		t.Fatal(err)
	}
}
