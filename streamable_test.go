package exvhp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeS3Uploader records the transfer instead of talking to S3.
type fakeS3Uploader struct {
	creds streamableCredentials
	key   string
	data  []byte
	err   error
}

func (f *fakeS3Uploader) upload(ctx context.Context, creds streamableCredentials, key string, body io.Reader) error {
	if f.err != nil {
		return f.err
	}
	f.creds = creds
	f.key = key
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.data = data
	return nil
}

func newTestStreamable(srv *httptest.Server, s3 s3Uploader) *Streamable {
	if s3 == nil {
		s3 = &fakeS3Uploader{}
	}
	return &Streamable{
		t:       &transport{client: srv.Client(), userAgent: defaultUserAgent},
		s3:      s3,
		version: streamableFrontendVersion,
		apiURL:  srv.URL,
		baseURL: srv.URL,
	}
}

func TestStreamable_Upload(t *testing.T) {
	var metadataBody, transcodeBody map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/shortcode", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("size") != "10" {
			t.Errorf("size = %q", r.URL.Query().Get("size"))
		}
		if r.URL.Query().Get("version") != streamableFrontendVersion {
			t.Errorf("version = %q", r.URL.Query().Get("version"))
		}
		fmt.Fprint(w, `{
			"shortcode": "sc123",
			"credentials": {"accessKeyId": "AKID", "secretAccessKey": "SECRET", "sessionToken": "TOKEN"},
			"transcoder_options": {"token": "ttok"}
		}`)
	})
	mux.HandleFunc("/videos/sc123", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("metadata method = %s", r.Method)
		}
		if _, ok := r.URL.Query()["purge"]; !ok {
			t.Error("metadata request missing purge param")
		}
		if err := json.NewDecoder(r.Body).Decode(&metadataBody); err != nil {
			t.Fatalf("decode metadata: %v", err)
		}
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/transcode/sc123", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&transcodeBody); err != nil {
			t.Fatalf("decode transcode: %v", err)
		}
		fmt.Fprint(w, `{}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	s3 := &fakeS3Uploader{}
	s := newTestStreamable(srv, s3)

	res, err := s.Upload(context.Background(), &UploadRequest{
		Content:  bytes.NewReader([]byte("video data")),
		Filename: "clip.mp4",
		Size:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.ID != "sc123" {
		t.Errorf("ID = %q", res.ID)
	}

	if s3.key != "upload/sc123" {
		t.Errorf("s3 key = %q", s3.key)
	}
	if s3.creds.accessKeyID != "AKID" || s3.creds.sessionToken != "TOKEN" {
		t.Errorf("s3 credentials not forwarded: %+v", s3.creds)
	}
	if string(s3.data) != "video data" {
		t.Errorf("s3 payload = %q", s3.data)
	}

	if metadataBody["original_name"] != "clip.mp4" || metadataBody["original_size"] != float64(10) {
		t.Errorf("metadata = %v", metadataBody)
	}
	// Title defaults to the filename stem.
	if metadataBody["title"] != "clip" {
		t.Errorf("title = %v", metadataBody["title"])
	}

	if transcodeBody["token"] != "ttok" || transcodeBody["shortcode"] != "sc123" {
		t.Errorf("transcode = %v", transcodeBody)
	}
}

func TestStreamable_UploadRequiresSize(t *testing.T) {
	s := NewStreamable()

	_, err := s.Upload(context.Background(), &UploadRequest{
		Content:  bytes.NewReader([]byte("video data")),
		Filename: "clip.mp4",
	})

	var uerr *UploadError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UploadError, got %T (%v)", err, err)
	}
}

func TestStreamable_UploadS3Failure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/shortcode", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"shortcode": "sc123",
			"credentials": {"accessKeyId": "AKID", "secretAccessKey": "SECRET", "sessionToken": "TOKEN"},
			"transcoder_options": {"token": "ttok"}
		}`)
	})
	mux.HandleFunc("/videos/sc123", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestStreamable(srv, &fakeS3Uploader{err: errors.New("bucket unreachable")})

	_, err := s.Upload(context.Background(), &UploadRequest{
		Content:  bytes.NewReader([]byte("video data")),
		Filename: "clip.mp4",
		Size:     10,
	})

	var uerr *UploadError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UploadError, got %T (%v)", err, err)
	}
}

func TestStreamable_Status(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantState State
		wantURL   string
	}{
		{name: "uploading", body: `{"status":0}`, wantState: StatePending},
		{name: "processing", body: `{"status":1}`, wantState: StatePending},
		{
			name:      "ready",
			body:      `{"status":2,"files":{"mp4":{"url":"https://cdn.example/video.mp4"}}}`,
			wantState: StateReady,
			wantURL:   "https://cdn.example/video.mp4",
		},
		{name: "failed", body: `{"status":3}`, wantState: StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			st, err := newTestStreamable(srv, nil).Status(context.Background(), "sc123")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if st.State != tt.wantState {
				t.Errorf("State = %q, want %q", st.State, tt.wantState)
			}
			if tt.wantURL != "" && st.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", st.URL, tt.wantURL)
			}
		})
	}
}

func TestStreamable_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		wantURL  string
		notFound bool
		wantErr  func(t *testing.T, err error)
	}{
		{
			name:    "ready page carries og tag",
			page:    `<html><head><meta property="og:video:secure_url" content="https://cdn.example/video.mp4"></head></html>`,
			wantURL: "https://cdn.example/video.mp4",
		},
		{
			name: "processing page lacks og tag",
			page: `<html><head><title>processing</title></head></html>`,
			wantErr: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNotReady) {
					t.Fatalf("expected ErrNotReady, got %v", err)
				}
			},
		},
		{
			name:     "unknown id",
			notFound: true,
			wantErr: func(t *testing.T, err error) {
				var serr *StatusError
				if !errors.As(err, &serr) {
					t.Fatalf("expected *StatusError, got %T (%v)", err, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.notFound {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				fmt.Fprint(w, tt.page)
			}))
			defer srv.Close()

			u, err := newTestStreamable(srv, nil).Resolve(context.Background(), "sc123")
			if tt.wantErr != nil {
				tt.wantErr(t, err)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u != tt.wantURL {
				t.Errorf("URL = %q, want %q", u, tt.wantURL)
			}
		})
	}
}

func TestStreamable_Clip(t *testing.T) {
	var clipBody, transcodeBody map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/extract", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://example.com/v/abc" {
			t.Errorf("extract url = %q", got)
		}
		fmt.Fprint(w, `{"url":"https://cdn.example/stream.mp4","headers":{"Referer":"https://example.com"}}`)
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&clipBody); err != nil {
			t.Fatalf("decode clip: %v", err)
		}
		fmt.Fprint(w, `{"shortcode":"clip42"}`)
	})
	mux.HandleFunc("/transcode/clip42", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&transcodeBody); err != nil {
			t.Fatalf("decode transcode: %v", err)
		}
		fmt.Fprint(w, `{}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := newTestStreamable(srv, nil).Clip(context.Background(), "https://example.com/v/abc", "mirrored")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ID != "clip42" {
		t.Errorf("ID = %q", res.ID)
	}

	if clipBody["extractor"] != "generic" || clipBody["source"] != "https://example.com/v/abc" {
		t.Errorf("clip body = %v", clipBody)
	}
	if transcodeBody["url"] != "https://cdn.example/stream.mp4" {
		t.Errorf("transcode url = %v", transcodeBody["url"])
	}
	hdrs, _ := transcodeBody["headers"].(map[string]any)
	if hdrs["Referer"] != "https://example.com" {
		t.Errorf("extract headers not forwarded: %v", transcodeBody["headers"])
	}
}

func TestClipExtractor(t *testing.T) {
	tests := []struct {
		srcURL string
		want   string
	}{
		{"https://streamable.com/abc123", "streamable"},
		{"https://www.streamable.com/abc123", "streamable"},
		{"https://streamja.com/abc123", "generic"},
		{"://bad url", "generic"},
	}

	for _, tt := range tests {
		if got := clipExtractor(tt.srcURL); got != tt.want {
			t.Errorf("clipExtractor(%q) = %q, want %q", tt.srcURL, got, tt.want)
		}
	}
}
