package exvhp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// sourceTagStatus implements Status for the hosts whose only public surface
// is the video page itself (streamja, streamwo): once encoding finished the
// page carries a <source src> tag with the playback URL. A 200 page without
// the tag is reported as Pending — these platforms expose no way to tell
// "still encoding" apart from "never existed" on that path.
func sourceTagStatus(ctx context.Context, t *transport, p Platform, baseURL, id string) (*StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.do(p, OpStatus, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &StatusError{Platform: p, ID: id, HTTPStatus: resp.StatusCode, Reason: "video not found"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &TransportError{Platform: p, Op: OpStatus,
			Err: fmt.Errorf("unexpected http status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &TransportError{Platform: p, Op: OpStatus, Err: err}
	}

	result := &StatusResult{Platform: p, ID: id}
	if src, ok := doc.Find("source").First().Attr("src"); ok && src != "" {
		result.State = StateReady
		result.URL = src
	} else {
		result.State = StatePending
	}
	return result, nil
}
