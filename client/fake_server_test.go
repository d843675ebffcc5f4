package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeSite serves share pages, media, and side assets for a set of ids.
type fakeSite struct {
	srv *httptest.Server

	mu         sync.Mutex
	media      map[string][]byte
	segmented  map[string]bool
	missing    map[string]bool
	transcript map[string]string
	failFirst  map[string]int
	pageHits   map[string]int
	mediaHits  map[string]int
	mediaReqs  []*http.Request
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	f := &fakeSite{
		media:      map[string][]byte{},
		segmented:  map[string]bool{},
		missing:    map[string]bool{},
		transcript: map[string]string{},
		failFirst:  map[string]int{},
		pageHits:   map[string]int{},
		mediaHits:  map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/share/", f.servePage)
	mux.HandleFunc("/sessions/transcoded/", f.serveMedia)
	mux.HandleFunc("/sessions/thumbnails/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "image:"+strings.TrimPrefix(r.URL.Path, "/sessions/thumbnails/"))
	})
	mux.HandleFunc("/t/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/t/"), ".json")
		f.mu.Lock()
		body, ok := f.transcript[id]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("/c/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "WEBVTT\n\n00:00.000 --> 00:01.000\ncaption\n")
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/api/", http.NotFound)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSite) addProgressive(id string, size int) []byte {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte('a' + (i+len(id))%26)
	}
	f.mu.Lock()
	f.media[id] = payload
	f.mu.Unlock()
	return payload
}

func (f *fakeSite) addSegmented(id string) {
	f.mu.Lock()
	f.segmented[id] = true
	f.mu.Unlock()
}

func (f *fakeSite) setTranscript(id, payload string) {
	f.mu.Lock()
	f.transcript[id] = payload
	f.mu.Unlock()
}

func (f *fakeSite) mediaCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mediaHits[id]
}

func (f *fakeSite) pageCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageHits[id]
}

func (f *fakeSite) servePage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/share/")
	f.mu.Lock()
	f.pageHits[id]++
	missing := f.missing[id]
	segmented := f.segmented[id]
	_, hasTranscript := f.transcript[id]
	f.mu.Unlock()
	if missing {
		http.NotFound(w, r)
		return
	}

	entries := []string{
		fmt.Sprintf(`"RegularUserVideo:%s": {"__typename": "RegularUserVideo", "name": "Demo: %s take"}`, id, id),
	}
	if hasTranscript {
		entries = append(entries, fmt.Sprintf(
			`"VideoTranscriptDetails:%s": {"__typename": "VideoTranscriptDetails", "source_url": "%s/t/%s.json", "captions_source_url": "%s/c/%s.vtt"}`,
			id, f.srv.URL, id, f.srv.URL, id))
	}
	if segmented {
		entries = append(entries, fmt.Sprintf(
			`"VideoSource:%s": {"M3U8": {"url": "%s/hls/%s.m3u8", "credentials": {"Policy": "pol", "Signature": "sig", "KeyPairId": "kp"}}}`,
			id, f.srv.URL, id))
	}
	markup := ""
	if !segmented {
		markup = fmt.Sprintf(`<video src="%s/sessions/transcoded/%s.mp4"></video>`, f.srv.URL, id)
	}
	_, _ = fmt.Fprintf(w, `<!doctype html><html><head></head><body><script>window.__APOLLO_STATE__ = {%s};</script>%s</body></html>`,
		strings.Join(entries, ","), markup)
}

func (f *fakeSite) serveMedia(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/sessions/transcoded/"), ".mp4")
	f.mu.Lock()
	f.mediaHits[id]++
	f.mediaReqs = append(f.mediaReqs, r.Clone(r.Context()))
	payload, ok := f.media[id]
	fail := f.failFirst[id] > 0
	if fail {
		f.failFirst[id]--
	}
	f.mu.Unlock()
	switch {
	case !ok:
		http.NotFound(w, r)
	case fail:
		http.Error(w, "flaky", http.StatusInternalServerError)
	default:
		http.ServeContent(w, r, id+".mp4", time.Time{}, bytes.NewReader(payload))
	}
}

func (f *fakeSite) config(t *testing.T, mutate ...func(*Config)) Config {
	t.Helper()
	cfg := Config{
		HTTPClient:   f.srv.Client(),
		BaseURL:      f.srv.URL,
		CDNBaseURL:   f.srv.URL,
		OutputDir:    t.TempDir(),
		LedgerPath:   t.TempDir() + "/downloaded.log",
		Pacing:       -1,
		RetryInitial: time.Millisecond,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	return cfg
}

func (f *fakeSite) shareURL(id string) string {
	return "https://www.loom.com/share/" + id
}
