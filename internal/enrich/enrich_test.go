package enrich

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hazyhaar/tilewalk/record"
)

func TestImageFetcher_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img-bytes"))
	}))
	defer srv.Close()

	f := &ImageFetcher{Client: srv.Client()}
	got := f.Fetch(context.Background(), srv.URL+"/pic.jpg")
	want := base64.StdEncoding.EncodeToString([]byte("img-bytes"))
	if got != want {
		t.Fatalf("Fetch = %q, want %q", got, want)
	}
}

func TestImageFetcher_FallsBackWithoutOriginHeaders(t *testing.T) {
	var plainServed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") != "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		plainServed.Store(true)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := &ImageFetcher{Client: srv.Client(), Referer: "https://example.com"}
	if got := f.Fetch(context.Background(), srv.URL); got == "" {
		t.Fatal("expected fallback fetch to succeed")
	}
	if !plainServed.Load() {
		t.Fatal("second attempt should omit origin headers")
	}
}

func TestImageFetcher_FailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := &ImageFetcher{Client: srv.Client()}
	if got := f.Fetch(context.Background(), srv.URL); got != "" {
		t.Fatalf("Fetch = %q, want empty on failure", got)
	}
	if got := f.Fetch(context.Background(), ""); got != "" {
		t.Fatal("empty URL should yield empty result")
	}
}

func TestFaceClient_Detect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("api_key") != "k" || r.PostForm.Get("api_secret") != "s" {
			t.Errorf("credentials not posted: %v", r.PostForm)
		}
		if r.PostForm.Get("image_base64") != "aW1n" {
			t.Errorf("image_base64 = %q", r.PostForm.Get("image_base64"))
		}
		w.Write([]byte(`{"faces":[{"face_token":"t1"}]}`))
	}))
	defer srv.Close()

	c := &FaceClient{Endpoint: srv.URL, Key: "k", Secret: "s", Client: srv.Client()}
	got := c.Detect(context.Background(), "aW1n")
	if string(got) != `{"faces":[{"face_token":"t1"}]}` {
		t.Fatalf("Detect = %s", got)
	}
}

func TestFaceClient_NilOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusForbidden)
	}))
	defer srv.Close()

	c := &FaceClient{Endpoint: srv.URL, Key: "k", Secret: "s", Client: srv.Client()}
	if got := c.Detect(context.Background(), "aW1n"); got != nil {
		t.Fatalf("Detect = %s, want nil on non-2xx", got)
	}
	if got := c.Detect(context.Background(), ""); got != nil {
		t.Fatal("empty image should not call the API")
	}
	if got := (&FaceClient{Endpoint: srv.URL}).Detect(context.Background(), "aW1n"); got != nil {
		t.Fatal("missing credentials should not call the API")
	}
}

func TestEnricher_PerRecordIsolation(t *testing.T) {
	recs := []record.ProfileRecord{
		{ProfileURL: "/profile/a/", ImageURL: "http://cdn/a.jpg"},
		{ProfileURL: "/profile/b/", ImageURL: "http://cdn/broken.jpg"},
		{ProfileURL: "/profile/c/"},
	}
	e := &Enricher{
		Fetch: func(_ context.Context, imageURL string) string {
			if imageURL == "http://cdn/broken.jpg" {
				return ""
			}
			return "b64:" + imageURL
		},
		Detect: func(_ context.Context, imageBase64 string) json.RawMessage {
			return json.RawMessage(`{"for":"` + imageBase64 + `"}`)
		},
		Concurrency: 2,
	}
	if err := e.Run(context.Background(), recs); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if recs[0].ImageBase64 != "b64:http://cdn/a.jpg" {
		t.Errorf("record a image = %q", recs[0].ImageBase64)
	}
	if string(recs[0].FaceResult) != `{"for":"b64:http://cdn/a.jpg"}` {
		t.Errorf("record a face = %s", recs[0].FaceResult)
	}
	if recs[1].ImageBase64 != "" || recs[1].FaceResult != nil {
		t.Errorf("failed download should leave both fields empty: %q %s", recs[1].ImageBase64, recs[1].FaceResult)
	}
	if recs[2].ImageBase64 != "" || recs[2].FaceResult != nil {
		t.Errorf("record without image URL should stay untouched")
	}
}

func TestEnricher_KeepsExistingValues(t *testing.T) {
	recs := []record.ProfileRecord{
		{ImageURL: "http://cdn/a.jpg", ImageBase64: "inpage-encoded"},
		{ImageBase64: "no-url-but-encoded"},
		{ImageURL: "http://cdn/c.jpg", ImageBase64: "already-done", FaceResult: json.RawMessage(`{"cached":true}`)},
	}
	var fetches atomic.Int32
	e := &Enricher{
		Fetch: func(context.Context, string) string {
			fetches.Add(1)
			return ""
		},
		Detect: func(_ context.Context, imageBase64 string) json.RawMessage {
			return json.RawMessage(`{"for":"` + imageBase64 + `"}`)
		},
	}
	if err := e.Run(context.Background(), recs); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fetches.Load() != 0 {
		t.Errorf("records already encoded must not be re-fetched, got %d fetches", fetches.Load())
	}
	if recs[0].ImageBase64 != "inpage-encoded" {
		t.Errorf("record a image = %q, want the pre-encoded value kept", recs[0].ImageBase64)
	}
	if string(recs[0].FaceResult) != `{"for":"inpage-encoded"}` {
		t.Errorf("record a face = %s", recs[0].FaceResult)
	}
	if string(recs[1].FaceResult) != `{"for":"no-url-but-encoded"}` {
		t.Errorf("record without URL but with an encoded image should still be detected: %s", recs[1].FaceResult)
	}
	if string(recs[2].FaceResult) != `{"cached":true}` {
		t.Errorf("existing face result must survive: %s", recs[2].FaceResult)
	}
}

func TestEnricher_NoStagesIsNoop(t *testing.T) {
	recs := []record.ProfileRecord{{ImageURL: "http://cdn/a.jpg"}}
	if err := (&Enricher{}).Run(context.Background(), recs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if recs[0].ImageBase64 != "" {
		t.Fatal("no stages configured, nothing should change")
	}
}

func TestEnricher_BoundedConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	recs := make([]record.ProfileRecord, 16)
	for i := range recs {
		recs[i].ImageURL = "http://cdn/x.jpg"
	}
	e := &Enricher{
		Fetch: func(context.Context, string) string {
			cur := active.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			active.Add(-1)
			return "b"
		},
		Concurrency: 3,
	}
	if err := e.Run(context.Background(), recs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency = %d, want <= 3", peak.Load())
	}
}
