package aps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bim-index-api/config"
	"bim-index-api/internal/apperror"
)

type fakeAPS struct {
	srv            *httptest.Server
	db             []byte
	manifestStatus string
	withDatabase   bool
	rangeRequests  int
	tokenRequests  int
	lastPath       string
}

func newFakeAPS(t *testing.T, db []byte) *fakeAPS {
	t.Helper()
	f := &fakeAPS{db: db, manifestStatus: "success", withDatabase: true}

	mux := http.NewServeMux()
	mux.HandleFunc("/authentication/v2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenRequests++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.lastPath = r.URL.Path
		switch {
		case strings.HasSuffix(r.URL.Path, "/manifest"):
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			child := `{"type":"resource","mime":"application/autodesk-svf","urn":"urn:svf"}`
			if f.withDatabase {
				child += `,{"type":"resource","mime":"application/autodesk-db","urn":"urn:db"}`
			}
			fmt.Fprintf(w, `{"urn":"abc","status":%q,"progress":"complete","derivatives":[{"type":"folder","children":[{"type":"geometry","children":[%s]}]}]}`, f.manifestStatus, child)
		case strings.HasSuffix(r.URL.Path, "/signedcookies"):
			http.SetCookie(w, &http.Cookie{Name: "CloudFront-Policy", Value: "p"})
			http.SetCookie(w, &http.Cookie{Name: "CloudFront-Signature", Value: "s"})
			fmt.Fprintf(w, `{"url":%q,"size":%d}`, f.srv.URL+"/cdn/model.db", len(f.db))
		case r.URL.Path == "/cdn/model.db":
			if c, err := r.Cookie("CloudFront-Signature"); err != nil || c.Value != "s" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if r.Method == http.MethodHead {
				w.Header().Set("Content-Length", fmt.Sprint(len(f.db)))
				return
			}
			f.rangeRequests++
			var start, end int
			fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &start, &end)
			w.WriteHeader(http.StatusPartialContent)
			w.Write(f.db[start : end+1])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestFetcher(f *fakeAPS, region string) *Fetcher {
	fe := NewFetcher(context.Background(), config.APSConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		Region:       region,
		BaseURL:      f.srv.URL,
	})
	fe.ChunkSize = 4
	return fe
}

func TestFetchDatabase_RangedDownload(t *testing.T) {
	db := []byte("SQLite format 3\x00payload")
	f := newFakeAPS(t, db)
	fe := newTestFetcher(f, "US")

	var buf bytes.Buffer
	var progress []int
	n, err := fe.FetchDatabase(context.Background(), "abc", &buf, func(p int) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("FetchDatabase: %v", err)
	}
	if n != int64(len(db)) || !bytes.Equal(buf.Bytes(), db) {
		t.Fatalf("downloaded %d bytes: %q", n, buf.Bytes())
	}
	wantChunks := (len(db) + 3) / 4
	if f.rangeRequests != wantChunks {
		t.Fatalf("range requests=%d want %d", f.rangeRequests, wantChunks)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("progress=%v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] <= progress[i-1] {
			t.Fatalf("progress not increasing: %v", progress)
		}
	}
}

func TestManifest_RegionPaths(t *testing.T) {
	tests := []struct {
		region string
		want   string
	}{
		{"US", "/modelderivative/v2/designdata/abc/manifest"},
		{"EMEA", "/modelderivative/v2/regions/eu/designdata/abc/manifest"},
		{"aus", "/modelderivative/v2/regions/aus/designdata/abc/manifest"},
	}

	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			f := newFakeAPS(t, []byte("x"))
			if _, _, err := newTestFetcher(f, tt.region).Manifest(context.Background(), "abc"); err != nil {
				t.Fatalf("Manifest: %v", err)
			}
			if f.lastPath != tt.want {
				t.Fatalf("path=%q want %q", f.lastPath, tt.want)
			}
		})
	}
}

func TestFetchDatabase_NotReady(t *testing.T) {
	f := newFakeAPS(t, []byte("x"))
	f.manifestStatus = "inprogress"

	_, err := newTestFetcher(f, "US").FetchDatabase(context.Background(), "abc", &bytes.Buffer{}, nil)
	if !errors.Is(err, apperror.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestFetchDatabase_NoDatabaseDerivative(t *testing.T) {
	f := newFakeAPS(t, []byte("x"))
	f.withDatabase = false

	_, err := newTestFetcher(f, "US").FetchDatabase(context.Background(), "abc", &bytes.Buffer{}, nil)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestManifest_DatabaseURN(t *testing.T) {
	m := &Manifest{Derivatives: []Node{
		{Type: "folder", Children: []Node{{Type: "resource", Mime: "application/autodesk-db", URN: "urn:deep"}}},
	}}
	if got := m.DatabaseURN(); got != "urn:deep" {
		t.Fatalf("DatabaseURN=%q", got)
	}
	if got := (&Manifest{}).DatabaseURN(); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
