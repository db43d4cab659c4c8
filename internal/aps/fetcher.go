package aps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bim-index-api/config"
	"bim-index-api/internal/apperror"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultChunkSize = 5 * 1024 * 1024
	dbMime           = "application/autodesk-db"
)

// Manifest is the subset of the model-derivative manifest the fetcher reads.
type Manifest struct {
	URN         string `json:"urn"`
	Status      string `json:"status"`
	Progress    string `json:"progress"`
	Derivatives []Node `json:"derivatives"`
}

type Node struct {
	GUID     string `json:"guid,omitempty"`
	Type     string `json:"type,omitempty"`
	Role     string `json:"role,omitempty"`
	Mime     string `json:"mime,omitempty"`
	URN      string `json:"urn,omitempty"`
	Status   string `json:"status,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// DatabaseURN returns the urn of the property database derivative, if any.
func (m *Manifest) DatabaseURN() string {
	stack := append([]Node(nil), m.Derivatives...)
	for len(stack) > 0 {
		n := stack[0]
		stack = stack[1:]
		if n.Type == "resource" && n.Mime == dbMime && n.URN != "" {
			return n.URN
		}
		stack = append(stack, n.Children...)
	}
	return ""
}

// Fetcher downloads derivative property databases from Autodesk Platform Services.
type Fetcher struct {
	BaseURL   string
	Region    string
	ChunkSize int64

	api      *http.Client
	download *http.Client
}

func NewFetcher(ctx context.Context, cfg config.APSConfig) *Fetcher {
	base := strings.TrimRight(cfg.BaseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/authentication/v2/token",
		Scopes:       []string{"data:read"},
	}
	return &Fetcher{
		BaseURL:   base,
		Region:    cfg.Region,
		ChunkSize: DefaultChunkSize,
		api:       cc.Client(ctx),
		download:  http.DefaultClient,
	}
}

func (f *Fetcher) designDataURL(urn string) string {
	switch strings.ToUpper(f.Region) {
	case "EMEA":
		return fmt.Sprintf("%s/modelderivative/v2/regions/eu/designdata/%s", f.BaseURL, urn)
	case "AUS":
		return fmt.Sprintf("%s/modelderivative/v2/regions/aus/designdata/%s", f.BaseURL, urn)
	default:
		return fmt.Sprintf("%s/modelderivative/v2/designdata/%s", f.BaseURL, urn)
	}
}

// Manifest fetches the manifest and requires a finished translation. The raw
// body is returned for storage alongside the package.
func (f *Fetcher) Manifest(ctx context.Context, urn string) (*Manifest, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.designDataURL(urn)+"/manifest", nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := f.api.Do(req)
	if err != nil {
		return nil, nil, apperror.Extraction("failed to fetch manifest", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, apperror.Extraction("failed to read manifest", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, apperror.NotFound(fmt.Sprintf("manifest for %s not found", urn))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, apperror.Extraction("failed to fetch manifest", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, nil, apperror.Extraction("invalid manifest", err)
	}
	if m.Status != "success" {
		return nil, nil, apperror.Extraction(
			fmt.Sprintf("translation not ready: status %q progress %q", m.Status, m.Progress),
			nil,
		)
	}
	return &m, body, nil
}

type signedDownload struct {
	URL     string `json:"url"`
	Size    int64  `json:"size"`
	cookies []*http.Cookie
}

func (f *Fetcher) signedCookies(ctx context.Context, urn, derivativeURN string) (*signedDownload, error) {
	endpoint := fmt.Sprintf("%s/manifest/%s/signedcookies", f.designDataURL(urn), derivativeURN)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.api.Do(req)
	if err != nil {
		return nil, apperror.Extraction("failed to fetch database download url", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, apperror.Extraction("failed to fetch database download url", fmt.Errorf("status %d: %s", resp.StatusCode, b))
	}

	var sd signedDownload
	if err := json.NewDecoder(resp.Body).Decode(&sd); err != nil {
		return nil, apperror.Extraction("invalid signed download response", err)
	}
	if sd.URL == "" {
		return nil, apperror.Extraction("database download url not found", nil)
	}
	sd.cookies = resp.Cookies()
	if len(sd.cookies) == 0 {
		return nil, apperror.Extraction("signed database cookies not found", nil)
	}
	return &sd, nil
}

func (f *Fetcher) signedRequest(ctx context.Context, method string, sd *signedDownload) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, sd.URL, nil)
	if err != nil {
		return nil, err
	}
	for _, c := range sd.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req, nil
}

func (f *Fetcher) contentLength(ctx context.Context, sd *signedDownload) (int64, error) {
	req, err := f.signedRequest(ctx, http.MethodHead, sd)
	if err != nil {
		return 0, err
	}
	resp, err := f.download.Do(req)
	if err != nil {
		return 0, apperror.Extraction("failed to fetch database size", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, apperror.Extraction("failed to fetch database size", fmt.Errorf("status %d", resp.StatusCode))
	}
	size := resp.ContentLength
	if size <= 0 {
		size, _ = strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	}
	if size <= 0 {
		return 0, apperror.Extraction("database size unknown", nil)
	}
	return size, nil
}

// FetchDatabase writes the property database of urn to dst using ranged
// requests, reporting integer percent after each chunk.
func (f *Fetcher) FetchDatabase(ctx context.Context, urn string, dst io.Writer, onProgress func(pct int)) (int64, error) {
	m, _, err := f.Manifest(ctx, urn)
	if err != nil {
		return 0, err
	}
	dbURN := m.DatabaseURN()
	if dbURN == "" {
		return 0, apperror.NotFound(fmt.Sprintf("no property database derivative for %s", urn))
	}

	sd, err := f.signedCookies(ctx, urn, dbURN)
	if err != nil {
		return 0, err
	}
	total, err := f.contentLength(ctx, sd)
	if err != nil {
		return 0, err
	}

	chunk := f.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	var written int64
	lastPct := -1
	for start := int64(0); start < total; start += chunk {
		end := min(start+chunk, total) - 1

		req, err := f.signedRequest(ctx, http.MethodGet, sd)
		if err != nil {
			return written, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

		resp, err := f.download.Do(req)
		if err != nil {
			return written, apperror.Extraction("database chunk download failed", err)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			resp.Body.Close()
			return written, apperror.Extraction("database chunk download failed", fmt.Errorf("status %d", resp.StatusCode))
		}
		n, err := io.Copy(dst, resp.Body)
		resp.Body.Close()
		written += n
		if err != nil {
			return written, apperror.Extraction("database chunk download failed", err)
		}

		if pct := int(written * 100 / total); pct != lastPct && onProgress != nil {
			lastPct = pct
			onProgress(pct)
		}
	}
	return written, nil
}
