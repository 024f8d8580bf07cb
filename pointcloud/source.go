package pointcloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Source delivers raw point clouds for a locator. Implementations decide
// what a locator means; the rest of the pipeline never interprets it.
type Source interface {
	Load(ctx context.Context, locator string) (RawPointCloud, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, locator string) (RawPointCloud, error)

func (f SourceFunc) Load(ctx context.Context, locator string) (RawPointCloud, error) {
	return f(ctx, locator)
}

// Decode picks a decoder from the locator's extension.
func Decode(locator string, r io.Reader) (RawPointCloud, error) {
	ext := strings.ToLower(path.Ext(stripQuery(locator)))
	switch ext {
	case ".ply":
		cloud, err := DecodePLY(r)
		if err != nil {
			return RawPointCloud{}, fmt.Errorf("%s: %w", locator, err)
		}
		cloud.Source = locator
		return cloud, nil
	case ".gltf", ".glb":
		return RawPointCloud{}, fmt.Errorf("%w: %s is a mesh, not a point cloud", ErrUnsupportedFormat, locator)
	}
	return RawPointCloud{}, fmt.Errorf("%w: unknown extension %q for %s", ErrUnsupportedFormat, ext, locator)
}

func stripQuery(locator string) string {
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" {
		return u.Path
	}
	if i := strings.IndexAny(locator, "?#"); i >= 0 {
		return locator[:i]
	}
	return locator
}

// FileSource reads assets from the local filesystem. Relative locators are
// resolved against Root.
type FileSource struct {
	Root string
}

func (s FileSource) Load(ctx context.Context, locator string) (RawPointCloud, error) {
	if err := ctx.Err(); err != nil {
		return RawPointCloud{}, fmt.Errorf("%w: %s: %w", ErrAssetLoad, locator, err)
	}
	p := locator
	if !filepath.IsAbs(p) && s.Root != "" {
		p = filepath.Join(s.Root, filepath.FromSlash(locator))
	}
	f, err := os.Open(p)
	if err != nil {
		return RawPointCloud{}, fmt.Errorf("%w: %w", ErrAssetLoad, err)
	}
	defer f.Close()
	return Decode(locator, f)
}

// HTTPSource fetches assets over HTTP. Relative locators are resolved
// against BaseURL.
type HTTPSource struct {
	Client  *http.Client
	BaseURL string
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		Client:  &http.Client{Timeout: 60 * time.Second},
		BaseURL: baseURL,
	}
}

func (s *HTTPSource) Load(ctx context.Context, locator string) (RawPointCloud, error) {
	target, err := s.resolve(locator)
	if err != nil {
		return RawPointCloud{}, fmt.Errorf("%w: %w", ErrAssetLoad, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return RawPointCloud{}, fmt.Errorf("%w: %w", ErrAssetLoad, err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return RawPointCloud{}, fmt.Errorf("%w: %w", ErrAssetLoad, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RawPointCloud{}, fmt.Errorf("%w: %s: HTTP %d", ErrAssetLoad, target, resp.StatusCode)
	}
	return Decode(target, resp.Body)
}

func (s *HTTPSource) resolve(locator string) (string, error) {
	if s.BaseURL == "" {
		return locator, nil
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(locator)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// MuxSource routes locators with a URL scheme to HTTP and everything else to
// the filesystem.
type MuxSource struct {
	Files FileSource
	HTTP  *HTTPSource
}

func (m MuxSource) Load(ctx context.Context, locator string) (RawPointCloud, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		h := m.HTTP
		if h == nil {
			h = NewHTTPSource("")
		}
		return h.Load(ctx, locator)
	}
	return m.Files.Load(ctx, locator)
}
