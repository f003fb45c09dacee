package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/common"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// maxManifestSize bounds manifest responses. A manifest is a few hundred
// bytes; anything near this limit is not a manifest.
const maxManifestSize = 1 << 20

// Source provides update manifests to the checker.
type Source interface {
	// Manifest returns the current manifest for a platform and channel.
	Manifest(ctx context.Context, platform release.Platform, channel release.Channel) (*manifest.Manifest, error)
}

// HTTPSource fetches manifests from the update service over HTTPS and
// caches them briefly so a chatty caller cannot hammer the endpoint.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client

	mu            sync.Mutex
	cached        map[string]*manifest.Manifest
	lastFetch     map[string]time.Time
	cacheDuration time.Duration
}

// NewHTTPSource creates a source reading from the update service at
// baseURL, e.g. https://updates.g3zkp.example.com.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cached:        make(map[string]*manifest.Manifest),
		lastFetch:     make(map[string]time.Time),
		cacheDuration: 5 * time.Minute,
	}
}

// BaseURL returns the update service root, used to resolve the relative
// file URLs manifests carry.
func (s *HTTPSource) BaseURL() string {
	return s.baseURL
}

// ManifestURL returns the full URL of one manifest.
func (s *HTTPSource) ManifestURL(platform release.Platform, channel release.Channel) (string, error) {
	name, err := manifest.Name(platform, channel)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/" + name, nil
}

// Manifest fetches and validates the manifest, serving a cached copy when
// fresh enough. Every failure collapses into ErrManifestUnavailable.
func (s *HTTPSource) Manifest(ctx context.Context, platform release.Platform, channel release.Channel) (*manifest.Manifest, error) {
	manifestURL, err := s.ManifestURL(platform, channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}

	s.mu.Lock()
	if m, ok := s.cached[manifestURL]; ok && time.Since(s.lastFetch[manifestURL]) < s.cacheDuration {
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	m, err := s.fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached[manifestURL] = m
	s.lastFetch[manifestURL] = time.Now()
	s.mu.Unlock()

	return m, nil
}

func (s *HTTPSource) fetch(ctx context.Context, manifestURL string) (*manifest.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	req.Header.Set("User-Agent", common.UserAgent())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrManifestUnavailable, manifestURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}

	m, err := manifest.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	return m, nil
}

// StaticSource serves a fixed manifest from memory.
type StaticSource struct {
	M *manifest.Manifest
	// Err, when set, is returned instead of the manifest.
	Err error
}

// Manifest returns the fixed manifest or the configured error.
func (s *StaticSource) Manifest(ctx context.Context, platform release.Platform, channel release.Channel) (*manifest.Manifest, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.M == nil {
		return nil, ErrManifestUnavailable
	}
	return s.M, nil
}
