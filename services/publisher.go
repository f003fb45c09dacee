package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/common"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// PublisherConfig configures a publisher client.
type PublisherConfig struct {
	// RegistryURL is the base URL of the release registry.
	RegistryURL string
	// AdminToken authenticates admin requests (user:pass).
	AdminToken string
	// SigningKey signs release submissions.
	SigningKey crypto.PrivateKey

	Log *slog.Logger
}

// Publisher is the client side of the registry admin API. It stages a
// release from a directory of build outputs, submits it signed, uploads the
// artifacts and triggers publication.
type Publisher struct {
	config     *PublisherConfig
	httpClient *http.Client
	log        *slog.Logger
}

// NewPublisher creates a publisher client.
func NewPublisher(config *PublisherConfig) (*Publisher, error) {
	if config.RegistryURL == "" {
		return nil, errors.New("publisher requires a registry URL")
	}
	if config.SigningKey == nil {
		return nil, errors.New("publisher requires a signing key")
	}

	log := config.Log
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		config: config,
		// Uploads carry installer-sized bodies, so the client timeout is
		// generous.
		httpClient: &http.Client{Timeout: 30 * time.Minute},
		log:        log,
	}, nil
}

// StageRelease scans a directory of build outputs and assembles an unsigned
// release from the artifacts it recognizes. Unrecognized files are skipped
// with a warning.
func (p *Publisher) StageRelease(dir, version, notes string) (*release.Release, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	rel := &release.Release{
		Version: version,
		Notes:   notes,
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()

		platform, storeOnly, err := release.PlatformForFilename(name)
		if err != nil {
			p.log.Warn("skipping unrecognized file", "filename", name)
			continue
		}

		digest, size, err := crypto.HashFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", name, err)
		}

		rel.Artifacts = append(rel.Artifacts, release.Artifact{
			Platform:  platform,
			Filename:  name,
			Size:      size,
			SHA512:    digest.String(),
			StoreOnly: storeOnly,
		})
		p.log.Info("staged artifact", "filename", name, "platform", platform, "size", size)
	}

	if len(rel.Artifacts) == 0 {
		return nil, fmt.Errorf("no release artifacts found in %s", dir)
	}

	if err := rel.Validate(); err != nil {
		return nil, err
	}
	return rel, nil
}

// Push runs the whole workflow for a staged release: submit, upload every
// artifact from dir, publish. Pushing an already published identical release
// is a no-op that returns the existing distribution links.
func (p *Publisher) Push(ctx context.Context, dir string, rel *release.Release) (*PublishResponse, error) {
	submitted, err := p.SubmitRelease(ctx, rel)
	if err != nil {
		return nil, err
	}

	if submitted.Message != "already published" {
		for _, art := range rel.Artifacts {
			if err := p.UploadArtifact(ctx, submitted.ReleaseID, dir, art.Filename); err != nil {
				return nil, err
			}
		}
	}

	return p.Publish(ctx, submitted.ReleaseID)
}

// SubmitRelease signs the release with the publisher key and submits it.
func (p *Publisher) SubmitRelease(ctx context.Context, rel *release.Release) (*ReleaseResponse, error) {
	pubKey, err := p.config.SigningKey.PublicKey()
	if err != nil {
		return nil, err
	}
	rel.PublisherKey = pubKey.String()

	signed, err := release.NewSigned(p.config.SigningKey, rel)
	if err != nil {
		return nil, fmt.Errorf("signing release: %w", err)
	}

	body, err := json.Marshal(signed)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.RegistryURL+"/admin/releases", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp, "release submission")
	}

	var submitted ReleaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return nil, err
	}

	p.log.Info("release submitted", "id", submitted.ReleaseID, "version", submitted.Version, "channel", submitted.Channel)
	return &submitted, nil
}

// UploadArtifact streams one staged file to the registry.
func (p *Publisher) UploadArtifact(ctx context.Context, releaseID, dir, filename string) error {
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	uploadURL := fmt.Sprintf("%s/admin/releases/%s/artifacts/%s",
		p.config.RegistryURL, url.PathEscape(releaseID), url.PathEscape(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp, "artifact upload")
	}

	p.log.Info("artifact uploaded", "filename", filename, "size", info.Size())
	return nil
}

// Publish asks the registry to verify, publish and distribute the release.
func (p *Publisher) Publish(ctx context.Context, releaseID string) (*PublishResponse, error) {
	publishURL := fmt.Sprintf("%s/admin/releases/%s/publish", p.config.RegistryURL, url.PathEscape(releaseID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp, "publish")
	}

	var published PublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&published); err != nil {
		return nil, err
	}

	p.log.Info("release published", "version", published.Version, "manifests", strings.Join(published.Manifests, ","))
	return &published, nil
}

// LatestRelease fetches the newest published release on a channel from the
// registry's public API.
func (p *Publisher) LatestRelease(ctx context.Context, channel release.Channel) (*release.Release, error) {
	latestURL := fmt.Sprintf("%s/api/releases/%s/latest", p.config.RegistryURL, channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, latestURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp, "latest release lookup")
	}

	var rel release.Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// ListReleases fetches all releases known to the registry, grouped by
// channel.
func (p *Publisher) ListReleases(ctx context.Context) (*ReleaseListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.RegistryURL+"/api/releases", nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp, "release listing")
	}

	var list ReleaseListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (p *Publisher) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", common.UserAgent())
	if p.config.AdminToken != "" {
		user, pass := parseAdminToken(p.config.AdminToken)
		req.SetBasicAuth(user, pass)
	}
	return p.httpClient.Do(req)
}

func responseError(resp *http.Response, action string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s failed (%d): %s", action, resp.StatusCode, strings.TrimSpace(string(body)))
}
