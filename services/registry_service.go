package services

import (
	"context"
	"crypto/sha512"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/ipfs"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/torrent"
)

// Pinner abstracts the IPFS node used for artifact distribution.
type Pinner interface {
	Add(ctx context.Context, filename string, r io.Reader) (*ipfs.AddResult, error)
	PinAdd(ctx context.Context, cid string) error
	IsPinned(ctx context.Context, cid string) (bool, error)
}

// RegistryConfig configures the release registry.
type RegistryConfig struct {
	Store     ReleaseStore
	Artifacts ArtifactStore

	// PublisherKeys lists the hex public keys allowed to submit releases.
	// Empty accepts any correctly signed submission.
	PublisherKeys []string

	// AdminToken guards the admin routes (user:pass).
	AdminToken string

	// Pinner pins published artifacts to IPFS when set.
	Pinner Pinner
	// Gateway is the public IPFS gateway used for minted links.
	Gateway string

	// DownloadBaseURL is the public base URL of the update server. It
	// becomes the web seed hint in minted magnet links.
	DownloadBaseURL string
	// Trackers are announced in minted magnet links.
	Trackers []string

	Log *slog.Logger
}

// Registry owns release metadata and drives the publish workflow: signed
// submission, artifact upload, digest verification, manifest generation and
// IPFS distribution.
type Registry struct {
	config *RegistryConfig
	log    *slog.Logger

	// mu serializes mutating admin operations so publish never races a
	// concurrent re-submission of the same release.
	mu sync.Mutex
}

// NewRegistry creates a registry with the given configuration.
func NewRegistry(config *RegistryConfig) (*Registry, error) {
	if config.Store == nil {
		return nil, errors.New("registry requires a release store")
	}
	if config.Artifacts == nil {
		return nil, errors.New("registry requires an artifact store")
	}

	log := config.Log
	if log == nil {
		log = slog.Default()
	}
	return &Registry{config: config, log: log}, nil
}

// RegisterAdminRoutes mounts the authenticated publish workflow.
func (r *Registry) RegisterAdminRoutes(router chi.Router) {
	router.Group(func(router chi.Router) {
		router.Use(adminAuth(r.config.AdminToken))
		router.Post("/admin/releases", r.handleSubmitRelease)
		router.Put("/admin/releases/{id}/artifacts/{filename}", r.handleUploadArtifact)
		router.Post("/admin/releases/{id}/publish", r.handlePublishRelease)
		router.Delete("/admin/releases/{id}", r.handleDeleteRelease)
	})
}

// RegisterPublicRoutes mounts the read-only release listing.
func (r *Registry) RegisterPublicRoutes(router chi.Router) {
	router.Get("/api/releases", r.handleListReleases)
	router.Get("/api/releases/{channel}/latest", r.handleLatestRelease)
	router.Get("/api/releases/{id}", r.handleGetRelease)
}

func (r *Registry) handleSubmitRelease(w http.ResponseWriter, req *http.Request) {
	var signedReq release.Signed[release.Release]
	if err := json.NewDecoder(req.Body).Decode(&signedReq); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rel, signer, err := signedReq.Recover()
	if err != nil {
		http.Error(w, fmt.Errorf("invalid signature: %w", err).Error(), http.StatusForbidden)
		return
	}

	if signer.String() != rel.PublisherKey {
		http.Error(w, "signer does not match claimed publisher key", http.StatusForbidden)
		return
	}

	if !r.publisherAllowed(signer) {
		http.Error(w, "publisher key not allowed", http.StatusForbidden)
		return
	}

	if err := rel.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.config.Store.GetReleaseByVersion(rel.Version)
	if err != nil && !errors.Is(err, ErrNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if existing != nil {
		if existing.Published {
			if !sameArtifacts(existing, rel) {
				http.Error(w, "published release is immutable", http.StatusConflict)
				return
			}
			writeJSON(w, http.StatusOK, &ReleaseResponse{
				Success:   true,
				ReleaseID: existing.ID,
				Version:   existing.Version,
				Channel:   string(existing.Channel),
				Message:   "already published",
			})
			return
		}
		// Re-submission of an unpublished release keeps its ID so that
		// already uploaded artifacts stay bound to it.
		rel.ID = existing.ID
	} else {
		rel.ID = uuid.NewString()
	}

	rel.Published = false
	if rel.Date.IsZero() {
		rel.Date = time.Now().UTC()
	}

	if err := r.config.Store.SaveRelease(rel); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	releasesSubmitted.Inc()
	r.log.Info("release submitted",
		"id", rel.ID,
		"version", rel.Version,
		"channel", rel.Channel,
		"artifacts", len(rel.Artifacts),
		"publisher", signer.String(),
	)

	writeJSON(w, http.StatusOK, &ReleaseResponse{
		Success:   true,
		ReleaseID: rel.ID,
		Version:   rel.Version,
		Channel:   string(rel.Channel),
	})
}

func (r *Registry) publisherAllowed(signer crypto.PublicKey) bool {
	if len(r.config.PublisherKeys) == 0 {
		return true
	}
	for _, key := range r.config.PublisherKeys {
		if signer.String() == key {
			return true
		}
	}
	return false
}

// sameArtifacts reports whether two releases declare the same artifact set,
// compared by filename and digest.
func sameArtifacts(a, b *release.Release) bool {
	if len(a.Artifacts) != len(b.Artifacts) {
		return false
	}
	digests := make(map[string]string, len(a.Artifacts))
	for _, art := range a.Artifacts {
		digests[art.Filename] = art.SHA512
	}
	for _, art := range b.Artifacts {
		if digests[art.Filename] != art.SHA512 {
			return false
		}
	}
	return true
}

func (r *Registry) handleUploadArtifact(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	filename := chi.URLParam(req, "filename")

	rel, err := r.config.Store.GetRelease(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "release not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if rel.Published {
		http.Error(w, "published release is immutable", http.StatusConflict)
		return
	}

	art, ok := rel.Artifact(filename)
	if !ok {
		http.Error(w, "artifact not declared in release", http.StatusNotFound)
		return
	}

	want, err := art.Digest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	hasher := sha512.New()
	n, err := r.config.Artifacts.Put(req.Context(), rel.Channel, rel.Version, filename, io.TeeReader(req.Body, hasher))
	if err != nil {
		http.Error(w, fmt.Errorf("storing artifact: %w", err).Error(), http.StatusInternalServerError)
		return
	}

	if n != art.Size {
		r.config.Artifacts.Delete(req.Context(), rel.Channel, rel.Version, filename)
		http.Error(w, fmt.Sprintf("size mismatch: got %d bytes, release declares %d", n, art.Size), http.StatusBadRequest)
		return
	}

	got := crypto.Digest(hasher.Sum(nil))
	if !got.Equal(want) {
		r.config.Artifacts.Delete(req.Context(), rel.Channel, rel.Version, filename)
		http.Error(w, "sha512 mismatch between upload and release metadata", http.StatusBadRequest)
		return
	}

	artifactsUploaded.Inc()
	r.log.Info("artifact uploaded", "release", rel.Version, "filename", filename, "size", n)

	writeJSON(w, http.StatusOK, &ArtifactUploadResponse{
		Success:  true,
		Filename: filename,
		Size:     n,
		SHA512:   got.String(),
	})
}

func (r *Registry) handlePublishRelease(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	r.mu.Lock()
	defer r.mu.Unlock()

	rel, err := r.config.Store.GetRelease(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "release not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if rel.Published {
		writeJSON(w, http.StatusOK, r.publishResponse(rel, "already published"))
		return
	}

	// Every declared artifact must be uploaded and match its digest before
	// anything becomes visible to updaters.
	infos := make(map[string]*torrent.Info, len(rel.Artifacts))
	for i := range rel.Artifacts {
		art := &rel.Artifacts[i]
		info, err := r.verifyArtifact(req.Context(), rel, art)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		infos[art.Filename] = info
	}

	manifests, err := r.manifestNames(rel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for i := range rel.Artifacts {
		art := &rel.Artifacts[i]
		if art.StoreOnly {
			// Store submissions stay private to the registry.
			continue
		}
		if err := r.mintMagnet(rel, art, infos[art.Filename]); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	// The IPFS node being down must not block the release. Failed adds are
	// deferred to the pin sweep, which finishes distribution once the node
	// is back.
	var pending int
	if r.config.Pinner != nil {
		for i := range rel.Artifacts {
			art := &rel.Artifacts[i]
			if art.StoreOnly {
				continue
			}
			if err := r.pinArtifact(req.Context(), rel, art); err != nil {
				pinFailures.Inc()
				pending++
				r.log.Warn("artifact distribution deferred", "filename", art.Filename, "err", err)
			}
		}
	}

	rel.Published = true
	if rel.Date.IsZero() {
		rel.Date = time.Now().UTC()
	}

	if err := r.config.Store.SaveRelease(rel); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	releasesPublished.Inc()
	r.log.Info("release published",
		"id", rel.ID,
		"version", rel.Version,
		"channel", rel.Channel,
		"manifests", strings.Join(manifests, ","),
		"pending", pending,
	)

	message := ""
	if pending > 0 {
		message = fmt.Sprintf("%d artifacts pending distribution", pending)
	}
	resp := r.publishResponse(rel, message)
	resp.Manifests = manifests
	writeJSON(w, http.StatusOK, resp)
}

// verifyArtifact checks the stored bytes against the declared digest and
// size, computing the torrent info dictionary in the same pass.
func (r *Registry) verifyArtifact(ctx context.Context, rel *release.Release, art *release.Artifact) (*torrent.Info, error) {
	want, err := art.Digest()
	if err != nil {
		return nil, err
	}

	rc, size, err := r.config.Artifacts.Open(ctx, rel.Channel, rel.Version, art.Filename)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("artifact not uploaded: %s", art.Filename)
		}
		return nil, err
	}
	defer rc.Close()

	if size != art.Size {
		return nil, fmt.Errorf("size mismatch for %s: stored %d bytes, release declares %d", art.Filename, size, art.Size)
	}

	hasher := sha512.New()
	info, err := torrent.BuildInfo(art.Filename, io.TeeReader(rc, hasher))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", art.Filename, err)
	}

	if !crypto.Digest(hasher.Sum(nil)).Equal(want) {
		return nil, fmt.Errorf("digest mismatch for %s", art.Filename)
	}
	return info, nil
}

// mintMagnet builds the artifact's magnet link from its torrent info, with
// the public download endpoint as a web seed. Minting is local and does not
// need the IPFS node.
func (r *Registry) mintMagnet(rel *release.Release, art *release.Artifact, info *torrent.Info) error {
	var webSeeds []string
	if r.config.DownloadBaseURL != "" {
		download, err := release.DownloadPath(rel.Channel, rel.Version, art.Filename)
		if err != nil {
			return err
		}
		webSeeds = append(webSeeds, strings.TrimSuffix(r.config.DownloadBaseURL, "/")+download)
	}
	art.Magnet = torrent.Magnet(info, webSeeds, r.config.Trackers)
	return nil
}

// pinArtifact streams the stored artifact to the IPFS node and records the
// resulting CID and gateway link on the artifact.
func (r *Registry) pinArtifact(ctx context.Context, rel *release.Release, art *release.Artifact) error {
	rc, _, err := r.config.Artifacts.Open(ctx, rel.Channel, rel.Version, art.Filename)
	if err != nil {
		return err
	}
	defer rc.Close()

	res, err := r.config.Pinner.Add(ctx, art.Filename, rc)
	if err != nil {
		return err
	}

	art.CID = res.CID
	art.GatewayURL, err = ipfs.GatewayLink(r.config.Gateway, res.CID, art.Filename)
	if err != nil {
		return err
	}
	return nil
}

// manifestNames builds the update manifest for every platform the release
// ships client-served artifacts for, returning the manifest filenames that
// will serve it. A manifest that cannot be built blocks the publish.
func (r *Registry) manifestNames(rel *release.Release) ([]string, error) {
	var names []string
	for _, platform := range rel.Platforms() {
		name, err := manifest.Name(platform, rel.Channel)
		if err != nil {
			// Store-gated platforms have no manifest.
			continue
		}
		if _, err := manifest.Build(rel, platform); err != nil {
			return nil, fmt.Errorf("building %s manifest: %w", platform, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func (r *Registry) publishResponse(rel *release.Release, message string) *PublishResponse {
	resp := &PublishResponse{
		Success:   true,
		ReleaseID: rel.ID,
		Version:   rel.Version,
		Channel:   string(rel.Channel),
		Message:   message,
	}
	for _, art := range rel.Artifacts {
		if art.StoreOnly {
			continue
		}
		resp.Links = append(resp.Links, &ArtifactLinks{
			Filename:   art.Filename,
			CID:        art.CID,
			GatewayURL: art.GatewayURL,
			Magnet:     art.Magnet,
		})
	}
	return resp
}

func (r *Registry) handleDeleteRelease(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	r.mu.Lock()
	defer r.mu.Unlock()

	rel, err := r.config.Store.GetRelease(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "release not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if rel.Published {
		http.Error(w, "published release is immutable", http.StatusConflict)
		return
	}

	for _, art := range rel.Artifacts {
		if err := r.config.Artifacts.Delete(req.Context(), rel.Channel, rel.Version, art.Filename); err != nil {
			r.log.Warn("could not delete artifact", "release", rel.Version, "filename", art.Filename, "err", err)
		}
	}

	if err := r.config.Store.DeleteRelease(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	r.log.Info("release deleted", "id", rel.ID, "version", rel.Version)
	writeJSON(w, http.StatusOK, &ReleaseResponse{
		Success:   true,
		ReleaseID: rel.ID,
		Version:   rel.Version,
	})
}

func (r *Registry) handleListReleases(w http.ResponseWriter, req *http.Request) {
	resp := &ReleaseListResponse{}

	for _, channel := range release.Channels() {
		releases, err := r.config.Store.ListReleases(channel, true)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		switch channel {
		case release.ChannelStable:
			resp.Stable = releases
		case release.ChannelBeta:
			resp.Beta = releases
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (r *Registry) handleLatestRelease(w http.ResponseWriter, req *http.Request) {
	channel, err := release.ParseChannel(chi.URLParam(req, "channel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rel, err := LatestRelease(r.config.Store, channel)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "no published release on channel", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rel)
}

func (r *Registry) handleGetRelease(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	rel, err := r.config.Store.GetRelease(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "release not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Unpublished releases are only visible through the admin workflow.
	if !rel.Published {
		http.Error(w, "release not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rel)
}
