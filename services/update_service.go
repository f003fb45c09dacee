package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// UpdateConfig configures the update server.
type UpdateConfig struct {
	Store     ReleaseStore
	Artifacts ArtifactStore

	// SigningKey enables the signed manifest endpoint when set.
	SigningKey crypto.PrivateKey

	// AllowedOrigins configures CORS for browser-based updaters. Empty
	// allows any origin.
	AllowedOrigins []string

	Log *slog.Logger
}

// UpdateServer serves per-platform update manifests and artifact downloads
// to installed applications. Manifests are derived from the release store on
// every request, so a publish is visible immediately.
type UpdateServer struct {
	config *UpdateConfig
	log    *slog.Logger
}

// NewUpdateServer creates an update server with the given configuration.
func NewUpdateServer(config *UpdateConfig) (*UpdateServer, error) {
	if config.Store == nil {
		return nil, errors.New("update server requires a release store")
	}
	if config.Artifacts == nil {
		return nil, errors.New("update server requires an artifact store")
	}

	log := config.Log
	if log == nil {
		log = slog.Default()
	}
	return &UpdateServer{config: config, log: log}, nil
}

// RegisterRoutes mounts the update endpoints.
func (s *UpdateServer) RegisterRoutes(router chi.Router) {
	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Group(func(router chi.Router) {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Range", "If-Range"},
			MaxAge:         300,
		}))

		router.Get(`/{manifest:[a-z-]+\.yml}`, s.handleManifest)
		router.Get(`/signed/{manifest:[a-z-]+\.json}`, s.handleSignedManifest)
		router.Get("/download/{channel}/{version}/{filename}", s.handleDownload)
		router.Get("/api/check", s.handleCheck)
	})
}

// latestForPlatform returns the newest published release on the channel that
// carries self-update artifacts for the platform.
func latestForPlatform(store ReleaseStore, channel release.Channel, platform release.Platform) (*release.Release, error) {
	releases, err := store.ListReleases(channel, true)
	if err != nil {
		return nil, err
	}

	var best *release.Release
	for _, rel := range releases {
		if len(rel.ArtifactsFor(platform)) == 0 {
			continue
		}
		if best == nil {
			best = rel
			continue
		}
		if newer, err := release.IsNewer(rel.Version, best.Version); err == nil && newer {
			best = rel
		}
	}

	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (s *UpdateServer) buildManifest(name string) (*manifest.Manifest, error) {
	platform, channel, err := manifest.ParseName(name)
	if err != nil {
		return nil, err
	}

	rel, err := latestForPlatform(s.config.Store, channel, platform)
	if err != nil {
		return nil, err
	}
	return manifest.Build(rel, platform)
}

func (s *UpdateServer) handleManifest(w http.ResponseWriter, req *http.Request) {
	manifestRequests.Inc()

	name := chi.URLParam(req, "manifest")
	m, err := s.buildManifest(name)
	if err != nil {
		http.Error(w, "manifest not available", http.StatusNotFound)
		return
	}

	data, err := manifest.Encode(m)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func (s *UpdateServer) handleSignedManifest(w http.ResponseWriter, req *http.Request) {
	manifestRequests.Inc()

	if s.config.SigningKey == nil {
		http.Error(w, "manifest signing not enabled", http.StatusNotFound)
		return
	}

	name := strings.TrimSuffix(chi.URLParam(req, "manifest"), ".json") + ".yml"
	m, err := s.buildManifest(name)
	if err != nil {
		http.Error(w, "manifest not available", http.StatusNotFound)
		return
	}

	signed, err := release.NewSigned(s.config.SigningKey, m)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, signed)
}

func (s *UpdateServer) handleDownload(w http.ResponseWriter, req *http.Request) {
	downloadRequests.Inc()

	channel, err := release.ParseChannel(chi.URLParam(req, "channel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	version := chi.URLParam(req, "version")
	filename := chi.URLParam(req, "filename")

	rel, err := s.config.Store.GetReleaseByVersion(version)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "release not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !rel.Published || rel.Channel != channel {
		http.Error(w, "release not found", http.StatusNotFound)
		return
	}

	// Store submissions are uploaded for app-store delivery and are not
	// served to update clients.
	art, ok := rel.Artifact(filename)
	if !ok || art.StoreOnly {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}

	rc, size, err := s.config.Artifacts.Open(req.Context(), channel, version, filename)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "artifact not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Checksum-Sha512", art.SHA512)

	// Local artifacts are seekable, which gives resumable downloads via
	// range requests. Remote stores fall back to a full-body copy.
	if seeker, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, req, filename, rel.Date, seeker)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	io.Copy(w, rc)
}

func (s *UpdateServer) handleCheck(w http.ResponseWriter, req *http.Request) {
	checkRequests.Inc()

	platform, err := release.ParsePlatform(req.URL.Query().Get("platform"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	channel := release.ChannelStable
	if raw := req.URL.Query().Get("channel"); raw != "" {
		channel, err = release.ParseChannel(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	current := req.URL.Query().Get("version")
	if current == "" {
		http.Error(w, "version parameter is required", http.StatusBadRequest)
		return
	}
	if _, err := release.ParseVersion(current); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rel, err := latestForPlatform(s.config.Store, channel, platform)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusOK, &CheckResponse{UpdateAvailable: false})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	newer, err := release.IsNewer(rel.Version, current)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := &CheckResponse{
		UpdateAvailable: newer,
		Version:         rel.Version,
		Channel:         string(channel),
		Notes:           rel.Notes,
	}
	if name, err := manifest.Name(platform, channel); err == nil {
		resp.ManifestURL = "/" + name
	}
	writeJSON(w, http.StatusOK, resp)
}
