package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// updateFixture runs an update server against the same store the registry
// fixture writes to, so tests publish through the real admin flow.
type updateFixture struct {
	registry *registryFixture
	router   chi.Router
}

func setupTestUpdate(t *testing.T, signingKey crypto.PrivateKey) *updateFixture {
	t.Helper()

	reg := setupTestRegistry(t, "admin:secret", nil)

	server, err := NewUpdateServer(&UpdateConfig{
		Store:      reg.store,
		Artifacts:  reg.artifacts,
		SigningKey: signingKey,
		Log:        testLogger(),
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	server.RegisterRoutes(router)

	return &updateFixture{registry: reg, router: router}
}

func (f *updateFixture) publishRelease(t *testing.T, key crypto.PrivateKey, version string, files map[string][]byte) {
	t.Helper()

	resp := f.registry.submit(t, signedRelease(t, key, version, files))
	f.registry.uploadAll(t, resp.ReleaseID, files)
	w := f.registry.publish(t, resp.ReleaseID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (f *updateFixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestUpdateServer_ManifestPerPlatform(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	f.publishRelease(t, key, "1.2.3", testFiles("1.2.3"))

	w := f.get(t, "/latest.yml")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Header().Get("Content-Type"), "text/yaml")

	m, err := manifest.Decode(w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, "1.2.3", m.Version)
	require.Equal(t, "download/stable/1.2.3/G3ZKP Setup 1.2.3.exe", m.Path)
	// Blockmaps are fetched by URL convention, never listed.
	require.Len(t, m.Files, 1)

	w = f.get(t, "/latest-linux.yml")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m, err = manifest.Decode(w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, "download/stable/1.2.3/G3ZKP-1.2.3.AppImage", m.Path)

	// The release shipped no macOS build.
	w = f.get(t, "/latest-mac.yml")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateServer_ManifestTracksNewestPerPlatform(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	f.publishRelease(t, key, "1.2.3", testFiles("1.2.3"))
	f.publishRelease(t, key, "1.2.4", map[string][]byte{
		"G3ZKP Setup 1.2.4.exe": bytes.Repeat([]byte{0xC3}, 1024),
	})

	w := f.get(t, "/latest.yml")
	require.Equal(t, http.StatusOK, w.Code)
	m, err := manifest.Decode(w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, "1.2.4", m.Version)

	// 1.2.4 shipped no Linux build, so Linux clients stay on 1.2.3.
	w = f.get(t, "/latest-linux.yml")
	require.Equal(t, http.StatusOK, w.Code)
	m, err = manifest.Decode(w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, "1.2.3", m.Version)
}

func TestUpdateServer_ManifestBetaChannelSplit(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	f.publishRelease(t, key, "1.2.3", testFiles("1.2.3"))
	f.publishRelease(t, key, "1.3.0-beta.1", testFiles("1.3.0-beta.1"))

	w := f.get(t, "/beta.yml")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m, err := manifest.Decode(w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, "1.3.0-beta.1", m.Version)

	// The beta never leaks into the stable manifest.
	w = f.get(t, "/latest.yml")
	require.Equal(t, http.StatusOK, w.Code)
	m, err = manifest.Decode(w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, "1.2.3", m.Version)
}

func TestUpdateServer_ManifestUnknownName(t *testing.T) {
	f := setupTestUpdate(t, nil)

	for _, target := range []string{"/latest-ios.yml", "/nightly.yml", "/latest-solaris.yml"} {
		w := f.get(t, target)
		require.Equal(t, http.StatusNotFound, w.Code, target)
	}
}

func TestUpdateServer_SignedManifest(t *testing.T) {
	signerPub, signerKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	f := setupTestUpdate(t, signerKey)
	_, publisherKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	f.publishRelease(t, publisherKey, "1.2.3", testFiles("1.2.3"))

	w := f.get(t, "/signed/latest.json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var signed release.Signed[manifest.Manifest]
	require.NoError(t, json.NewDecoder(w.Body).Decode(&signed))

	m, signer, err := signed.Recover()
	require.NoError(t, err)
	require.Equal(t, signerPub.String(), signer.String())
	require.Equal(t, "1.2.3", m.Version)
	require.NoError(t, m.Validate())
}

func TestUpdateServer_SignedManifestDisabled(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	f.publishRelease(t, key, "1.2.3", testFiles("1.2.3"))

	w := f.get(t, "/signed/latest.json")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateServer_Download(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	files := testFiles("1.2.3")
	f.publishRelease(t, key, "1.2.3", files)

	w := f.get(t, "/download/stable/1.2.3/G3ZKP-1.2.3.AppImage")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, files["G3ZKP-1.2.3.AppImage"], w.Body.Bytes())
	require.Equal(t, crypto.HashBytes(files["G3ZKP-1.2.3.AppImage"]).String(), w.Header().Get("X-Checksum-Sha512"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "G3ZKP-1.2.3.AppImage")
}

func TestUpdateServer_DownloadResumesWithRange(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	files := testFiles("1.2.3")
	f.publishRelease(t, key, "1.2.3", files)

	req := httptest.NewRequest(http.MethodGet, "/download/stable/1.2.3/G3ZKP-1.2.3.AppImage", nil)
	req.Header.Set("Range", "bytes=1024-2047")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusPartialContent, w.Code)
	require.Equal(t, files["G3ZKP-1.2.3.AppImage"][1024:2048], w.Body.Bytes())
	require.Equal(t, "bytes 1024-2047/4096", w.Header().Get("Content-Range"))
}

func TestUpdateServer_DownloadChannelMismatch(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	f.publishRelease(t, key, "1.2.3", testFiles("1.2.3"))

	w := f.get(t, "/download/beta/1.2.3/G3ZKP-1.2.3.AppImage")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.get(t, "/download/nightly/1.2.3/G3ZKP-1.2.3.AppImage")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateServer_DownloadRefusesStoreSubmissions(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	files := testFiles("1.2.3")
	files["G3ZKP-1.2.3.aab"] = bytes.Repeat([]byte{0xD4}, 512)
	f.publishRelease(t, key, "1.2.3", files)

	w := f.get(t, "/download/stable/1.2.3/G3ZKP-1.2.3.aab")
	require.Equal(t, http.StatusNotFound, w.Code)

	// The sibling client artifact stays downloadable.
	w = f.get(t, "/download/stable/1.2.3/G3ZKP-1.2.3.AppImage")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateServer_UnpublishedStaysInvisible(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	files := testFiles("1.2.3")
	resp := f.registry.submit(t, signedRelease(t, key, "1.2.3", files))
	f.registry.uploadAll(t, resp.ReleaseID, files)

	w := f.get(t, "/latest.yml")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.get(t, "/download/stable/1.2.3/G3ZKP-1.2.3.AppImage")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateServer_Check(t *testing.T) {
	f := setupTestUpdate(t, nil)
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	f.publishRelease(t, key, "1.2.3", testFiles("1.2.3"))

	tests := []struct {
		name      string
		query     string
		status    int
		available bool
	}{
		{"older version offered update", "platform=windows&version=1.2.2", http.StatusOK, true},
		{"current version up to date", "platform=windows&version=1.2.3", http.StatusOK, false},
		{"ahead of latest", "platform=windows&version=9.9.9", http.StatusOK, false},
		{"platform without release", "platform=darwin&version=1.0.0", http.StatusOK, false},
		{"beta channel empty", "platform=windows&channel=beta&version=1.2.2", http.StatusOK, false},
		{"unknown platform", "platform=amiga&version=1.2.2", http.StatusBadRequest, false},
		{"missing version", "platform=windows", http.StatusBadRequest, false},
		{"garbage version", "platform=windows&version=not-semver", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.get(t, "/api/check?"+tt.query)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			var resp CheckResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.Equal(t, tt.available, resp.UpdateAvailable)
		})
	}

	w := f.get(t, "/api/check?platform=linux&version=1.0.0")
	require.Equal(t, http.StatusOK, w.Code)
	var resp CheckResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.UpdateAvailable)
	require.Equal(t, "1.2.3", resp.Version)
	require.Equal(t, "/latest-linux.yml", resp.ManifestURL)
}

func TestUpdateServer_CORSPreflight(t *testing.T) {
	f := setupTestUpdate(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/latest.yml", nil)
	req.Header.Set("Origin", "https://app.g3zkp.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
