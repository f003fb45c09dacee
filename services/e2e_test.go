package services

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/update"
)

// recordingPrompter answers the two consent gates with fixed decisions and
// records every version offered.
type recordingPrompter struct {
	downloadOK bool
	installOK  bool
	offers     []string
}

func (p *recordingPrompter) ConfirmDownload(m *manifest.Manifest) bool {
	p.offers = append(p.offers, m.Version)
	return p.downloadOK
}

func (p *recordingPrompter) ConfirmInstall(m *manifest.Manifest) bool {
	return p.installOK
}

type recordingInstaller struct {
	installed []string
}

func (i *recordingInstaller) Install(ctx context.Context, path string) error {
	i.installed = append(i.installed, path)
	return nil
}

// startTestBackend runs registry and update server on one router, the way
// the combined deployment serves them.
func startTestBackend(t *testing.T) (*registryFixture, *httptest.Server) {
	t.Helper()

	reg := setupTestRegistry(t, "admin:secret", newFakePinner())

	updateServer, err := NewUpdateServer(&UpdateConfig{
		Store:     reg.store,
		Artifacts: reg.artifacts,
		Log:       testLogger(),
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	reg.registry.RegisterPublicRoutes(router)
	reg.registry.RegisterAdminRoutes(router)
	updateServer.RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return reg, server
}

func pushTestRelease(t *testing.T, registryURL, version string, files map[string][]byte) {
	t.Helper()

	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	pub, err := NewPublisher(&PublisherConfig{
		RegistryURL: registryURL,
		AdminToken:  "admin:secret",
		SigningKey:  key,
		Log:         testLogger(),
	})
	require.NoError(t, err)

	dir := writeStagingDir(t, files)
	rel, err := pub.StageRelease(dir, version, "end to end release")
	require.NoError(t, err)

	published, err := pub.Push(context.Background(), dir, rel)
	require.NoError(t, err)
	require.True(t, published.Success)
}

// TestE2E_PublishToInstall drives the whole pipeline: a publisher pushes a
// staged build through the registry, an installed client finds the update,
// the user confirms both gates, and the verified installer lands staged.
func TestE2E_PublishToInstall(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	_, server := startTestBackend(t)
	files := testFiles("1.3.0")
	pushTestRelease(t, server.URL, "1.3.0", files)

	prompter := &recordingPrompter{downloadOK: true, installOK: true}
	installer := &recordingInstaller{}
	staging := t.TempDir()

	updater, err := update.New(update.Config{
		Source:         update.NewHTTPSource(server.URL),
		Platform:       release.PlatformLinux,
		Channel:        release.ChannelStable,
		CurrentVersion: "1.2.0",
		StagingDir:     staging,
		Prompter:       prompter,
		Installer:      installer,
		Log:            testLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, updater.RunOnce(context.Background()))
	require.Equal(t, []string{"1.3.0"}, prompter.offers)
	require.Len(t, installer.installed, 1)

	installed := installer.installed[0]
	require.Equal(t, filepath.Join(staging, "G3ZKP-1.3.0.AppImage"), installed)

	data, err := os.ReadFile(installed)
	require.NoError(t, err)
	require.Equal(t, files["G3ZKP-1.3.0.AppImage"], data)

	// AppImages come out of staging executable.
	fi, err := os.Stat(installed)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), fi.Mode().Perm())

	require.Equal(t, update.StateIdle, updater.State())
}

// TestE2E_DeclinedDownloadFetchesNothing verifies the first consent gate:
// declining the download leaves the staging directory untouched and the
// same version is not offered again.
func TestE2E_DeclinedDownloadFetchesNothing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	_, server := startTestBackend(t)
	pushTestRelease(t, server.URL, "1.3.0", testFiles("1.3.0"))

	prompter := &recordingPrompter{downloadOK: false, installOK: true}
	installer := &recordingInstaller{}
	staging := t.TempDir()

	updater, err := update.New(update.Config{
		Source:         update.NewHTTPSource(server.URL),
		Platform:       release.PlatformLinux,
		Channel:        release.ChannelStable,
		CurrentVersion: "1.2.0",
		StagingDir:     staging,
		Prompter:       prompter,
		Installer:      installer,
		Log:            testLogger(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, updater.RunOnce(ctx))
	require.Empty(t, installer.installed)

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.NoError(t, updater.RunOnce(ctx))
	require.Len(t, prompter.offers, 1)
}

// TestE2E_UnreachableBackendStaysQuiet verifies the app runs identically
// when no update endpoint answers: the check reports unavailability and the
// user is never prompted.
func TestE2E_UnreachableBackendStaysQuiet(t *testing.T) {
	prompter := &recordingPrompter{downloadOK: true, installOK: true}

	updater, err := update.New(update.Config{
		Source:         update.NewHTTPSource("http://127.0.0.1:1"),
		Platform:       release.PlatformLinux,
		Channel:        release.ChannelStable,
		CurrentVersion: "1.2.0",
		StagingDir:     t.TempDir(),
		Prompter:       prompter,
		Installer:      &recordingInstaller{},
		Log:            testLogger(),
	})
	require.NoError(t, err)

	err = updater.RunOnce(context.Background())
	require.ErrorIs(t, err, update.ErrManifestUnavailable)
	require.Empty(t, prompter.offers)
}
