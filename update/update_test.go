package update

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/testutil"
)

// updateFixture is a fake update service serving one Linux release.
type updateFixture struct {
	srv      *httptest.Server
	version  string
	artifact []byte
	filename string

	mu           sync.Mutex
	manifestHits int
	artifactHits int
	rangesSeen   []string
	// servedBody overrides the artifact bytes, for corruption tests.
	servedBody []byte
}

func (f *updateFixture) manifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	rel := testutil.NewTestRelease(
		testutil.WithVersion(f.version),
		testutil.WithDate(time.Date(2026, 8, 20, 11, 2, 0, 0, time.UTC)),
		testutil.WithFiles(map[string][]byte{f.filename: f.artifact}),
	)
	m, err := manifest.Build(rel, release.PlatformLinux)
	require.NoError(t, err)
	return m
}

func setupUpdateService(t *testing.T, version string) *updateFixture {
	t.Helper()
	f := &updateFixture{
		version:  version,
		artifact: bytes.Repeat([]byte("appimage-payload-"), 64),
		filename: "G3-Messenger-" + version + ".AppImage",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/latest-linux.yml", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.manifestHits++
		f.mu.Unlock()

		data, err := manifest.Encode(f.manifest(t))
		require.NoError(t, err)
		w.Write(data)
	})
	mux.HandleFunc("/download/stable/"+version+"/"+f.filename, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.artifactHits++
		if rng := r.Header.Get("Range"); rng != "" {
			f.rangesSeen = append(f.rangesSeen, rng)
		}
		body := f.artifact
		if f.servedBody != nil {
			body = f.servedBody
		}
		f.mu.Unlock()

		http.ServeContent(w, r, f.filename, time.Time{}, bytes.NewReader(body))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

type scriptedPrompter struct {
	downloadOK    bool
	installOK     bool
	downloadCalls int
	installCalls  int
}

func (p *scriptedPrompter) ConfirmDownload(m *manifest.Manifest) bool {
	p.downloadCalls++
	return p.downloadOK
}

func (p *scriptedPrompter) ConfirmInstall(m *manifest.Manifest) bool {
	p.installCalls++
	return p.installOK
}

type recordingInstaller struct {
	paths []string
}

func (i *recordingInstaller) Install(ctx context.Context, path string) error {
	i.paths = append(i.paths, path)
	return nil
}

func newTestUpdater(t *testing.T, f *updateFixture, current string, p Prompter) (*Updater, *recordingInstaller) {
	t.Helper()
	installer := &recordingInstaller{}
	u, err := New(Config{
		Source:         NewHTTPSource(f.srv.URL),
		Platform:       release.PlatformLinux,
		Channel:        release.ChannelStable,
		CurrentVersion: current,
		StagingDir:     t.TempDir(),
		Prompter:       p,
		Installer:      installer,
	})
	require.NoError(t, err)
	return u, installer
}

func TestCheckerDetectsNewerVersion(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	checker, err := NewChecker(NewHTTPSource(f.srv.URL), release.PlatformLinux, release.ChannelStable, "1.4.2")
	require.NoError(t, err)

	decision, err := checker.Check(context.Background())
	require.NoError(t, err)
	require.True(t, decision.UpdateAvailable)
	require.Equal(t, "1.4.3", decision.Manifest.Version)
	require.Equal(t, "1.4.2", decision.CurrentVersion)
}

func TestCheckerSameAndOlderVersionsAreNoUpdate(t *testing.T) {
	f := setupUpdateService(t, "1.4.2")

	for _, current := range []string{"1.4.2", "1.5.0"} {
		checker, err := NewChecker(NewHTTPSource(f.srv.URL), release.PlatformLinux, release.ChannelStable, current)
		require.NoError(t, err)

		decision, err := checker.Check(context.Background())
		require.NoError(t, err)
		require.False(t, decision.UpdateAvailable, "current %s", current)
	}
}

func TestCheckerRejectsStoreGatedPlatforms(t *testing.T) {
	_, err := NewChecker(&StaticSource{}, release.PlatformIOS, release.ChannelStable, "1.0.0")
	require.Error(t, err)
}

func TestCheckFailuresCollapseToManifestUnavailable(t *testing.T) {
	// Endpoint serving garbage.
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>404</html>"))
	}))
	defer garbage.Close()

	// Endpoint answering 404.
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	for _, baseURL := range []string{garbage.URL, notFound.URL, "http://127.0.0.1:1"} {
		checker, err := NewChecker(NewHTTPSource(baseURL), release.PlatformLinux, release.ChannelStable, "1.0.0")
		require.NoError(t, err)

		_, err = checker.Check(context.Background())
		require.ErrorIs(t, err, ErrManifestUnavailable, baseURL)
	}
}

func TestHTTPSourceCachesManifests(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	source := NewHTTPSource(f.srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := source.Manifest(ctx, release.PlatformLinux, release.ChannelStable)
		require.NoError(t, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Equal(t, 1, f.manifestHits)
}

func TestDownloaderVerifiesAndRenames(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	dir := t.TempDir()
	d := NewDownloader(dir, f.srv.URL)

	m := f.manifest(t)
	primary, ok := m.Primary()
	require.True(t, ok)

	var lastReceived, lastTotal int64
	path, err := d.Download(context.Background(), primary, func(received, total int64) {
		lastReceived, lastTotal = received, total
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, f.filename), path)
	require.Equal(t, int64(len(f.artifact)), lastReceived)
	require.Equal(t, int64(len(f.artifact)), lastTotal)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, f.artifact, data)

	_, err = os.Stat(path + ".partial")
	require.True(t, os.IsNotExist(err), "partial file must be renamed away")
}

func TestDownloaderRejectsCorruptedBody(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	f.servedBody = []byte("not the bytes the manifest promised")

	d := NewDownloader(t.TempDir(), f.srv.URL)
	m := f.manifest(t)
	primary, _ := m.Primary()

	_, err := d.Download(context.Background(), primary, nil)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDownloaderResumesPartialDownload(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	dir := t.TempDir()

	// Simulate an interrupted download: half the artifact already staged.
	half := len(f.artifact) / 2
	partial := filepath.Join(dir, f.filename+".partial")
	require.NoError(t, os.WriteFile(partial, f.artifact[:half], 0o644))

	d := NewDownloader(dir, f.srv.URL)
	m := f.manifest(t)
	primary, _ := m.Primary()

	path, err := d.Download(context.Background(), primary, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, f.artifact, data)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.rangesSeen, 1)
	require.True(t, strings.HasPrefix(f.rangesSeen[0], "bytes="))
}

func TestDownloaderReusesVerifiedFile(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	dir := t.TempDir()
	d := NewDownloader(dir, f.srv.URL)
	m := f.manifest(t)
	primary, _ := m.Primary()
	ctx := context.Background()

	_, err := d.Download(ctx, primary, nil)
	require.NoError(t, err)
	_, err = d.Download(ctx, primary, nil)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Equal(t, 1, f.artifactHits)
}

func TestUpdaterFullFlow(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	prompter := &scriptedPrompter{downloadOK: true, installOK: true}
	u, installer := newTestUpdater(t, f, "1.4.2", prompter)

	require.NoError(t, u.RunOnce(context.Background()))

	require.Equal(t, 1, prompter.downloadCalls)
	require.Equal(t, 1, prompter.installCalls)
	require.Len(t, installer.paths, 1)
	require.True(t, strings.HasSuffix(installer.paths[0], f.filename))
	require.Equal(t, StateIdle, u.State())
}

func TestUpdaterNoUpdateNeverPrompts(t *testing.T) {
	f := setupUpdateService(t, "1.4.2")
	prompter := &scriptedPrompter{downloadOK: true, installOK: true}
	u, installer := newTestUpdater(t, f, "1.4.2", prompter)

	require.NoError(t, u.RunOnce(context.Background()))

	require.Zero(t, prompter.downloadCalls)
	require.Zero(t, prompter.installCalls)
	require.Empty(t, installer.paths)
	require.Equal(t, StateIdle, u.State())
}

func TestUpdaterSilentWhenEndpointUnreachable(t *testing.T) {
	prompter := &scriptedPrompter{downloadOK: true, installOK: true}
	installer := &recordingInstaller{}
	u, err := New(Config{
		Source:         NewHTTPSource("http://127.0.0.1:1"),
		Platform:       release.PlatformLinux,
		Channel:        release.ChannelStable,
		CurrentVersion: "1.4.2",
		StagingDir:     t.TempDir(),
		Prompter:       prompter,
		Installer:      installer,
	})
	require.NoError(t, err)

	err = u.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrManifestUnavailable)

	// The user sees nothing.
	require.Zero(t, prompter.downloadCalls)
	require.Zero(t, prompter.installCalls)
	require.Equal(t, StateIdle, u.State())
}

func TestUpdaterDeclinedVersionIsNotReoffered(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	prompter := &scriptedPrompter{downloadOK: false}
	u, installer := newTestUpdater(t, f, "1.4.2", prompter)
	ctx := context.Background()

	require.NoError(t, u.RunOnce(ctx))
	require.Equal(t, 1, prompter.downloadCalls)

	// Same version offered again: no prompt.
	require.NoError(t, u.RunOnce(ctx))
	require.Equal(t, 1, prompter.downloadCalls)
	require.Empty(t, installer.paths)
}

func TestUpdaterPostponedInstallReoffersWithoutRedownload(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	prompter := &scriptedPrompter{downloadOK: true, installOK: false}
	u, installer := newTestUpdater(t, f, "1.4.2", prompter)
	ctx := context.Background()

	require.NoError(t, u.RunOnce(ctx))
	require.Equal(t, StateDownloaded, u.State())
	require.Equal(t, 1, prompter.installCalls)
	require.Empty(t, installer.paths)

	// User says yes on the second pass; the staged download is reused.
	prompter.installOK = true
	require.NoError(t, u.RunOnce(ctx))
	require.Equal(t, 1, prompter.downloadCalls, "no second download consent needed")
	require.Equal(t, 2, prompter.installCalls)
	require.Len(t, installer.paths, 1)
	require.Equal(t, StateIdle, u.State())

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Equal(t, 1, f.artifactHits)
}

func TestUpdaterAbortsOnCorruptedDownload(t *testing.T) {
	f := setupUpdateService(t, "1.4.3")
	f.servedBody = []byte("tampered payload")

	prompter := &scriptedPrompter{downloadOK: true, installOK: true}
	u, installer := newTestUpdater(t, f, "1.4.2", prompter)

	err := u.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.Empty(t, installer.paths)
	require.Zero(t, prompter.installCalls, "corrupted download must never reach the install gate")
}

func TestStagedInstallerMarksAppImageExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "G3-Messenger-1.4.3.AppImage")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	installer := &StagedInstaller{}
	require.NoError(t, installer.Install(context.Background(), path))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), fi.Mode().Perm())
}

func TestStagedInstallerRejectsMissingFile(t *testing.T) {
	installer := &StagedInstaller{}
	require.Error(t, installer.Install(context.Background(), filepath.Join(t.TempDir(), "gone.exe")))
}
