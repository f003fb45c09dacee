package release

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
)

func testArtifact(t *testing.T, platform Platform, filename string) Artifact {
	t.Helper()
	return Artifact{
		Platform: platform,
		Filename: filename,
		Size:     1024,
		SHA512:   crypto.HashBytes([]byte(filename)).String(),
	}
}

func testRelease(t *testing.T, version string) *Release {
	t.Helper()
	return &Release{
		Version: version,
		Date:    time.Now().UTC(),
		Artifacts: []Artifact{
			testArtifact(t, PlatformWindows, "G3-Messenger-Setup-"+version+".exe"),
			testArtifact(t, PlatformDarwin, "G3-Messenger-"+version+".dmg"),
			testArtifact(t, PlatformLinux, "G3-Messenger-"+version+".AppImage"),
		},
	}
}

func TestPlatformForFilename(t *testing.T) {
	cases := []struct {
		filename  string
		platform  Platform
		storeOnly bool
	}{
		{"G3-Messenger-Setup-1.4.2.exe", PlatformWindows, false},
		{"G3-Messenger-Setup-1.4.2.exe.blockmap", PlatformWindows, false},
		{"G3-Messenger-1.4.2.dmg", PlatformDarwin, false},
		{"G3-Messenger-1.4.2-mac.zip", PlatformDarwin, false},
		{"G3-Messenger-1.4.2.AppImage", PlatformLinux, false},
		{"g3-messenger_1.4.2_amd64.deb", PlatformLinux, false},
		{"g3-messenger-1.4.2.x86_64.rpm", PlatformLinux, false},
		{"G3-Messenger-1.4.2.apk", PlatformAndroid, false},
		{"G3-Messenger-1.4.2.aab", PlatformAndroid, true},
		{"G3-Messenger-1.4.2.ipa", PlatformIOS, true},
		{"g3-messenger-web-1.4.2.tar.gz", PlatformWeb, false},
	}

	for _, tc := range cases {
		platform, storeOnly, err := PlatformForFilename(tc.filename)
		require.NoError(t, err, tc.filename)
		require.Equal(t, tc.platform, platform, tc.filename)
		require.Equal(t, tc.storeOnly, storeOnly, tc.filename)
	}

	_, _, err := PlatformForFilename("README.md")
	require.Error(t, err)
}

func TestPlatformSelfUpdate(t *testing.T) {
	require.True(t, PlatformWindows.SelfUpdates())
	require.True(t, PlatformDarwin.SelfUpdates())
	require.True(t, PlatformLinux.SelfUpdates())
	require.True(t, PlatformAndroid.SelfUpdates())
	require.False(t, PlatformIOS.SelfUpdates())
	require.False(t, PlatformWeb.SelfUpdates())
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" Windows ")
	require.NoError(t, err)
	require.Equal(t, PlatformWindows, p)

	_, err = ParsePlatform("solaris")
	require.Error(t, err)
}

func TestChannelForVersion(t *testing.T) {
	require.Equal(t, ChannelStable, ChannelForVersion("1.4.2"))
	require.Equal(t, ChannelBeta, ChannelForVersion("1.5.0-beta.1"))
	require.Equal(t, ChannelBeta, ChannelForVersion("2.0.0-rc.1"))
}

func TestChannelManifestPrefix(t *testing.T) {
	require.Equal(t, "latest", ChannelStable.ManifestPrefix())
	require.Equal(t, "beta", ChannelBeta.ManifestPrefix())
}

func TestIsNewer(t *testing.T) {
	cases := []struct {
		candidate string
		current   string
		newer     bool
	}{
		{"1.4.3", "1.4.2", true},
		{"1.4.2", "1.4.2", false},
		{"1.4.1", "1.4.2", false},
		{"2.0.0", "1.9.9", true},
		{"1.5.0-beta.2", "1.5.0-beta.1", true},
		{"1.5.0", "1.5.0-beta.9", true},
		{"1.5.0-beta.1", "1.5.0", false},
	}

	for _, tc := range cases {
		newer, err := IsNewer(tc.candidate, tc.current)
		require.NoError(t, err)
		require.Equal(t, tc.newer, newer, "%s vs %s", tc.candidate, tc.current)
	}

	_, err := IsNewer("not-a-version", "1.0.0")
	require.Error(t, err)
}

func TestReleaseValidate(t *testing.T) {
	rel := testRelease(t, "1.4.2")
	require.NoError(t, rel.Validate())
	require.Equal(t, ChannelStable, rel.Channel)
}

func TestReleaseValidateDerivesBetaChannel(t *testing.T) {
	rel := testRelease(t, "1.5.0-beta.1")
	rel.Artifacts = []Artifact{testArtifact(t, PlatformWindows, "G3-Messenger-Setup-1.5.0-beta.1.exe")}
	require.NoError(t, rel.Validate())
	require.Equal(t, ChannelBeta, rel.Channel)
}

func TestReleaseValidateRejectsPlatformMismatch(t *testing.T) {
	rel := testRelease(t, "1.4.2")
	rel.Artifacts[0].Platform = PlatformLinux // but filename says .exe
	err := rel.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "belongs to platform")
}

func TestReleaseValidateRejectsDuplicateFilenames(t *testing.T) {
	rel := testRelease(t, "1.4.2")
	rel.Artifacts = append(rel.Artifacts, rel.Artifacts[0])
	err := rel.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate artifact")
}

func TestReleaseValidateRejectsBadDigest(t *testing.T) {
	rel := testRelease(t, "1.4.2")
	rel.Artifacts[0].SHA512 = "AAAA"
	require.Error(t, rel.Validate())
}

func TestReleaseArtifactsForExcludesStoreOnly(t *testing.T) {
	rel := testRelease(t, "1.4.2")
	aab := testArtifact(t, PlatformAndroid, "G3-Messenger-1.4.2.aab")
	aab.StoreOnly = true
	apk := testArtifact(t, PlatformAndroid, "G3-Messenger-1.4.2.apk")
	rel.Artifacts = append(rel.Artifacts, aab, apk)

	served := rel.ArtifactsFor(PlatformAndroid)
	require.Len(t, served, 1)
	require.Equal(t, "G3-Messenger-1.4.2.apk", served[0].Filename)
}

func TestArtifactPath(t *testing.T) {
	p, err := ArtifactPath(ChannelStable, "1.4.2", "G3-Messenger-Setup-1.4.2.exe")
	require.NoError(t, err)
	require.Equal(t, "stable/1.4.2/G3-Messenger-Setup-1.4.2.exe", p)

	dl, err := DownloadPath(ChannelBeta, "1.5.0-beta.1", "G3-Messenger-1.5.0-beta.1.dmg")
	require.NoError(t, err)
	require.Equal(t, "/download/beta/1.5.0-beta.1/G3-Messenger-1.5.0-beta.1.dmg", dl)
}

func TestArtifactPathRejectsTraversal(t *testing.T) {
	_, err := ArtifactPath(ChannelStable, "1.4.2", "../../etc/passwd")
	require.Error(t, err)

	_, err = ArtifactPath(ChannelStable, "1.4.2", "..")
	require.Error(t, err)

	_, err = ArtifactPath(Channel("nightly"), "1.4.2", "a.exe")
	require.Error(t, err)
}
