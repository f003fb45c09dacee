package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

func testRelease(t *testing.T) *release.Release {
	t.Helper()
	mkArtifact := func(platform release.Platform, filename string) release.Artifact {
		return release.Artifact{
			Platform: platform,
			Filename: filename,
			Size:     2048,
			SHA512:   crypto.HashBytes([]byte(filename)).String(),
		}
	}
	return &release.Release{
		Version: "1.4.2",
		Channel: release.ChannelStable,
		Notes:   "Fixes message sync on flaky links.",
		Date:    time.Date(2026, 8, 20, 11, 2, 0, 0, time.UTC),
		Artifacts: []release.Artifact{
			mkArtifact(release.PlatformWindows, "G3-Messenger-Setup-1.4.2.exe"),
			mkArtifact(release.PlatformWindows, "G3-Messenger-Setup-1.4.2.exe.blockmap"),
			mkArtifact(release.PlatformDarwin, "G3-Messenger-1.4.2-mac.zip"),
			mkArtifact(release.PlatformDarwin, "G3-Messenger-1.4.2.dmg"),
			mkArtifact(release.PlatformLinux, "G3-Messenger-1.4.2.AppImage"),
			mkArtifact(release.PlatformLinux, "g3-messenger_1.4.2_amd64.deb"),
		},
	}
}

func TestName(t *testing.T) {
	cases := []struct {
		platform release.Platform
		channel  release.Channel
		want     string
	}{
		{release.PlatformWindows, release.ChannelStable, "latest.yml"},
		{release.PlatformDarwin, release.ChannelStable, "latest-mac.yml"},
		{release.PlatformLinux, release.ChannelStable, "latest-linux.yml"},
		{release.PlatformAndroid, release.ChannelStable, "latest-android.yml"},
		{release.PlatformWeb, release.ChannelStable, "latest-web.yml"},
		{release.PlatformWindows, release.ChannelBeta, "beta.yml"},
		{release.PlatformLinux, release.ChannelBeta, "beta-linux.yml"},
	}

	for _, tc := range cases {
		got, err := Name(tc.platform, tc.channel)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}

	_, err := Name(release.PlatformIOS, release.ChannelStable)
	require.Error(t, err)
}

func TestParseNameRoundTrip(t *testing.T) {
	for _, name := range Names() {
		platform, channel, err := ParseName(name)
		require.NoError(t, err, name)

		back, err := Name(platform, channel)
		require.NoError(t, err)
		require.Equal(t, name, back)
	}

	_, _, err := ParseName("nightly.yml")
	require.Error(t, err)
	_, _, err = ParseName("latest.json")
	require.Error(t, err)
}

func TestBuildWindows(t *testing.T) {
	m, err := Build(testRelease(t), release.PlatformWindows)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	require.Equal(t, "1.4.2", m.Version)
	require.Equal(t, "download/stable/1.4.2/G3-Messenger-Setup-1.4.2.exe", m.Path)

	// The blockmap is fetched by convention and must not be listed.
	require.Len(t, m.Files, 1)
	require.Equal(t, m.Path, m.Files[0].URL)
	require.Equal(t, int64(2048), m.Files[0].Size)

	date, err := m.Date()
	require.NoError(t, err)
	require.Equal(t, 2026, date.Year())
}

func TestBuildDarwinPrefersZip(t *testing.T) {
	m, err := Build(testRelease(t), release.PlatformDarwin)
	require.NoError(t, err)

	require.Len(t, m.Files, 2)
	require.Equal(t, "download/stable/1.4.2/G3-Messenger-1.4.2-mac.zip", m.Path)

	primary, ok := m.Primary()
	require.True(t, ok)
	require.Equal(t, m.SHA512, primary.SHA512)
}

func TestBuildLinuxPrefersAppImage(t *testing.T) {
	m, err := Build(testRelease(t), release.PlatformLinux)
	require.NoError(t, err)
	require.Equal(t, "download/stable/1.4.2/G3-Messenger-1.4.2.AppImage", m.Path)
}

func TestBuildRejectsPlatformsWithoutManifest(t *testing.T) {
	_, err := Build(testRelease(t), release.PlatformIOS)
	require.Error(t, err)
}

func TestBuildRejectsMissingPlatform(t *testing.T) {
	_, err := Build(testRelease(t), release.PlatformAndroid)
	require.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	m, err := Build(testRelease(t), release.PlatformWindows)
	require.NoError(t, err)

	data, err := Encode(m)
	require.NoError(t, err)
	require.Contains(t, string(data), "version: 1.4.2")
	require.Contains(t, string(data), "releaseDate:")

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, m.Version, decoded.Version)
	require.Equal(t, m.Path, decoded.Path)
	require.Equal(t, m.SHA512, decoded.SHA512)
}

func TestDecodeExternalManifest(t *testing.T) {
	// A manifest as written by desktop build tooling, millisecond
	// timestamp and quoted strings included.
	digest := crypto.HashBytes([]byte("setup")).String()
	data := []byte("version: 2.0.0\n" +
		"files:\n" +
		"  - url: G3-Messenger-Setup-2.0.0.exe\n" +
		"    sha512: " + digest + "\n" +
		"    size: 73400320\n" +
		"path: G3-Messenger-Setup-2.0.0.exe\n" +
		"sha512: " + digest + "\n" +
		"releaseDate: '2026-08-20T11:02:00.000Z'\n")

	m, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, "2.0.0", m.Version)

	date, err := m.Date()
	require.NoError(t, err)
	require.Equal(t, time.August, date.Month())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("{notyaml"))
	require.Error(t, err)

	_, err = Decode([]byte("version: ''\n"))
	require.Error(t, err)
}

func TestValidateRejectsPathOutsideFiles(t *testing.T) {
	m, err := Build(testRelease(t), release.PlatformWindows)
	require.NoError(t, err)

	m.Path = "somewhere-else.exe"
	require.Error(t, m.Validate())
}
