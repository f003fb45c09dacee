package manifest

import (
	"fmt"
	"strings"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// primaryPreference orders the installer formats per platform; the first
// present format becomes the manifest's Path. macOS prefers the zip since
// in-place updates install from it, the dmg is for first installs.
var primaryPreference = map[release.Platform][]string{
	release.PlatformWindows: {".exe"},
	release.PlatformDarwin:  {".zip", ".dmg"},
	release.PlatformLinux:   {".AppImage", ".deb", ".rpm"},
	release.PlatformAndroid: {".apk"},
	release.PlatformWeb:     {".tar.gz"},
}

func isBlockmap(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".blockmap")
}

// Build assembles the update manifest for one platform of a release. File URLs
// are download paths relative to the update service root, so the manifest
// works from any host that mirrors the artifact layout.
//
// Every platform with a manifest name gets one, including web, whose
// manifest marks redeploys rather than driving an installer.
func Build(rel *release.Release, platform release.Platform) (*Manifest, error) {
	if _, ok := platformSuffix[platform]; !ok {
		return nil, fmt.Errorf("platform %q has no update manifest", platform)
	}

	artifacts := rel.ArtifactsFor(platform)
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("release %s has no %s artifacts", rel.Version, platform)
	}

	m := &Manifest{
		Version:      rel.Version,
		ReleaseNotes: rel.Notes,
	}
	m.SetDate(rel.Date)

	for _, a := range artifacts {
		// Blockmaps are fetched by URL convention, not listed.
		if isBlockmap(a.Filename) {
			continue
		}
		url, err := release.DownloadPath(rel.Channel, rel.Version, a.Filename)
		if err != nil {
			return nil, err
		}
		m.Files = append(m.Files, FileEntry{
			URL:    strings.TrimPrefix(url, "/"),
			SHA512: a.SHA512,
			Size:   a.Size,
		})
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("release %s ships only blockmaps for %s", rel.Version, platform)
	}

	primary, err := pickPrimary(m.Files, platform)
	if err != nil {
		return nil, err
	}
	m.Path = primary.URL
	m.SHA512 = primary.SHA512

	return m, nil
}

func pickPrimary(files []FileEntry, platform release.Platform) (FileEntry, error) {
	for _, ext := range primaryPreference[platform] {
		for _, f := range files {
			if strings.HasSuffix(strings.ToLower(f.URL), strings.ToLower(ext)) {
				return f, nil
			}
		}
	}
	return FileEntry{}, fmt.Errorf("no primary installer among %d files for %s", len(files), platform)
}
