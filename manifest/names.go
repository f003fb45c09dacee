package manifest

import (
	"fmt"
	"strings"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// platformSuffix maps each platform that serves a manifest to the suffix
// its manifest filename carries. Windows has none for compatibility with
// clients that poll the bare latest.yml. Web is included even though
// browsers never self-install: its manifest marks PWA redeploys.
var platformSuffix = map[release.Platform]string{
	release.PlatformWindows: "",
	release.PlatformDarwin:  "-mac",
	release.PlatformLinux:   "-linux",
	release.PlatformAndroid: "-android",
	release.PlatformWeb:     "-web",
}

// Name returns the manifest filename for a platform and channel, e.g.
// latest.yml, latest-mac.yml or beta-linux.yml. Store-gated platforms
// have no manifest.
func Name(platform release.Platform, channel release.Channel) (string, error) {
	if !channel.Valid() {
		return "", fmt.Errorf("unknown channel: %q", channel)
	}
	suffix, ok := platformSuffix[platform]
	if !ok {
		return "", fmt.Errorf("platform %q has no update manifest", platform)
	}
	return channel.ManifestPrefix() + suffix + ".yml", nil
}

// ParseName resolves a manifest filename back to its platform and channel.
// Unknown names return an error so the update service can 404 instead of
// guessing.
func ParseName(name string) (release.Platform, release.Channel, error) {
	base, ok := strings.CutSuffix(name, ".yml")
	if !ok {
		return "", "", fmt.Errorf("not a manifest name: %q", name)
	}

	for _, channel := range release.Channels() {
		prefix := channel.ManifestPrefix()
		rest, ok := strings.CutPrefix(base, prefix)
		if !ok {
			continue
		}
		for platform, suffix := range platformSuffix {
			if rest == suffix {
				return platform, channel, nil
			}
		}
	}
	return "", "", fmt.Errorf("not a manifest name: %q", name)
}

// Names returns every manifest filename the backend serves, in stable
// order.
func Names() []string {
	var out []string
	for _, channel := range release.Channels() {
		for _, platform := range release.AllPlatforms() {
			name, err := Name(platform, channel)
			if err != nil {
				continue
			}
			out = append(out, name)
		}
	}
	return out
}
