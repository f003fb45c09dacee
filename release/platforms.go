package release

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies an operating system target the messenger ships on.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformDarwin  Platform = "darwin"
	PlatformLinux   Platform = "linux"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

// PlatformInfo describes what a platform ships and how it updates.
type PlatformInfo struct {
	// DisplayName is the human-readable platform name.
	DisplayName string

	// SelfUpdate reports whether clients on this platform download and
	// install updates themselves. Store-gated and redeploy-only platforms
	// have no update manifest.
	SelfUpdate bool

	// Extensions lists the artifact filename extensions served to update
	// clients, longest first so .tar.gz wins over .gz.
	Extensions []string

	// StoreExtensions lists artifact extensions accepted at publish time
	// but only ever handed to an app store, never to clients.
	StoreExtensions []string
}

// platformCatalog fixes the installer formats per platform. Windows ships
// an NSIS installer plus its blockmap for differential downloads.
var platformCatalog = map[Platform]PlatformInfo{
	PlatformWindows: {
		DisplayName: "Windows",
		SelfUpdate:  true,
		Extensions:  []string{".exe.blockmap", ".exe"},
	},
	PlatformDarwin: {
		DisplayName: "macOS",
		SelfUpdate:  true,
		Extensions:  []string{".dmg", ".zip"},
	},
	PlatformLinux: {
		DisplayName: "Linux",
		SelfUpdate:  true,
		Extensions:  []string{".AppImage", ".deb", ".rpm"},
	},
	PlatformAndroid: {
		DisplayName:     "Android",
		SelfUpdate:      true,
		Extensions:      []string{".apk"},
		StoreExtensions: []string{".aab"},
	},
	PlatformIOS: {
		DisplayName:     "iOS",
		SelfUpdate:      false,
		StoreExtensions: []string{".ipa"},
	},
	PlatformWeb: {
		DisplayName: "Web",
		SelfUpdate:  false,
		Extensions:  []string{".tar.gz"},
	},
}

// AllPlatforms returns every supported platform in stable order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformWindows,
		PlatformDarwin,
		PlatformLinux,
		PlatformAndroid,
		PlatformIOS,
		PlatformWeb,
	}
}

// Valid reports whether the platform is in the catalog.
func (p Platform) Valid() bool {
	_, ok := platformCatalog[p]
	return ok
}

// Info returns the catalog entry for the platform. Info of an unknown
// platform returns the zero PlatformInfo.
func (p Platform) Info() PlatformInfo {
	return platformCatalog[p]
}

// SelfUpdates reports whether clients on this platform consume update
// manifests.
func (p Platform) SelfUpdates() bool {
	return platformCatalog[p].SelfUpdate
}

// ParsePlatform converts a string to a known Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform: %q", s)
	}
	return p, nil
}

// PlatformForFilename classifies an artifact filename by its extension.
// The second return distinguishes store-only artifacts from client-served
// ones. Unknown extensions return an error so a mistyped staging directory
// fails at publish time, not at serve time.
func PlatformForFilename(filename string) (Platform, bool, error) {
	lower := strings.ToLower(filename)
	for _, p := range AllPlatforms() {
		info := platformCatalog[p]
		for _, ext := range info.Extensions {
			if strings.HasSuffix(lower, strings.ToLower(ext)) {
				return p, false, nil
			}
		}
		for _, ext := range info.StoreExtensions {
			if strings.HasSuffix(lower, strings.ToLower(ext)) {
				return p, true, nil
			}
		}
	}
	return "", false, fmt.Errorf("no platform ships artifacts named like %q", filename)
}

// HostPlatform maps the running OS to its release platform. Mobile and web
// builds embed their platform explicitly instead.
func HostPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformDarwin
	case "android":
		return PlatformAndroid
	case "ios":
		return PlatformIOS
	default:
		return PlatformLinux
	}
}
