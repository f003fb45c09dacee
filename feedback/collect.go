package feedback

import (
	"bufio"
	"os"
	"runtime"
	"strings"
)

// CollectSystemInfo assembles the environment snapshot for a report.
// Everything here is best effort; fields that cannot be determined stay
// empty rather than failing the report.
func CollectSystemInfo(appVersion, channel string) SystemInfo {
	return SystemInfo{
		AppVersion: appVersion,
		Channel:    channel,
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		OSVersion:  readOSVersion(),
		Locale:     readLocale(),
		NumCPU:     runtime.NumCPU(),
	}
}

// readLocale returns the process locale from the usual environment
// variables, trimmed of the codeset suffix ("en_US.UTF-8" -> "en_US").
func readLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			locale, _, _ := strings.Cut(v, ".")
			return locale
		}
	}
	return ""
}

// readOSVersion returns a human-readable OS version where one is cheaply
// available. Only Linux exposes one without shelling out.
func readOSVersion() string {
	if runtime.GOOS != "linux" {
		return ""
	}

	f, err := os.Open("/etc/os-release")
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if value, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
			return strings.Trim(value, `"`)
		}
	}
	return ""
}
