package release

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ValidateFilename rejects artifact names that could escape the artifact
// store or smuggle path components through download URLs.
func ValidateFilename(name string) error {
	if name == "" {
		return errors.New("filename must not be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("filename %q must not contain path separators", name)
	}
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return fmt.Errorf("filename %q must not be a dot file", name)
	}
	if len(name) > 255 {
		return fmt.Errorf("filename %q exceeds 255 characters", name)
	}
	return nil
}

// ArtifactPath returns the store path for an artifact, fixing the
// published directory layout: <channel>/<version>/<filename>. Web servers
// and the local store mirror this layout so download URLs stay stable
// across backends.
func ArtifactPath(channel Channel, version, filename string) (string, error) {
	if !channel.Valid() {
		return "", fmt.Errorf("unknown channel: %q", channel)
	}
	if _, err := ParseVersion(version); err != nil {
		return "", err
	}
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return path.Join(string(channel), version, filename), nil
}

// DownloadPath returns the public HTTP path clients fetch an artifact
// from, relative to the update service root.
func DownloadPath(channel Channel, version, filename string) (string, error) {
	p, err := ArtifactPath(channel, version, filename)
	if err != nil {
		return "", err
	}
	return "/download/" + p, nil
}
