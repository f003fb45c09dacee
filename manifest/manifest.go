// Package manifest encodes the per-platform YAML update descriptors that
// clients poll. The field set matches the latest.yml format desktop update
// frameworks consume, so shipping clients keep working against this
// backend unchanged.
package manifest

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// DateFormat is the timestamp layout manifests carry. Milliseconds are
// kept for compatibility with manifests written by desktop build tooling.
const DateFormat = "2006-01-02T15:04:05.000Z07:00"

// FileEntry describes one downloadable file of an update.
type FileEntry struct {
	// URL locates the file. Relative URLs resolve against the manifest's
	// own URL.
	URL string `yaml:"url" json:"url"`

	// SHA512 is the base64 digest clients verify the download against.
	SHA512 string `yaml:"sha512" json:"sha512"`

	// Size is the file size in bytes, used for progress reporting.
	Size int64 `yaml:"size" json:"size"`
}

// Manifest is a per-platform update descriptor for one channel.
type Manifest struct {
	// Version is the semantic version offered by this manifest.
	Version string `yaml:"version" json:"version"`

	// Files lists every downloadable file of the update.
	Files []FileEntry `yaml:"files" json:"files"`

	// Path repeats the primary installer's URL for older clients that
	// predate the files list.
	Path string `yaml:"path" json:"path"`

	// SHA512 is the primary installer's digest, paired with Path.
	SHA512 string `yaml:"sha512" json:"sha512"`

	// ReleaseDate is when the release was published, in DateFormat.
	ReleaseDate string `yaml:"releaseDate" json:"releaseDate"`

	// ReleaseName optionally names the release.
	ReleaseName string `yaml:"releaseName,omitempty" json:"releaseName,omitempty"`

	// ReleaseNotes are shown to the user in the update prompt.
	ReleaseNotes string `yaml:"releaseNotes,omitempty" json:"releaseNotes,omitempty"`
}

// Date parses the manifest's release date.
func (m *Manifest) Date() (time.Time, error) {
	t, err := time.Parse(DateFormat, m.ReleaseDate)
	if err != nil {
		// Tolerate plain RFC 3339 written by hand or by other tooling.
		t, err = time.Parse(time.RFC3339, m.ReleaseDate)
	}
	return t, err
}

// SetDate stores the release date in the manifest's timestamp layout.
func (m *Manifest) SetDate(t time.Time) {
	m.ReleaseDate = t.UTC().Format(DateFormat)
}

// Primary returns the file entry matching the manifest's Path.
func (m *Manifest) Primary() (FileEntry, bool) {
	for _, f := range m.Files {
		if f.URL == m.Path {
			return f, true
		}
	}
	return FileEntry{}, false
}

// Validate checks the manifest's internal consistency.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return errors.New("manifest version must not be empty")
	}
	if _, err := release.ParseVersion(m.Version); err != nil {
		return err
	}
	if len(m.Files) == 0 {
		return errors.New("manifest lists no files")
	}
	for _, f := range m.Files {
		if f.URL == "" {
			return errors.New("manifest file entry has no url")
		}
		if _, err := crypto.NewDigestFromString(f.SHA512); err != nil {
			return fmt.Errorf("file %q: %w", f.URL, err)
		}
	}
	if m.Path == "" {
		return errors.New("manifest path must not be empty")
	}
	if _, ok := m.Primary(); !ok {
		return fmt.Errorf("manifest path %q is not in the files list", m.Path)
	}
	if _, err := m.Date(); err != nil {
		return fmt.Errorf("invalid releaseDate: %w", err)
	}
	return nil
}

// Encode serializes the manifest to YAML.
func Encode(m *Manifest) ([]byte, error) {
	return yaml.Marshal(m)
}

// Decode parses a YAML manifest and validates it.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
