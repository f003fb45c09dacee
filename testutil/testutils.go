package testutil

import (
	"bytes"
	"fmt"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// ReleaseOption customizes a test release.
type ReleaseOption func(*release.Release)

// WithVersion sets the release version.
func WithVersion(version string) ReleaseOption {
	return func(r *release.Release) {
		r.Version = version
	}
}

// WithChannel sets the release channel explicitly instead of deriving it
// from the version.
func WithChannel(channel release.Channel) ReleaseOption {
	return func(r *release.Release) {
		r.Channel = channel
	}
}

// WithNotes sets the release notes.
func WithNotes(notes string) ReleaseOption {
	return func(r *release.Release) {
		r.Notes = notes
	}
}

// WithDate sets the publication date.
func WithDate(date time.Time) ReleaseOption {
	return func(r *release.Release) {
		r.Date = date
	}
}

// WithPublished marks the release as already published.
func WithPublished() ReleaseOption {
	return func(r *release.Release) {
		r.Published = true
	}
}

// WithArtifact appends one artifact as given.
func WithArtifact(artifact release.Artifact) ReleaseOption {
	return func(r *release.Release) {
		r.Artifacts = append(r.Artifacts, artifact)
	}
}

// WithFiles appends one artifact per file, classified by filename and
// hashed from the given content.
func WithFiles(files map[string][]byte) ReleaseOption {
	return func(r *release.Release) {
		for name, data := range files {
			artifact, err := ArtifactFor(name, data)
			if err != nil {
				panic(fmt.Sprintf("testutil: %v", err))
			}
			r.Artifacts = append(r.Artifacts, artifact)
		}
	}
}

// NewTestRelease creates a release for testing with sensible defaults.
// Without options it is version 1.2.3 on the stable channel with no
// artifacts; the channel and notes follow the version unless set
// explicitly.
func NewTestRelease(options ...ReleaseOption) *release.Release {
	rel := &release.Release{
		Version: "1.2.3",
	}
	for _, option := range options {
		option(rel)
	}
	if rel.Channel == "" {
		rel.Channel = release.ChannelForVersion(rel.Version)
	}
	if rel.Notes == "" {
		rel.Notes = "test release " + rel.Version
	}
	return rel
}

// ArtifactFor builds artifact metadata for a filename and its content,
// classifying the platform from the filename.
func ArtifactFor(filename string, data []byte) (release.Artifact, error) {
	platform, storeOnly, err := release.PlatformForFilename(filename)
	if err != nil {
		return release.Artifact{}, err
	}
	return release.Artifact{
		Platform:  platform,
		Filename:  filename,
		Size:      int64(len(data)),
		SHA512:    crypto.HashBytes(data).String(),
		StoreOnly: storeOnly,
	}, nil
}

// InstallerFiles returns a deterministic simulated build output for one
// version: a Linux AppImage, a Windows installer and its blockmap.
func InstallerFiles(version string) map[string][]byte {
	return map[string][]byte{
		"G3ZKP-" + version + ".AppImage":         bytes.Repeat([]byte{0xA1}, 4096),
		"G3ZKP Setup " + version + ".exe":        bytes.Repeat([]byte{0xB2}, 2048),
		"G3ZKP Setup " + version + ".exe.blockmap": []byte("blockmap-" + version),
	}
}

// SignedTestRelease stamps the release with the key's public identity and
// signs it, the way a publisher submits it to the registry.
func SignedTestRelease(key crypto.PrivateKey, rel *release.Release) (*release.Signed[release.Release], error) {
	pubKey, err := key.PublicKey()
	if err != nil {
		return nil, err
	}
	rel.PublisherKey = pubKey.String()
	return release.NewSigned(key, rel)
}
