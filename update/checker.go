package update

import (
	"context"
	"fmt"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// Decision is the outcome of one update check.
type Decision struct {
	// CurrentVersion is the version the check compared against.
	CurrentVersion string

	// UpdateAvailable reports whether the manifest offers a strictly
	// newer version.
	UpdateAvailable bool

	// Manifest is the fetched manifest. Set on every successful check,
	// whether or not an update is available.
	Manifest *manifest.Manifest
}

// Checker performs update checks for one installation: a platform, a
// channel and the version currently running.
type Checker struct {
	source         Source
	platform       release.Platform
	channel        release.Channel
	currentVersion string
}

// NewChecker validates the installation parameters and creates a checker.
// Platforms that do not self-update have nothing to check and are
// rejected up front.
func NewChecker(source Source, platform release.Platform, channel release.Channel, currentVersion string) (*Checker, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if !platform.SelfUpdates() {
		return nil, fmt.Errorf("platform %q does not self-update", platform)
	}
	if !channel.Valid() {
		return nil, fmt.Errorf("unknown channel: %q", channel)
	}
	if _, err := release.ParseVersion(currentVersion); err != nil {
		return nil, err
	}

	return &Checker{
		source:         source,
		platform:       platform,
		channel:        channel,
		currentVersion: currentVersion,
	}, nil
}

// CurrentVersion returns the version the checker compares against.
func (c *Checker) CurrentVersion() string {
	return c.currentVersion
}

// Check fetches the manifest and decides whether it offers an update.
// Downgrades and equal versions are not updates. A manifest carrying an
// unparseable version counts as unavailable, the same as not fetching one
// at all.
func (c *Checker) Check(ctx context.Context) (*Decision, error) {
	m, err := c.source.Manifest(ctx, c.platform, c.channel)
	if err != nil {
		return nil, err
	}

	newer, err := release.IsNewer(m.Version, c.currentVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}

	return &Decision{
		CurrentVersion:  c.currentVersion,
		UpdateAvailable: newer,
		Manifest:        m,
	}, nil
}
