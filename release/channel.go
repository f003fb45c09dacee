package release

import (
	"fmt"
	"strings"
)

// Channel is a release train. Stable is what the public installs; beta
// carries prerelease builds to opted-in testers.
type Channel string

const (
	ChannelStable Channel = "stable"
	ChannelBeta   Channel = "beta"
)

// Channels returns the supported channels in rollout order.
func Channels() []Channel {
	return []Channel{ChannelStable, ChannelBeta}
}

// Valid reports whether the channel is supported.
func (c Channel) Valid() bool {
	return c == ChannelStable || c == ChannelBeta
}

// ManifestPrefix returns the filename prefix this channel's update
// manifests carry. Stable keeps the historical "latest" prefix desktop
// clients already poll.
func (c Channel) ManifestPrefix() string {
	if c == ChannelBeta {
		return "beta"
	}
	return "latest"
}

// ParseChannel converts a string to a known Channel.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel: %q", s)
	}
	return c, nil
}

// ChannelForVersion derives the channel from a version string. Any
// prerelease tag routes to beta; release versions are stable. Unparseable
// versions are reported stable so the caller's own version validation
// produces the error.
func ChannelForVersion(version string) Channel {
	v, err := ParseVersion(version)
	if err != nil {
		return ChannelStable
	}
	if v.Prerelease() != "" {
		return ChannelBeta
	}
	return ChannelStable
}
