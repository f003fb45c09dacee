package release

import (
	"errors"
	"fmt"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
)

// Artifact is one installer file belonging to a release.
type Artifact struct {
	// Platform is the catalog platform the artifact ships on.
	Platform Platform `json:"platform"`

	// Filename is the bare filename, no path components.
	Filename string `json:"filename"`

	// Size is the artifact size in bytes.
	Size int64 `json:"size"`

	// SHA512 is the base64-encoded SHA-512 digest of the file.
	SHA512 string `json:"sha512"`

	// StoreOnly marks artifacts uploaded for app-store submission that
	// update clients must never see (.aab, .ipa).
	StoreOnly bool `json:"store_only,omitempty"`

	// CID is the IPFS content identifier, set once the artifact has been
	// added and pinned.
	CID string `json:"cid,omitempty"`

	// GatewayURL is the public IPFS gateway link for the artifact.
	GatewayURL string `json:"gateway_url,omitempty"`

	// Magnet is the BitTorrent magnet link with the registry's download
	// endpoint as a web seed.
	Magnet string `json:"magnet,omitempty"`
}

// Digest parses the artifact's SHA512 field.
func (a *Artifact) Digest() (crypto.Digest, error) {
	return crypto.NewDigestFromString(a.SHA512)
}

// Validate checks the artifact against the platform catalog.
func (a *Artifact) Validate() error {
	if !a.Platform.Valid() {
		return fmt.Errorf("artifact %q: unknown platform %q", a.Filename, a.Platform)
	}
	if err := ValidateFilename(a.Filename); err != nil {
		return fmt.Errorf("artifact %q: %w", a.Filename, err)
	}
	platform, storeOnly, err := PlatformForFilename(a.Filename)
	if err != nil {
		return err
	}
	if platform != a.Platform {
		return fmt.Errorf("artifact %q: filename belongs to platform %q, not %q", a.Filename, platform, a.Platform)
	}
	if storeOnly != a.StoreOnly {
		return fmt.Errorf("artifact %q: store-only flag does not match its format", a.Filename)
	}
	if a.Size <= 0 {
		return fmt.Errorf("artifact %q: size must be positive", a.Filename)
	}
	if _, err := a.Digest(); err != nil {
		return fmt.Errorf("artifact %q: %w", a.Filename, err)
	}
	return nil
}

// Release is one published version of the messenger across all platforms.
type Release struct {
	// ID is the registry-assigned identifier.
	ID string `json:"id,omitempty"`

	// Version is the semantic version, shared by every artifact.
	Version string `json:"version"`

	// Channel is the release train. Derived from the version's prerelease
	// tag when left empty.
	Channel Channel `json:"channel"`

	// Notes are the human-readable release notes shown in update prompts.
	Notes string `json:"notes,omitempty"`

	// Date is when the release was published.
	Date time.Time `json:"date"`

	// PublisherKey is the hex Ed25519 key that signed the publication.
	PublisherKey string `json:"publisher_key,omitempty"`

	// Published reports whether the release has completed publication and
	// is visible to update clients.
	Published bool `json:"published"`

	// Artifacts are the release's installer files.
	Artifacts []Artifact `json:"artifacts"`
}

// ArtifactsFor returns the client-served artifacts for one platform,
// excluding store-only files.
func (r *Release) ArtifactsFor(platform Platform) []Artifact {
	var out []Artifact
	for _, a := range r.Artifacts {
		if a.Platform == platform && !a.StoreOnly {
			out = append(out, a)
		}
	}
	return out
}

// Platforms returns the platforms this release ships client-served
// artifacts for, in catalog order.
func (r *Release) Platforms() []Platform {
	var out []Platform
	for _, p := range AllPlatforms() {
		if len(r.ArtifactsFor(p)) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Artifact looks up an artifact by filename.
func (r *Release) Artifact(filename string) (*Artifact, bool) {
	for i := range r.Artifacts {
		if r.Artifacts[i].Filename == filename {
			return &r.Artifacts[i], true
		}
	}
	return nil, false
}

// Validate checks the release and every artifact. An empty channel is
// filled in from the version before validation so callers can publish with
// just a version string.
func (r *Release) Validate() error {
	if r.Version == "" {
		return errors.New("release version must not be empty")
	}
	if _, err := ParseVersion(r.Version); err != nil {
		return err
	}
	if r.Channel == "" {
		r.Channel = ChannelForVersion(r.Version)
	}
	if !r.Channel.Valid() {
		return fmt.Errorf("unknown channel: %q", r.Channel)
	}
	if len(r.Artifacts) == 0 {
		return errors.New("release has no artifacts")
	}
	seen := make(map[string]struct{}, len(r.Artifacts))
	for i := range r.Artifacts {
		a := &r.Artifacts[i]
		if err := a.Validate(); err != nil {
			return err
		}
		if _, dup := seen[a.Filename]; dup {
			return fmt.Errorf("duplicate artifact filename: %q", a.Filename)
		}
		seen[a.Filename] = struct{}{}
	}
	return nil
}
