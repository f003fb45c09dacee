package services

import (
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/feedback"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// ServiceType identifies the type of service.
type ServiceType string

const (
	RegistryService ServiceType = "registry"
	UpdateService   ServiceType = "update"
	FeedbackService ServiceType = "feedback"
)

// Valid returns true if the service type is recognized.
func (t ServiceType) Valid() bool {
	switch t {
	case RegistryService, UpdateService, FeedbackService:
		return true
	}
	return false
}

// ReleaseResponse confirms a release submission or deletion.
type ReleaseResponse struct {
	Success   bool   `json:"success"`
	ReleaseID string `json:"release_id,omitempty"`
	Version   string `json:"version,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ArtifactUploadResponse confirms an artifact upload.
type ArtifactUploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	SHA512   string `json:"sha512,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ArtifactLinks carries the distribution links minted for one artifact.
type ArtifactLinks struct {
	Filename   string `json:"filename"`
	CID        string `json:"cid,omitempty"`
	GatewayURL string `json:"gateway_url,omitempty"`
	Magnet     string `json:"magnet,omitempty"`
}

// PublishResponse reports the outcome of publishing a release.
type PublishResponse struct {
	Success   bool             `json:"success"`
	ReleaseID string           `json:"release_id,omitempty"`
	Version   string           `json:"version,omitempty"`
	Channel   string           `json:"channel,omitempty"`
	Manifests []string         `json:"manifests,omitempty"`
	Links     []*ArtifactLinks `json:"links,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// ReleaseListResponse lists known releases grouped by channel.
type ReleaseListResponse struct {
	Stable []*release.Release `json:"stable"`
	Beta   []*release.Release `json:"beta"`
}

// CheckResponse is the verdict returned by the update check endpoint.
type CheckResponse struct {
	UpdateAvailable bool   `json:"update_available"`
	Version         string `json:"version,omitempty"`
	Channel         string `json:"channel,omitempty"`
	ManifestURL     string `json:"manifest_url,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// StoredReport is a feedback report with the metadata assigned on receipt.
type StoredReport struct {
	ID         string          `json:"id"`
	ReceivedAt time.Time       `json:"received_at"`
	RemoteAddr string          `json:"remote_addr,omitempty"`
	Report     feedback.Report `json:"report"`
}

// FeedbackListResponse pages stored feedback reports.
type FeedbackListResponse struct {
	Total   int             `json:"total"`
	Reports []*StoredReport `json:"reports"`
}
