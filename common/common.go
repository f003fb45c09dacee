// Package common holds identifiers shared by every binary of the release
// backend.
package common

// PackageName identifies the release backend in logs, metrics and
// User-Agent headers.
const PackageName = "g3-release"

// Version is the version of the release tooling itself, not of the
// application releases it distributes. Overridden at link time:
//
//	go build -ldflags "-X github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/common.Version=v1.4.0"
var Version = "dev"

// UserAgent returns the User-Agent header value used by all outbound HTTP
// clients of the release backend.
func UserAgent() string {
	return PackageName + "/" + Version
}
