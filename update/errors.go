package update

import "errors"

var (
	// ErrManifestUnavailable covers every failure mode of an update check:
	// DNS, TLS, HTTP errors, malformed YAML, invalid manifests. Callers
	// log it and carry on; a missing update endpoint must never disturb
	// the app.
	ErrManifestUnavailable = errors.New("update manifest unavailable")

	// ErrChecksumMismatch means a downloaded file did not hash to the
	// digest its manifest promised. The download is discarded.
	ErrChecksumMismatch = errors.New("downloaded file failed digest verification")
)
