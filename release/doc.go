// Package release defines the data model of the release backend: the
// platforms the messenger ships on, release channels, release and artifact
// metadata, version precedence, and the signed envelope that authenticates
// metadata in transit.
//
// # Platforms
//
// The platform catalog fixes which installer formats each platform ships
// and whether the platform can update itself in place. Store-gated
// artifacts (Android app bundles, iOS archives) are tracked for publishing
// but never offered to update clients.
//
// # Channels
//
// Releases flow through two channels, stable and beta. A version's
// prerelease tag decides its channel: any prerelease is beta, everything
// else is stable. Channel names prefix the update manifest filenames.
//
// # Signed envelopes
//
// Signed[T] wraps any metadata object with an Ed25519 signature over the
// serialized object concatenated with the signer's public key, preventing
// signature transplant between signers. Publishers sign releases they
// push; the registry verifies before accepting.
package release
