// Package crypto provides the cryptographic primitives of the release backend.
//
// This package implements the operations release distribution depends on:
//
//   - Digital signatures (Ed25519) authenticating publishers and the
//     manifests served to update clients
//   - SHA-512 artifact digests in the base64 encoding update manifests carry
//   - Streaming file hashing for installer artifacts
//
// The crypto package provides low-level primitives that are used by the
// release model, the update client and the publishing services.
//
// # Key Management
//
// Ed25519 keys identify publishers. All keys include helper methods for
// hex serialization and comparison so they can be logged, configured and
// used as map keys.
//
// # Digests
//
// Digests are SHA-512 and serialize to standard base64, the checksum
// format desktop update clients verify downloads against. VerifyReader
// checks a download against its manifest digest without buffering it.
package crypto
