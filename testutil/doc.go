/*
Package testutil provides test fixtures for the release backend.

This package contains builders for the release-domain test data the
service, store and update-flow tests share: releases with classified
artifacts, deterministic installer payloads and signed submissions.

# Release Builders

Functions for creating customizable release instances:

	// Create a default test release
	rel := testutil.NewTestRelease()

	// Create a custom release with specific options
	rel := testutil.NewTestRelease(
	    testutil.WithVersion("2.0.0-beta.1"),
	    testutil.WithNotes("beta rollout"),
	    testutil.WithFiles(files),
	)

The channel derives from the version's prerelease tag unless WithChannel
overrides it, matching how submissions behave.

# Installer Payloads

InstallerFiles returns a deterministic simulated build output keyed by
filename, so digests and sizes are stable across runs:

	files := testutil.InstallerFiles("1.2.3")
	signed, err := testutil.SignedTestRelease(key, testutil.NewTestRelease(
	    testutil.WithVersion("1.2.3"),
	    testutil.WithFiles(files),
	))

ArtifactFor classifies a single filename and hashes its content, for
tests that build their payloads by hand.

# Signing

SignedTestRelease stamps the release with the key's public identity
before signing, so the submission passes the registry's publisher check
the same way a real publisher's does.
*/
package testutil
