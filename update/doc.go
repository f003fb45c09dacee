// Package update implements the messenger's self-update flow.
//
// A Checker fetches the platform's update manifest and compares the
// offered version against the running one. An Updater drives the full
// user-gated flow: check, ask before downloading, download with digest
// verification, ask again before installing, then hand the verified
// installer to the platform Installer.
//
// Failed checks are silent. The messenger must start and run normally
// when the update endpoint is unreachable, so every transport, parse and
// validation failure during a check collapses into ErrManifestUnavailable
// and is only ever logged, never shown to the user.
//
// The user stays in control: nothing is downloaded and nothing is
// installed without an explicit confirmation through the Prompter. A
// version whose download the user declined is not offered again until a
// newer version appears.
package update
