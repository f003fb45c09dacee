// Package cmd provides the CLI commands of the release backend.
//
// # Commands
//
// registry: Owns release metadata and drives the publish workflow: signed
// submissions, artifact uploads, digest verification, manifest generation
// and IPFS distribution.
//
//	go run ./cmd/registry --config=registry.yaml
//	go run ./cmd/registry --addr=:8090 --admin-token=admin:secret
//
// updated: Serves per-platform update manifests and artifact downloads to
// installed applications.
//
//	go run ./cmd/updated --config=updated.yaml
//	go run ./cmd/updated --addr=:8091 --artifacts-dir=./artifacts
//
// feedbackd: Accepts bug reports and feature requests from the
// applications, rate-limited per client IP.
//
//	go run ./cmd/feedbackd --addr=:8092 --admin-token=admin:secret
//
// multiservice: Runs any combination of registry, update and feedback
// services in one process for small deployments.
//
//	go run ./cmd/multiservice --services=registry,update,feedback
//	go run ./cmd/multiservice --config=config.yaml
//
// publish: CLI for staging and publishing releases from a directory of
// build outputs.
//
//	go run ./cmd/publish push --dir=dist --version=1.4.0 -r https://releases.example.com
//	go run ./cmd/publish status -r https://releases.example.com
//
// demo-updater: Exercises the user-gated update flow against a live
// update server from the terminal.
//
//	go run ./cmd/demo-updater --server=http://localhost:8091 --version=1.0.0
//
// # HTTP Configuration Mode
//
// The multiservice command supports waiting for configuration via HTTP
// POST, useful for immutable images that receive configuration after boot:
//
//	# Start services in wait mode
//	go run ./cmd/multiservice --wait-config --addr=:8090
//
//	# Submit configuration to start the services
//	curl -X POST http://localhost:8090/config -d @config.yaml
//
// # Configuration
//
// All service commands support YAML configuration files via the --config
// flag. Command-line flags override config file values, and the
// G3RELEASE_* environment variables override both for secrets. A .env
// file in the working directory is honored.
//
// Example config for the multiservice command:
//
//	services: ["registry", "update", "feedback"]
//	http_addr: ":8090"
//	admin_token: "admin:secret"
//	database:
//	  host: "localhost"
//	  port: 5432
//	  user: "postgres"
//	  database: "g3release"
//	artifacts:
//	  dir: "/var/lib/g3release/artifacts"
//	ipfs:
//	  api_url: "http://localhost:5001"
//	  gateway: "https://ipfs.io"
//	  pin_sweep_schedule: "@hourly"
//	download:
//	  base_url: "https://updates.example.com"
//	  trackers:
//	    - "udp://tracker.opentrackr.org:1337/announce"
//	feedback:
//	  rate_limit: 10
//	  rate_window: 1h
//	keys:
//	  signing_key: ""
//
// # Publish Workflow
//
// A release moves from a build directory to clients in three steps, all
// driven by the publish command:
//
//  1. Stage: scan the directory, classify artifacts by platform and hash
//     them locally.
//  2. Push: submit the signed release, upload every artifact, then
//     publish. The registry re-hashes uploads and refuses to publish on
//     any mismatch.
//  3. Distribute: publishing pins artifacts to IPFS and mints gateway and
//     magnet links; update manifests become visible to clients at once.
package cmd
