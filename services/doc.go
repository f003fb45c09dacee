/*
# Release Backend Services

The services package provides the HTTP services that run the release pipeline:
the release registry, the update server, and the feedback intake.

## Components

1. **Registry** (`registry_service.go`)
  - Owns release metadata and drives the publish workflow
  - Admin endpoints (basic auth):
  - `POST /admin/releases` - Submit a signed release
  - `PUT /admin/releases/{id}/artifacts/{filename}` - Upload an artifact
  - `POST /admin/releases/{id}/publish` - Verify, generate manifests, pin to IPFS
  - `DELETE /admin/releases/{id}` - Remove an unpublished release
  - Public endpoints:
  - `GET /api/releases` - List published releases by channel
  - `GET /api/releases/{channel}/latest` - Latest published release
  - `GET /api/releases/{id}` - One published release

2. **UpdateServer** (`update_service.go`)
  - Serves update manifests and artifact downloads to installed apps
  - Endpoints:
  - `GET /{manifest}.yml` - Per-platform update manifest
  - `GET /signed/{manifest}.json` - Manifest in a signed envelope
  - `GET /download/{channel}/{version}/{filename}` - Artifact bytes
  - `GET /api/check` - JSON update verdict for a given platform/version

3. **FeedbackServer** (`feedback_service.go`)
  - Accepts user feedback reports from the apps
  - Endpoints:
  - `POST /api/feedback` - Submit a report (rate limited per IP)
  - `GET /admin/feedback` - List stored reports (basic auth)
  - `GET /admin/feedback.csv` - CSV export (basic auth)

## Storage

Release and feedback metadata live in PostgreSQL (`stores.go`), with an
in-memory twin for tests. Artifact bytes live behind the ArtifactStore
interface (`artifact_store.go`) with local-disk and Google Cloud Storage
implementations.

## Publishing

The Publisher (`publisher.go`) is the client side of the registry admin API.
It scans a staging directory, hashes and classifies the artifacts, signs the
release with the publisher key, uploads everything, and triggers publish. On
publish the registry verifies every digest against the stored bytes, rebuilds
the per-platform manifests, pins artifacts to IPFS, and mints gateway and
magnet links. When the IPFS node is unreachable the release still goes out;
the pin sweeper (`pinsweep.go`) finishes distribution and re-pins dropped
artifacts on a cron schedule.

## Usage

	store, err := services.NewPostgresStore(&services.PostgresConfig{...})
	artifacts := services.NewLocalArtifactStore("/var/lib/g3-release/artifacts")

	registry, err := services.NewRegistry(&services.RegistryConfig{
	    Store:         store,
	    Artifacts:     artifacts,
	    PublisherKeys: []string{publisherKeyHex},
	    AdminToken:    "admin:secret",
	})

	router := chi.NewRouter()
	registry.RegisterPublicRoutes(router)
	registry.RegisterAdminRoutes(router)
	http.ListenAndServe(":8080", router)
*/
package services
