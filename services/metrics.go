package services

import "github.com/VictoriaMetrics/metrics"

var (
	releasesSubmitted = metrics.NewCounter(`g3_registry_releases_submitted_total`)
	artifactsUploaded = metrics.NewCounter(`g3_registry_artifacts_uploaded_total`)
	releasesPublished = metrics.NewCounter(`g3_registry_releases_published_total`)
	pinFailures       = metrics.NewCounter(`g3_registry_pin_failures_total`)
	pinsRestored      = metrics.NewCounter(`g3_registry_pins_restored_total`)
	pinsCompleted     = metrics.NewCounter(`g3_registry_pins_completed_total`)

	manifestRequests = metrics.NewCounter(`g3_update_manifest_requests_total`)
	downloadRequests = metrics.NewCounter(`g3_update_download_requests_total`)
	checkRequests    = metrics.NewCounter(`g3_update_check_requests_total`)

	feedbackReceived    = metrics.NewCounter(`g3_feedback_reports_received_total`)
	feedbackRejected    = metrics.NewCounter(`g3_feedback_reports_rejected_total`)
	feedbackRateLimited = metrics.NewCounter(`g3_feedback_reports_rate_limited_total`)
)
