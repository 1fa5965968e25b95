package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)

	for _, op := range []string{"create_item", "get_item", "item_exists", "delete_item",
		"add_image", "get_image", "update_image", "set_primary", "reorder", "remove_image",
		"list_images", "get_primary", "set_orientation", "legacy_migration", "stats",
		"get_metadata", "set_metadata"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, op := range []string{"add_image", "update_image", "set_primary", "reorder", "remove_image"} {
		ImageMutationsTotal.WithLabelValues(op, "success")
		ImageMutationsTotal.WithLabelValues(op, "error")
		InvariantViolationsTotal.WithLabelValues(op)
	}

	for _, backend := range []string{"imaging", "vips"} {
		for _, status := range []string{"success", "decode_error", "partial", "error"} {
			DerivationsTotal.WithLabelValues(backend, status)
		}
	}

	for _, phase := range []string{"probe", "decode", "thumb", "medium", "write"} {
		DerivationDuration.WithLabelValues(phase)
	}

	for _, category := range []string{"Cards", "Comics"} {
		for _, result := range []string{"success", "validation", "decode", "partial", "error"} {
			UploadsTotal.WithLabelValues(category, result)
		}
	}

	for _, status := range []string{"success", "error"} {
		RegeneratedAssetsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"stat", "open", "write", "remove"} {
		FilesystemOperationDuration.WithLabelValues(op)
		FilesystemOperationErrors.WithLabelValues(op)
		FilesystemRetryAttempts.WithLabelValues(op)
	}
}
