package filesystem

// Observer records filesystem operation metrics. The implementation lives in
// the metrics package, which imports this one.
type Observer interface {
	// ObserveOperation records duration and error status for an operation:
	// "stat", "open", "write" or "remove".
	ObserveOperation(operation string, durationSeconds float64, err error)

	// ObserveRetryAttempt records a retry after a stale file handle error.
	ObserveRetryAttempt(operation string)

	// ObserveCleanupFailure records a file that best-effort cleanup could not remove.
	ObserveCleanupFailure()
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is skipped (tests, CLI).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observeOperation(operation string, seconds float64, err error) {
	if defaultObserver != nil {
		defaultObserver.ObserveOperation(operation, seconds, err)
	}
}

func observeRetry(operation string) {
	if defaultObserver != nil {
		defaultObserver.ObserveRetryAttempt(operation)
	}
}

func observeCleanupFailure() {
	if defaultObserver != nil {
		defaultObserver.ObserveCleanupFailure()
	}
}
