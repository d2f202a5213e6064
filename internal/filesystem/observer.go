package filesystem

// Observer receives the outcome of every retried filesystem call. The metrics
// package implements it; filesystem cannot import metrics without a cycle.
type Observer interface {
	// ObserveOperation is called once per call with the total time spent,
	// retries included. op is "stat", "read" or "readdir".
	ObserveOperation(volume, op string, durationSeconds float64, err error)

	ObserveRetryAttempt(op, volume string)
	ObserveRetrySuccess(op, volume string)
	ObserveRetryFailure(op, volume string)
	ObserveRetryDuration(op, volume string, durationSeconds float64)
	ObserveStaleError(op, volume string)
}

// defaultObserver is nil until SetObserver runs; a nil observer records
// nothing.
var defaultObserver Observer

// SetObserver installs the package-level observer. main calls it once at
// startup, tests reset it to nil.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
