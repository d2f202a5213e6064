package fingerprint

import (
	"time"

	"media-curator/internal/filesystem"
)

func fastRetry() filesystem.RetryConfig {
	return filesystem.RetryConfig{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}
