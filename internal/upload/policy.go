package upload

import "github.com/rs/zerolog"

// FailurePolicy decides what the user sees when an upload got no usable
// answer (transport or parse failure). It returns the alert text, or "" to
// stay silent.
type FailurePolicy func(err error) string

// LogFailures logs the failure and shows nothing. This is the default: uploads
// are best-effort background work.
func LogFailures(logger zerolog.Logger) FailurePolicy {
	return func(err error) string {
		logger.Error().Err(err).Msg("upload failed")
		return ""
	}
}

// AlertFailures logs the failure and also surfaces it to the user.
func AlertFailures(logger zerolog.Logger) FailurePolicy {
	return func(err error) string {
		logger.Error().Err(err).Msg("upload failed")
		return "Upload failed: " + err.Error()
	}
}
