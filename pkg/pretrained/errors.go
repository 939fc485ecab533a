package pretrained

import "errors"

var (
	// ErrConfigShape reports a config value that cannot be represented as a
	// JSON object.
	ErrConfigShape = errors.New("pretrained: config does not represent a JSON object")

	// ErrConfigMismatch reports a stored config whose keys do not match the
	// declared record type.
	ErrConfigMismatch = errors.New("pretrained: config does not match declared record")

	// ErrEntryNotFound reports that a requested file or repository does not
	// exist at the requested revision. Repository clients return errors
	// matching this (via errors.Is) so an absent config.json reads as the
	// no-config state instead of a failure.
	ErrEntryNotFound = errors.New("pretrained: entry not found")

	// ErrNoClient reports a remote reference with no repository client
	// configured for the call.
	ErrNoClient = errors.New("pretrained: no repository client configured")
)
