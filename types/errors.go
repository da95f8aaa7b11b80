package types

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrRepoNotAllowed is returned when a repository name collides with the layout structure.
	ErrRepoNotAllowed = errors.New("repository name is not allowed")
	// ErrEmptyInput is returned when a manifest is requested for zero payloads.
	ErrEmptyInput = errors.New("empty input")
	// ErrMissingSubject is returned when the subject strategy is used without a subject descriptor.
	ErrMissingSubject = errors.New("missing subject")
	// ErrStrategyInvalid is returned for an unknown or unusable packaging strategy.
	ErrStrategyInvalid = errors.New("invalid strategy")
	// ErrManifestInvalid is returned when a manifest is missing required fields.
	ErrManifestInvalid = errors.New("manifest invalid")
	// ErrDigestInvalid is returned when content does not match the expected digest.
	ErrDigestInvalid = errors.New("digest invalid")
	// ErrSizeInvalid is returned when content length does not match the expected size.
	ErrSizeInvalid = errors.New("size invalid")
)
