package examparse

import "errors"

var (
	// ErrExamNotFound is returned when no exam has the given name.
	ErrExamNotFound = errors.New("examparse: exam not found")

	// ErrExamExists is returned by Create when the exam is already stored.
	ErrExamExists = errors.New("examparse: exam already exists")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("examparse: unsupported document format")

	// ErrDecoderFailure wraps a page source error. It is recorded in the
	// parse report and never aborts a run.
	ErrDecoderFailure = errors.New("examparse: document could not be decoded")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("examparse: invalid configuration")

	// ErrEngineClosed is returned when operating on a closed engine.
	ErrEngineClosed = errors.New("examparse: engine is closed")

	// ErrInvalidExamName is returned for names that cannot be used as a
	// directory name.
	ErrInvalidExamName = errors.New("examparse: invalid exam name")
)
