package services

import "errors"

var (
	// Upload validation errors
	ErrMissingFile     = errors.New("no file provided")
	ErrEmptyFilename   = errors.New("uploaded file has no name")
	ErrUnsupportedFile = errors.New("unsupported file type")

	// Output file errors
	ErrNoOutputsFound = errors.New("no output files found")
	ErrOutputNotFound = errors.New("output file not found")
	ErrInvalidName    = errors.New("invalid file name")

	// Job errors
	ErrJobNotFound = errors.New("job not found")

	// General errors
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
