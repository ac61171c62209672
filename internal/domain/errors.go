package domain

import "errors"

var (
	// ErrInsufficientData marks a series too short for a calculation
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMissingColumn marks an absent optional column
	ErrMissingColumn = errors.New("missing column")
	// ErrNoCandidates marks an empty candidate list
	ErrNoCandidates = errors.New("no candidates")
	// ErrNotFound is returned by repositories for unknown keys
	ErrNotFound = errors.New("not found")
)
