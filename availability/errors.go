package availability

import "errors"

var (
	// ErrProbeTimeout indicates a health probe exceeded its timeout.
	ErrProbeTimeout = errors.New("availability: probe timed out")

	// ErrProbePanic indicates a health probe panicked. The panic is
	// contained and converted into a failed health record.
	ErrProbePanic = errors.New("availability: probe panicked")

	// ErrInvalidDependencyMap indicates the critical/optional classification
	// does not cover every service exactly once.
	ErrInvalidDependencyMap = errors.New("availability: invalid dependency map")
)
