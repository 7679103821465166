package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when a stopped scheduler is asked to stop again
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobAlreadyRunning is returned when a job is triggered while its previous run is still in progress
	ErrJobAlreadyRunning = errors.New("job already running")

	// ErrJobNotFound is returned for unregistered job names
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when a job name is registered twice
	ErrDuplicateJob = errors.New("job already registered")

	// ErrInvalidConfig is returned when a job definition is incomplete
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
